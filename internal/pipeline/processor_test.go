package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/source"
	"github.com/sells-group/docextract/internal/store"
	storemocks "github.com/sells-group/docextract/internal/store/mocks"
	"github.com/sells-group/docextract/internal/verify"
)

const (
	jobID    = "job-1"
	docID    = "doc-1"
	resultID = "res-1"
)

func newProcessor(st store.Store, a, b source.Source) *Processor {
	return New(Config{Thresholds: verify.DefaultThresholds()}, st, testRegistry(), a, b, nil)
}

func expectJob(st *storemocks.MockStore, status model.JobStatus) {
	st.On("GetJob", mock.Anything, jobID).
		Return(&model.ExtractionJob{ID: jobID, DocumentID: docID, Status: status}, nil).Once()
}

func expectStart(st *storemocks.MockStore, docType model.DocumentType) {
	st.On("UpdateJobStatus", mock.Anything, jobID, model.JobStatusProcessingLLM, "extracting structured fields", (*model.ErrorDetails)(nil)).
		Return(nil).Once()
	st.On("GetDocument", mock.Anything, docID).
		Return(&model.Document{ID: docID, Type: docType, FileKey: "uploads/doc-1.pdf"}, nil).Once()
}

func expectPersist(st *storemocks.MockStore, message string) {
	st.On("CreateExtractionResult", mock.Anything, mock.AnythingOfType("*model.ExtractionResult")).Return(resultID, nil).Once()
	st.On("InsertExtractedFields", mock.Anything, resultID, mock.AnythingOfType("[]model.ExtractedField")).Return(nil).Once()
	st.On("RecordProvenance", mock.Anything, mock.AnythingOfType("model.PromptProvenance")).Return(nil).Twice()
	st.On("CompleteJob", mock.Anything, jobID, resultID, message).Return(nil).Once()
}

func expectFailed(st *storemocks.MockStore, kind model.ErrorKind) *model.ErrorDetails {
	var got model.ErrorDetails
	st.On("UpdateJobStatus", mock.Anything, jobID, model.JobStatusFailed, mock.Anything,
		mock.MatchedBy(func(d *model.ErrorDetails) bool { return d != nil && d.Kind == kind })).
		Run(func(args mock.Arguments) { got = *args.Get(4).(*model.ErrorDetails) }).
		Return(nil).Once()
	return &got
}

func TestProcess_Consensus(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	expectPersist(st, "completed: confidence CONSENSUS")

	a := returning("anthropic", agreedFields())
	b := returning("gemini", agreedFields())
	res, err := newProcessor(st, a, b).Process(context.Background(), jobID, deedOCR())
	require.NoError(t, err)

	assert.Equal(t, resultID, res.ID)
	assert.Equal(t, model.ConfidenceConsensus, res.Confidence)
	assert.Empty(t, res.Discrepancies)
	assert.Equal(t, "José Pérez Ávila", res.Consensus["notario"])
	assert.Equal(t, "anthropic", res.SourceA.Source)
	assert.Equal(t, "gemini", res.SourceB.Source)
	require.Len(t, res.Verification, 2)
	for _, v := range res.Verification {
		assert.Equal(t, model.VerificationConfirmed, v.Status, v.Field)
	}
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestProcess_CriticalDiscrepancyResolvesToSourceA(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusProcessingLLM)
	expectStart(st, model.DocumentTypeEscritura)

	var fields []model.ExtractedField
	st.On("CreateExtractionResult", mock.Anything, mock.Anything).Return(resultID, nil).Once()
	st.On("InsertExtractedFields", mock.Anything, resultID, mock.Anything).
		Run(func(args mock.Arguments) { fields = args.Get(2).([]model.ExtractedField) }).
		Return(nil).Once()
	st.On("RecordProvenance", mock.Anything, mock.Anything).Return(nil).Twice()
	st.On("CompleteJob", mock.Anything, jobID, resultID,
		"completed: confidence REVIEW_REQUIRED; 1 field(s) need review: numero_escritura").Return(nil).Once()

	bFields := agreedFields()
	bFields["numero_escritura"] = "1234S"
	res, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", bFields)).
		Process(context.Background(), jobID, deedOCR())
	require.NoError(t, err)

	assert.Equal(t, model.ConfidenceReviewRequired, res.Confidence)
	assert.Equal(t, "12345", res.Consensus["numero_escritura"])
	assert.Equal(t, []string{"numero_escritura"}, res.Discrepancies)
	require.NotEmpty(t, res.Verification)
	assert.Equal(t, "numero_escritura", res.Verification[0].Field)
	assert.Equal(t, model.VerificationConfirmed, res.Verification[0].Status)

	require.Len(t, fields, 3)
	assert.Equal(t, "numero_escritura", fields[0].Name)
	assert.True(t, fields[0].NeedsReview)
	assert.False(t, fields[1].NeedsReview)
}

func TestProcess_VerificationEscalatesAgreedValue(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	expectPersist(st, "completed: confidence REVIEW_REQUIRED; 1 field(s) need review: numero_escritura")

	fields := agreedFields()
	fields["numero_escritura"] = "12346"
	res, err := newProcessor(st, returning("anthropic", fields), returning("gemini", fields)).
		Process(context.Background(), jobID, deedOCR())
	require.NoError(t, err)

	assert.Equal(t, model.ConfidenceReviewRequired, res.Confidence)
	assert.Equal(t, []string{"numero_escritura"}, res.Discrepancies)
	assert.Equal(t, model.VerificationSuspicious, res.Verification[0].Status)
}

func TestProcess_VerifierDegradesWithoutFailing(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	expectPersist(st, "completed: confidence CONSENSUS; verification degraded for: numero_escritura, notario")

	ocr := deedOCR()
	ocr.Blocks = append(ocr.Blocks, line(-1, 0.5, "garbage"))
	res, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
		Process(context.Background(), jobID, ocr)
	require.NoError(t, err)

	assert.Equal(t, model.ConfidenceConsensus, res.Confidence)
	require.Len(t, res.Verification, 2)
	for _, v := range res.Verification {
		assert.Empty(t, v.Status)
		assert.NotEmpty(t, v.Error)
	}
}

func TestProcess_NoBlocksSkipsVerification(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	expectPersist(st, "completed: confidence CONSENSUS")

	res, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
		Process(context.Background(), jobID, &model.OcrResult{Text: "texto"})
	require.NoError(t, err)
	assert.Nil(t, res.Verification)
}

func TestProcess_SourceFailureFailsJob(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	details := expectFailed(st, model.ErrorKindSourceExtraction)

	a := returning("anthropic", agreedFields())
	b := failing("gemini", errors.New("safety block"))
	_, err := newProcessor(st, a, b).Process(context.Background(), jobID, deedOCR())
	require.Error(t, err)

	var srcErr *SourceExtractionError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, []string{"gemini"}, srcErr.Sources())
	assert.Equal(t, []string{"gemini"}, details.Sources)
	assert.False(t, details.Retryable)
	assert.Contains(t, details.Message, "gemini")
	assert.EqualValues(t, 1, a.calls.Load(), "the other source still runs to completion")
}

func TestProcess_EmptySourceResultFailsJob(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	details := expectFailed(st, model.ErrorKindSourceExtraction)

	_, err := newProcessor(st, returning("anthropic", map[string]string{}), returning("gemini", agreedFields())).
		Process(context.Background(), jobID, deedOCR())
	require.Error(t, err)
	assert.Equal(t, []string{"anthropic"}, details.Sources)
}

func TestProcess_BothSourcesFail(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	details := expectFailed(st, model.ErrorKindSourceExtraction)

	_, err := newProcessor(st, failing("anthropic", errors.New("401")), failing("gemini", errors.New("400"))).
		Process(context.Background(), jobID, deedOCR())
	require.Error(t, err)
	assert.Equal(t, []string{"anthropic", "gemini"}, details.Sources)
}

func TestProcess_SourceTimeout(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	details := expectFailed(st, model.ErrorKindSourceExtraction)

	slow := &fakeSource{name: "gemini", fn: func(ctx context.Context) (*model.StructuredExtraction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	p := New(Config{SourceTimeout: 20 * time.Millisecond, Thresholds: verify.DefaultThresholds()},
		st, testRegistry(), returning("anthropic", agreedFields()), slow, nil)

	_, err := p.Process(context.Background(), jobID, deedOCR())
	require.Error(t, err)
	assert.Contains(t, details.Message, "timed out after 20ms")
	assert.True(t, details.Retryable)
}

func TestProcess_UnsupportedDocumentType(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeUnknown)
	details := expectFailed(st, model.ErrorKindUnsupportedType)

	a := returning("anthropic", agreedFields())
	b := returning("gemini", agreedFields())
	_, err := newProcessor(st, a, b).Process(context.Background(), jobID, deedOCR())
	require.Error(t, err)

	var unsupported *UnsupportedDocumentTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, model.DocumentTypeUnknown, unsupported.Type)
	assert.False(t, details.Retryable)
	assert.Zero(t, a.calls.Load())
	assert.Zero(t, b.calls.Load())
}

func TestProcess_PersistenceFailureMarksFailed(t *testing.T) {
	dbErr := errors.New("read tcp 10.0.0.5:5432: i/o timeout")
	tests := []struct {
		name    string
		op      string
		expect  func(st *storemocks.MockStore)
		discard bool
	}{
		{
			name: "result insert",
			op:   "create extraction result",
			expect: func(st *storemocks.MockStore) {
				st.On("CreateExtractionResult", mock.Anything, mock.Anything).Return("", dbErr).Once()
			},
		},
		{
			name: "fields insert",
			op:   "insert extracted fields",
			expect: func(st *storemocks.MockStore) {
				st.On("CreateExtractionResult", mock.Anything, mock.Anything).Return(resultID, nil).Once()
				st.On("InsertExtractedFields", mock.Anything, resultID, mock.Anything).Return(dbErr).Once()
			},
			discard: true,
		},
		{
			name: "job completion",
			op:   "complete job",
			expect: func(st *storemocks.MockStore) {
				st.On("CreateExtractionResult", mock.Anything, mock.Anything).Return(resultID, nil).Once()
				st.On("InsertExtractedFields", mock.Anything, resultID, mock.Anything).Return(nil).Once()
				st.On("CompleteJob", mock.Anything, jobID, resultID, mock.Anything).Return(dbErr).Once()
			},
			discard: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storemocks.NewMockStore(t)
			expectJob(st, model.JobStatusPending)
			expectStart(st, model.DocumentTypeEscritura)
			tt.expect(st)
			if tt.discard {
				st.On("DeleteExtractionResult", mock.Anything, resultID).Return(nil).Once()
			}
			details := expectFailed(st, model.ErrorKindPersistence)

			_, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
				Process(context.Background(), jobID, deedOCR())
			require.Error(t, err)

			var persistErr *PersistenceError
			require.ErrorAs(t, err, &persistErr)
			assert.Equal(t, tt.op, persistErr.Op)
			assert.True(t, details.Retryable)
			st.AssertNotCalled(t, "RecordProvenance", mock.Anything, mock.Anything)
		})
	}
}

func TestProcess_DiscardFailureStillMarksFailed(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	st.On("CreateExtractionResult", mock.Anything, mock.Anything).Return(resultID, nil).Once()
	st.On("InsertExtractedFields", mock.Anything, resultID, mock.Anything).Return(errors.New("copy failed")).Once()
	st.On("DeleteExtractionResult", mock.Anything, resultID).Return(errors.New("connection reset")).Once()
	expectFailed(st, model.ErrorKindPersistence)

	_, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
		Process(context.Background(), jobID, deedOCR())
	require.Error(t, err)
}

func TestProcess_ProvenanceFailureIsLogged(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	st.On("CreateExtractionResult", mock.Anything, mock.Anything).Return(resultID, nil).Once()
	st.On("InsertExtractedFields", mock.Anything, resultID, mock.Anything).Return(nil).Once()
	st.On("RecordProvenance", mock.Anything, mock.Anything).Return(errors.New("disk full")).Twice()
	st.On("CompleteJob", mock.Anything, jobID, resultID, "completed: confidence CONSENSUS").Return(nil).Once()

	_, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
		Process(context.Background(), jobID, deedOCR())
	require.NoError(t, err)
}

func TestProcess_FailedStateSurvivesCancellation(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectStart(st, model.DocumentTypeEscritura)
	st.On("UpdateJobStatus",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }),
		jobID, model.JobStatusFailed, mock.Anything, mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeSource{name: "anthropic", fn: func(context.Context) (*model.StructuredExtraction, error) {
		cancel()
		return nil, context.Canceled
	}}
	_, err := newProcessor(st, a, returning("gemini", agreedFields())).Process(ctx, jobID, deedOCR())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_TerminalJob(t *testing.T) {
	for _, status := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			st := storemocks.NewMockStore(t)
			expectJob(st, status)

			_, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
				Process(context.Background(), jobID, deedOCR())
			require.ErrorIs(t, err, ErrJobTerminal)
		})
	}
}

func TestProcess_JobInFlight(t *testing.T) {
	st := storemocks.NewMockStore(t)
	p := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields()))

	release, ok := p.inflight.acquire(jobID)
	require.True(t, ok)
	defer release()

	_, err := p.Process(context.Background(), jobID, deedOCR())
	require.ErrorIs(t, err, ErrJobInFlight)
	assert.Equal(t, 1, p.InFlight())
}

func TestProcess_MissingJob(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("GetJob", mock.Anything, jobID).Return(nil, store.ErrNotFound).Once()

	_, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
		Process(context.Background(), jobID, deedOCR())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_OCRThenExtraction(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	st.On("UpdateJobStatus", mock.Anything, jobID, model.JobStatusProcessingTextract, "running OCR", (*model.ErrorDetails)(nil)).
		Return(nil).Once()
	expectStart(st, model.DocumentTypeEscritura)
	expectPersist(st, "completed: confidence CONSENSUS")

	p := New(Config{Thresholds: verify.DefaultThresholds()}, st, testRegistry(),
		returning("anthropic", agreedFields()), returning("gemini", agreedFields()), &fakeOCR{res: deedOCR()})
	res, err := p.Run(context.Background(), jobID, "/tmp/doc-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceConsensus, res.Confidence)
	assert.Len(t, res.Verification, 2)
	assert.Zero(t, p.InFlight())
}

func TestRun_OCRFailure(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	st.On("UpdateJobStatus", mock.Anything, jobID, model.JobStatusProcessingTextract, "running OCR", (*model.ErrorDetails)(nil)).
		Return(nil).Once()
	details := expectFailed(st, model.ErrorKindOCR)

	p := New(Config{}, st, testRegistry(), returning("anthropic", agreedFields()), returning("gemini", agreedFields()),
		&fakeOCR{err: errors.New("pdftotext: exit status 1")})
	_, err := p.Run(context.Background(), jobID, "/tmp/doc-1.pdf")
	require.Error(t, err)
	assert.Contains(t, details.Message, "exit status 1")
}

func TestRun_OCRReturnsNothing(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	st.On("UpdateJobStatus", mock.Anything, jobID, model.JobStatusProcessingTextract, "running OCR", (*model.ErrorDetails)(nil)).
		Return(nil).Once()
	details := expectFailed(st, model.ErrorKindOCR)

	p := New(Config{}, st, testRegistry(), returning("anthropic", agreedFields()), returning("gemini", agreedFields()),
		&fakeOCR{})
	_, err := p.Run(context.Background(), jobID, "/tmp/doc-1.pdf")
	require.Error(t, err)

	var ocrErr *OCRError
	assert.ErrorAs(t, err, &ocrErr)
	assert.Contains(t, details.Message, "returned no result")
}

func TestRun_NoOCRProvider(t *testing.T) {
	st := storemocks.NewMockStore(t)
	expectJob(st, model.JobStatusPending)
	expectFailed(st, model.ErrorKindOCR)

	_, err := newProcessor(st, returning("anthropic", agreedFields()), returning("gemini", agreedFields())).
		Run(context.Background(), jobID, "/tmp/doc-1.pdf")
	require.Error(t, err)
}

func TestCompletionMessage(t *testing.T) {
	cons := &model.ConsensusResult{Confidence: model.ConfidencePartial, Discrepancies: []string{"monto", "objeto"}}
	assert.Equal(t, "completed: confidence PARTIAL; 2 field(s) need review: monto, objeto; verification degraded for: folio",
		completionMessage(cons, []string{"folio"}))
}
