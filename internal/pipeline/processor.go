// Package pipeline runs one extraction job end to end: fan out to both
// extraction sources, reconcile their results, cross-check critical fields
// against OCR and persist the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docextract/internal/consensus"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/ocr"
	"github.com/sells-group/docextract/internal/schema"
	"github.com/sells-group/docextract/internal/source"
	"github.com/sells-group/docextract/internal/store"
	"github.com/sells-group/docextract/internal/textmatch"
	"github.com/sells-group/docextract/internal/verify"
)

// Config holds the per-job policy knobs of the processor.
type Config struct {
	// SourceTimeout bounds each extraction call. Zero means no timeout.
	SourceTimeout time.Duration
	Thresholds    verify.Thresholds
}

// Processor drives extraction jobs. It is safe for concurrent use across
// different job ids; a job id is processed by at most one call at a time.
type Processor struct {
	cfg     Config
	store   store.Store
	schemas *schema.Registry
	sourceA source.Source
	sourceB source.Source
	ocr     ocr.Provider

	inflight *inflight
}

// New creates a Processor. sourceA wins tie-breaks in consensus. ocrProvider
// may be nil when only Process is used.
func New(
	cfg Config,
	st store.Store,
	schemas *schema.Registry,
	sourceA, sourceB source.Source,
	ocrProvider ocr.Provider,
) *Processor {
	return &Processor{
		cfg:      cfg,
		store:    st,
		schemas:  schemas,
		sourceA:  sourceA,
		sourceB:  sourceB,
		ocr:      ocrProvider,
		inflight: newInflight(),
	}
}

// Run processes a job from the original document: it records
// PROCESSING_TEXTRACT, runs OCR over path and continues as Process.
func (p *Processor) Run(ctx context.Context, jobID, path string) (*model.ExtractionResult, error) {
	release, ok := p.inflight.acquire(jobID)
	if !ok {
		return nil, eris.Wrapf(ErrJobInFlight, "job %s", jobID)
	}
	defer release()

	job, err := p.loadJob(ctx, jobID, model.JobStatusProcessingTextract)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("document_id", job.DocumentID))

	if p.ocr == nil {
		return nil, p.fail(ctx, job, &OCRError{Err: eris.New("no OCR provider configured")})
	}
	if err := p.store.UpdateJobStatus(ctx, job.ID, model.JobStatusProcessingTextract, "running OCR", nil); err != nil {
		return nil, p.fail(ctx, job, &PersistenceError{Op: "update job status", Err: err})
	}

	start := time.Now()
	res, err := p.ocr.Recognize(ctx, path)
	if err == nil && res == nil {
		err = eris.Errorf("provider %s returned no result", p.ocr.Name())
	}
	if err != nil {
		return nil, p.fail(ctx, job, &OCRError{Err: err})
	}
	log.Info("pipeline: ocr complete",
		zap.String("provider", p.ocr.Name()),
		zap.Int("blocks", len(res.Blocks)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return p.process(ctx, job, res)
}

// Process runs the job from already-computed OCR output. The job moves to
// PROCESSING_LLM on entry and ends COMPLETED or FAILED. On failure the
// FAILED state is persisted before the error is returned.
func (p *Processor) Process(ctx context.Context, jobID string, ocrResult *model.OcrResult) (*model.ExtractionResult, error) {
	release, ok := p.inflight.acquire(jobID)
	if !ok {
		return nil, eris.Wrapf(ErrJobInFlight, "job %s", jobID)
	}
	defer release()

	job, err := p.loadJob(ctx, jobID, model.JobStatusProcessingLLM)
	if err != nil {
		return nil, err
	}
	return p.process(ctx, job, ocrResult)
}

// InFlight reports how many jobs this processor is currently running.
func (p *Processor) InFlight() int {
	return p.inflight.active()
}

func (p *Processor) loadJob(ctx context.Context, jobID string, next model.JobStatus) (*model.ExtractionJob, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load job %s", jobID)
	}
	if job.Status.IsTerminal() {
		return nil, eris.Wrapf(ErrJobTerminal, "job %s is %s", job.ID, job.Status)
	}
	if !job.Status.CanTransitionTo(next) {
		return nil, eris.Errorf("pipeline: job %s cannot move from %s to %s", job.ID, job.Status, next)
	}
	return job, nil
}

func (p *Processor) process(ctx context.Context, job *model.ExtractionJob, ocrResult *model.OcrResult) (*model.ExtractionResult, error) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("document_id", job.DocumentID))
	log.Info("pipeline: starting extraction")
	start := time.Now()

	if err := p.store.UpdateJobStatus(ctx, job.ID, model.JobStatusProcessingLLM, "extracting structured fields", nil); err != nil {
		return nil, p.fail(ctx, job, &PersistenceError{Op: "update job status", Err: err})
	}
	job.Status = model.JobStatusProcessingLLM

	doc, err := p.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return nil, p.fail(ctx, job, &PersistenceError{Op: "load document", Err: err})
	}
	sch, ok := p.schemas.Lookup(doc.Type)
	if !ok {
		return nil, p.fail(ctx, job, &UnsupportedDocumentTypeError{Type: doc.Type})
	}

	text := ""
	var blocks []model.OcrToken
	if ocrResult != nil {
		text = ocrResult.Text
		blocks = ocrResult.Blocks
	}

	a, b, err := p.extractBoth(ctx, text, sch)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	cons := consensus.Compare(sch, a, b)
	log.Info("pipeline: consensus computed",
		zap.String("confidence", string(cons.Confidence)),
		zap.Strings("discrepancies", cons.Discrepancies),
	)

	var verifications []model.FieldVerification
	var degraded []string
	if len(blocks) > 0 {
		verifications, degraded = p.verifyCritical(sch, cons, blocks)
	} else {
		log.Info("pipeline: no OCR blocks, skipping verification")
	}

	result := &model.ExtractionResult{
		DocumentID:    doc.ID,
		JobID:         job.ID,
		SourceA:       *a,
		SourceB:       *b,
		Consensus:     cons.Consensus,
		Confidence:    cons.Confidence,
		Discrepancies: cons.Discrepancies,
		Verification:  verifications,
		CreatedAt:     time.Now().UTC(),
	}

	resultID, err := p.store.CreateExtractionResult(ctx, result)
	if err != nil {
		return nil, p.fail(ctx, job, &PersistenceError{Op: "create extraction result", Err: err})
	}
	result.ID = resultID

	fields := consensus.ToExtractedFields(cons)
	if err := p.store.InsertExtractedFields(ctx, resultID, fields); err != nil {
		p.discardResult(ctx, resultID)
		return nil, p.fail(ctx, job, &PersistenceError{Op: "insert extracted fields", Err: err})
	}

	msg := completionMessage(cons, degraded)
	if err := p.store.CompleteJob(ctx, job.ID, resultID, msg); err != nil {
		p.discardResult(ctx, resultID)
		return nil, p.fail(ctx, job, &PersistenceError{Op: "complete job", Err: err})
	}

	p.recordProvenance(ctx, resultID, doc.Type)

	log.Info("pipeline: job completed",
		zap.String("result_id", resultID),
		zap.String("confidence", string(result.Confidence)),
		zap.Int("fields", len(fields)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// extractBoth calls both sources concurrently and waits for both. Neither
// failure cancels the other call; any failure, or an empty field set,
// fails the job.
func (p *Processor) extractBoth(ctx context.Context, text string, sch *schema.Schema) (*model.StructuredExtraction, *model.StructuredExtraction, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures = make(map[string]error)
		results  [2]*model.StructuredExtraction
	)

	for i, src := range []source.Source{p.sourceA, p.sourceB} {
		g.Go(func() error {
			res, err := p.callSource(ctx, src, text, sch)
			if err == nil && res.IsEmpty() {
				err = eris.New("returned no fields")
			}
			if err != nil {
				mu.Lock()
				failures[src.Name()] = err
				mu.Unlock()
				return err
			}
			results[i] = res
			return nil
		})
	}
	// Every error is already in failures; Wait only joins.
	_ = g.Wait()

	if len(failures) > 0 {
		return nil, nil, &SourceExtractionError{Errs: failures}
	}
	return results[0], results[1], nil
}

func (p *Processor) callSource(ctx context.Context, src source.Source, text string, sch *schema.Schema) (*model.StructuredExtraction, error) {
	if p.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SourceTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := src.Extract(ctx, text, sch)
	zap.L().Debug("pipeline: source returned",
		zap.String("source", src.Name()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, eris.Wrapf(err, "timed out after %s", p.cfg.SourceTimeout)
		}
		return nil, err
	}
	if res != nil && res.Source == "" {
		res.Source = src.Name()
	}
	return res, nil
}

// verifyCritical checks every non-empty critical consensus value against the
// OCR blocks and escalates cons for any field not CONFIRMED. Fields whose
// check errors are reported as degraded and left unverified.
func (p *Processor) verifyCritical(sch *schema.Schema, cons *model.ConsensusResult, blocks []model.OcrToken) ([]model.FieldVerification, []string) {
	v := verify.New(blocks, p.cfg.Thresholds)

	var out []model.FieldVerification
	var degraded []string
	for _, spec := range sch.CriticalFields() {
		value := cons.Consensus[spec.Name]
		if textmatch.Normalize(value) == "" {
			continue
		}

		res, err := safeVerify(v, spec.Name, value, spec.Type)
		if err != nil {
			zap.L().Warn("pipeline: verification degraded",
				zap.String("field", spec.Name),
				zap.Error(err),
			)
			degraded = append(degraded, spec.Name)
			out = append(out, model.FieldVerification{Field: spec.Name, Error: err.Error()})
			continue
		}

		out = append(out, model.FieldVerification{
			Field:   spec.Name,
			Status:  res.Status,
			Score:   res.Score,
			Matched: res.Matched,
			Page:    res.Page,
		})
		if res.Status != model.VerificationConfirmed {
			consensus.Escalate(cons, spec.Name)
		}
	}
	return out, degraded
}

// safeVerify isolates one field check so that neither an error nor a panic
// escapes into the job.
func safeVerify(v *verify.Verifier, field, value string, vt schema.ValueType) (res verify.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &VerificationError{Field: field, Err: eris.Errorf("panic: %v", r)}
		}
	}()
	res, err = v.VerifyField(field, value, vt)
	if err != nil {
		return res, &VerificationError{Field: field, Err: err}
	}
	return res, nil
}

func (p *Processor) recordProvenance(ctx context.Context, resultID string, docType model.DocumentType) {
	for _, src := range []source.Source{p.sourceA, p.sourceB} {
		err := p.store.RecordProvenance(ctx, model.PromptProvenance{
			ResultID:   resultID,
			Source:     src.Name(),
			Versions:   src.Versions(docType),
			RecordedAt: time.Now().UTC(),
		})
		if err != nil {
			zap.L().Warn("pipeline: record provenance failed",
				zap.String("result_id", resultID),
				zap.String("source", src.Name()),
				zap.Error(err),
			)
		}
	}
}

// discardResult removes a result whose job cannot complete, so no result
// outlives a FAILED job.
func (p *Processor) discardResult(ctx context.Context, resultID string) {
	if err := p.store.DeleteExtractionResult(context.WithoutCancel(ctx), resultID); err != nil {
		zap.L().Error("pipeline: could not discard result of failed job",
			zap.String("result_id", resultID),
			zap.Error(err),
		)
	}
}

// fail persists FAILED with details derived from cause and returns cause
// wrapped for the caller. The write uses a context detached from ctx's
// cancellation so the state is recorded even when ctx is done.
func (p *Processor) fail(ctx context.Context, job *model.ExtractionJob, cause error) error {
	details := errorDetails(cause)
	log := zap.L().With(zap.String("job_id", job.ID))
	log.Error("pipeline: job failed",
		zap.String("kind", string(details.Kind)),
		zap.Strings("sources", details.Sources),
		zap.Error(cause),
	)

	writeCtx := context.WithoutCancel(ctx)
	if err := p.store.UpdateJobStatus(writeCtx, job.ID, model.JobStatusFailed, details.Message, details); err != nil {
		log.Error("pipeline: could not persist FAILED state", zap.Error(err))
		return eris.Wrapf(cause, "pipeline: job %s failed (status not persisted: %v)", job.ID, err)
	}
	job.Status = model.JobStatusFailed
	return eris.Wrapf(cause, "pipeline: job %s failed", job.ID)
}

func completionMessage(cons *model.ConsensusResult, degraded []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "completed: confidence %s", cons.Confidence)
	if n := len(cons.Discrepancies); n > 0 {
		fmt.Fprintf(&b, "; %d field(s) need review: %s", n, strings.Join(cons.Discrepancies, ", "))
	}
	if len(degraded) > 0 {
		fmt.Fprintf(&b, "; verification degraded for: %s", strings.Join(degraded, ", "))
	}
	return b.String()
}
