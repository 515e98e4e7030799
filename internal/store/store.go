package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrJobTerminal is returned when a write targets a COMPLETED or FAILED job.
	ErrJobTerminal = eris.New("store: job is terminal")
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status       model.JobStatus `json:"status,omitempty"`
	DocumentID   string          `json:"document_id,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction jobs and results.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	// Jobs
	CreateJob(ctx context.Context, documentID string) (*model.ExtractionJob, error)
	GetJob(ctx context.Context, id string) (*model.ExtractionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.ExtractionJob, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, message string, details *model.ErrorDetails) error
	CompleteJob(ctx context.Context, id, resultID, message string) error

	// Results
	CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) (string, error)
	InsertExtractedFields(ctx context.Context, resultID string, fields []model.ExtractedField) error
	// DeleteExtractionResult removes a result and its fields. Deleting a
	// missing result is not an error.
	DeleteExtractionResult(ctx context.Context, id string) error
	GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error)
	ListExtractedFields(ctx context.Context, resultID string) ([]model.ExtractedField, error)
	CountResultsByConfidence(ctx context.Context, since time.Time) (map[model.ConfidenceTier]int, error)

	// Provenance
	RecordProvenance(ctx context.Context, p model.PromptProvenance) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// notTerminal is the guard appended to every job UPDATE.
const notTerminal = `status NOT IN ('COMPLETED', 'FAILED')`
