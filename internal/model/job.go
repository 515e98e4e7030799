package model

import "time"

// JobStatus represents the lifecycle state of an extraction job.
type JobStatus string

const (
	JobStatusPending            JobStatus = "PENDING"
	JobStatusProcessingTextract JobStatus = "PROCESSING_TEXTRACT"
	JobStatusProcessingLLM      JobStatus = "PROCESSING_LLM"
	JobStatusCompleted          JobStatus = "COMPLETED"
	JobStatusFailed             JobStatus = "FAILED"
)

// jobStatusRank orders non-terminal states. Terminal states share the top rank.
var jobStatusRank = map[JobStatus]int{
	JobStatusPending:            0,
	JobStatusProcessingTextract: 1,
	JobStatusProcessingLLM:      2,
	JobStatusCompleted:          3,
	JobStatusFailed:             3,
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	_, ok := jobStatusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// monotonic. Any non-terminal state may fail; COMPLETED is only reachable
// from PROCESSING_LLM.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	switch next {
	case JobStatusFailed:
		return true
	case JobStatusCompleted:
		return s == JobStatusProcessingLLM
	default:
		return jobStatusRank[next] >= jobStatusRank[s]
	}
}

// ErrorKind classifies a job failure for remediation.
type ErrorKind string

const (
	ErrorKindUnsupportedType  ErrorKind = "unsupported_document_type"
	ErrorKindSourceExtraction ErrorKind = "source_extraction_failure"
	ErrorKindPersistence      ErrorKind = "persistence_failure"
	ErrorKindOCR              ErrorKind = "ocr_failure"
	ErrorKindInternal         ErrorKind = "internal"
)

// ErrorDetails is the machine-readable failure payload stored on FAILED jobs.
type ErrorDetails struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Sources   []string  `json:"sources,omitempty"`
	Fields    []string  `json:"fields,omitempty"`
	Retryable bool      `json:"retryable"`
}

// ExtractionJob owns the lifecycle of one extraction attempt for a document.
type ExtractionJob struct {
	ID                 string        `json:"id"`
	DocumentID         string        `json:"document_id"`
	Status             JobStatus     `json:"status"`
	StatusMessage      string        `json:"status_message"`
	ErrorDetails       *ErrorDetails `json:"error_details,omitempty"`
	ExtractionResultID string        `json:"extraction_result_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}
