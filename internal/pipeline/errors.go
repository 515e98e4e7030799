package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

var (
	// ErrJobInFlight is returned when another call is already processing the job.
	ErrJobInFlight = eris.New("pipeline: job already in flight")
	// ErrJobTerminal is returned when asked to process a COMPLETED or FAILED job.
	ErrJobTerminal = eris.New("pipeline: job is terminal")
)

// UnsupportedDocumentTypeError means no schema exists for the document type.
// The document needs reclassification; retrying will not help.
type UnsupportedDocumentTypeError struct {
	Type model.DocumentType
}

func (e *UnsupportedDocumentTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q", string(e.Type))
}

// SourceExtractionError names every extraction source that failed or
// returned nothing.
type SourceExtractionError struct {
	Errs map[string]error
}

// Sources returns the failed source names in sorted order.
func (e *SourceExtractionError) Sources() []string {
	names := make([]string, 0, len(e.Errs))
	for name := range e.Errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *SourceExtractionError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, name := range e.Sources() {
		parts = append(parts, fmt.Sprintf("%s (%v)", name, e.Errs[name]))
	}
	return "source extraction failed: " + strings.Join(parts, "; ")
}

func (e *SourceExtractionError) Unwrap() []error {
	out := make([]error, 0, len(e.Errs))
	for _, name := range e.Sources() {
		out = append(out, e.Errs[name])
	}
	return out
}

// PersistenceError is a failed store write during processing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// OCRError is a failure of the OCR provider.
type OCRError struct {
	Err error
}

func (e *OCRError) Error() string { return fmt.Sprintf("ocr failure: %v", e.Err) }

func (e *OCRError) Unwrap() error { return e.Err }

// VerificationError is a per-field verification failure. It never fails a
// job; the field is left unverified.
type VerificationError struct {
	Field string
	Err   error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of %s failed: %v", e.Field, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// errorDetails maps a processing failure onto the persisted error payload.
func errorDetails(err error) *model.ErrorDetails {
	d := &model.ErrorDetails{
		Kind:      model.ErrorKindInternal,
		Message:   err.Error(),
		Retryable: resilience.IsTransient(err),
	}

	var unsupported *UnsupportedDocumentTypeError
	var sourceErr *SourceExtractionError
	var persistErr *PersistenceError
	var ocrErr *OCRError
	switch {
	case errors.As(err, &unsupported):
		d.Kind = model.ErrorKindUnsupportedType
		d.Retryable = false
	case errors.As(err, &sourceErr):
		d.Kind = model.ErrorKindSourceExtraction
		d.Sources = sourceErr.Sources()
	case errors.As(err, &persistErr):
		d.Kind = model.ErrorKindPersistence
	case errors.As(err, &ocrErr):
		d.Kind = model.ErrorKindOCR
	}
	return d
}
