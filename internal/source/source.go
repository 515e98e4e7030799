// Package source holds the two independent structured-extraction sources
// and the decorator that applies rate limiting, retries and a circuit
// breaker around them.
package source

import (
	"context"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/schema"
)

// Source extracts a field set for one document from its OCR text.
type Source interface {
	// Name identifies the source in error reports and provenance records.
	Name() string
	// Versions reports the model and prompt revision used for docType.
	Versions(docType model.DocumentType) model.SourceVersions
	// Extract returns the source's field set for text, keyed by the
	// schema's field names.
	Extract(ctx context.Context, text string, s *schema.Schema) (*model.StructuredExtraction, error)
}
