package source

import (
	"context"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/schema"
)

// Guarded wraps a Source with a rate limiter, a circuit breaker and
// retries on transient failures.
type Guarded struct {
	inner Source
	guard *resilience.Guard
}

// NewGuarded decorates inner with the given policy.
func NewGuarded(inner Source, cfg resilience.GuardConfig) *Guarded {
	return &Guarded{inner: inner, guard: resilience.NewGuard(inner.Name(), cfg)}
}

// Name implements Source.
func (g *Guarded) Name() string { return g.inner.Name() }

// Versions implements Source.
func (g *Guarded) Versions(docType model.DocumentType) model.SourceVersions {
	return g.inner.Versions(docType)
}

// Extract implements Source.
func (g *Guarded) Extract(ctx context.Context, text string, s *schema.Schema) (*model.StructuredExtraction, error) {
	return resilience.GuardVal(ctx, g.guard, func(ctx context.Context) (*model.StructuredExtraction, error) {
		return g.inner.Extract(ctx, text, s)
	})
}

// State reports the circuit state of the wrapped source.
func (g *Guarded) State() resilience.CircuitState { return g.guard.State() }
