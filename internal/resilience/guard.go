package resilience

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// GuardConfig combines the rate, retry and circuit policies for one service.
type GuardConfig struct {
	Limit   rate.Limit
	Burst   int
	Retry   RetryConfig
	Circuit CircuitBreakerConfig
}

// Guard applies rate limiting, circuit breaking and retries to calls against
// a single upstream service. Every attempt waits for a limiter token and
// passes through the breaker; an open circuit ends the retry loop.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *CircuitBreaker
	retry   RetryConfig
}

// NewGuard creates a Guard for the named service.
func NewGuard(name string, cfg GuardConfig) *Guard {
	if cfg.Limit == 0 {
		cfg.Limit = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = RetryLogger(name, "call")
	}
	if cfg.Circuit.OnStateChange == nil {
		cfg.Circuit.OnStateChange = StateLogger(name)
	}
	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(cfg.Limit, cfg.Burst),
		breaker: NewCircuitBreaker(cfg.Circuit),
		retry:   cfg.Retry,
	}
}

// Name returns the guarded service name.
func (g *Guard) Name() string { return g.name }

// State reports the breaker state.
func (g *Guard) State() CircuitState { return g.breaker.State() }

// GuardVal runs fn under g's policies and returns its value.
func GuardVal[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return DoVal(ctx, g.retry, func(ctx context.Context) (T, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, eris.Wrapf(err, "resilience: %s rate limit wait", g.name)
		}
		return ExecuteVal(ctx, g.breaker, fn)
	})
}
