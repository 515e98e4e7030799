package resilience

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/docextract/internal/config"
)

// FromRetryConfig converts config values to a RetryConfig.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if jitterFraction >= 0 {
		cfg.JitterFraction = jitterFraction
	}
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}

// FromSourcesConfig builds the guard policy applied to each extraction source.
// A zero rate disables limiting. Only transient failures trip the breaker.
func FromSourcesConfig(cfg config.SourcesConfig) GuardConfig {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	cb := FromCircuitConfig(cfg.FailureThreshold, cfg.ResetTimeoutSecs)
	cb.ShouldTrip = IsTransient

	return GuardConfig{
		Limit:   limit,
		Burst:   burst,
		Retry:   FromRetryConfig(cfg.MaxAttempts, cfg.InitialBackoffMs, cfg.MaxBackoffMs, 0, -1),
		Circuit: cb,
	}
}
