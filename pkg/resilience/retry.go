package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig controls backoff. Zero fields take the defaults of Retry.
// Retryable, when set, stops retrying as soon as it reports false.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Retryable      func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// delay is the backoff before attempt+1, jittered by ±JitterFraction and
// capped at MaxDelay.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for range attempt - 1 {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	d += d * c.JitterFraction * (2*rand.Float64() - 1)
	return time.Duration(min(d, float64(c.MaxDelay)))
}

// Retry calls fn until it succeeds, attempts run out or ctx ends, and returns
// the value of the successful call.
func Retry[T any](ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return v, nil
		}
		if attempt == cfg.MaxAttempts {
			return zero, fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, err)
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, fmt.Errorf("%s failed permanently: %w", name, err)
		}

		wait := cfg.delay(attempt)
		logger.Warn("operation failed, retrying",
			"attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", err, "next_delay", wait)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s aborted during backoff: %w", name, ctx.Err())
		}
	}
}
