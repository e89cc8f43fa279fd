package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline of timeout and returns its value. When
// the deadline passes first the error wraps context.DeadlineExceeded, even if
// fn ignores its context; a cancelled parent is reported as such. A timeout
// of zero or less runs fn directly.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		if cause := context.Cause(ctx); cause != context.DeadlineExceeded {
			return zero, fmt.Errorf("%s: cancelled: %w", name, cause)
		}
		return zero, fmt.Errorf("%s: %w (limit %v)", name, context.DeadlineExceeded, timeout)
	}
}
