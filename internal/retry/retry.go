// Package retry holds the single-retry policy applied to idempotent backing
// store reads. Writes are never retried through this package.
package retry

import (
	"context"
	"errors"
)

// Once calls fn and, if it fails with an error accepted by retryable, calls
// it exactly one more time. Nothing is retried once ctx is done.
func Once(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || retryable == nil || !retryable(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}

// Transient reports whether err is worth one more attempt. Context
// cancellation, deadlines and any of the listed permanent errors (for
// example a not-found sentinel) are not.
func Transient(err error, permanent ...error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return false
		}
	}
	return true
}
