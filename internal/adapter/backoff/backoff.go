// Package backoff retries transient external-call failures with
// exponential backoff. Non-retryable error kinds pass through untouched,
// and after the attempt budget is spent the last error propagates
// unchanged in kind.
package backoff

import (
	"context"
	"time"

	"sopqa/internal/domain"
)

const (
	DefaultAttempts = 3
	DefaultBase     = 500 * time.Millisecond
)

// Retry runs fn up to attempts times, sleeping base, 2*base, 4*base, ...
// between tries. Only errors for which domain.Retryable holds are retried.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if base <= 0 {
		base = DefaultBase
	}

	var err error
	delay := base
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !domain.Retryable(err) {
			return err
		}
	}
	return err
}
