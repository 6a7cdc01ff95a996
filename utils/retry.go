package utils

import (
	"context"
	"time"

	apperrors "github.com/prodimg/studio/errors"
)

// Retry runs fn up to maxAttempts times, sleeping base×attempt between
// attempts (1×base after the first failure, 2×base after the second, and so
// on).  Each attempt is independent; partial results are discarded.  Only
// retryable errors are retried, and the wait is abandoned when ctx is done.
func Retry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) || attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * time.Duration(attempt)):
		}
	}
	return err
}
