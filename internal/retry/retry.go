// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how many times to try and how long to wait in between.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Delay returns the wait before the given attempt (2 for the first retry).
	Delay func(attempt int) time.Duration

	// OnRetry runs after a failed attempt that will be retried, before the delay.
	OnRetry func(attempt int, err error)
}

// Fixed returns a delay function that always waits d.
func Fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a permanent error, or the attempts
// run out. It returns the number of attempts made and the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			var delay time.Duration
			if p.Delay != nil {
				delay = p.Delay(attempt)
			}
			if err := Sleep(ctx, delay); err != nil {
				return attempt - 1, errors.Join(lastErr, err)
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}

		lastErr = err
		if attempt < maxAttempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}

	return maxAttempts, lastErr
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
