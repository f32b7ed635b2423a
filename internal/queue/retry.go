package queue

import (
	"context"
	"errors"
	"time"
)

// PermanentError marks a failure that must not be retried: validation
// errors such as missing input or an invalid status. Wrapping one stops
// the retry loop without consuming further attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry fails immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Retry runs fn up to maxAttempts times with exponential backoff of
// 2^attempt seconds between attempts. Permanent errors and context
// cancellation end the loop at once.
func Retry(ctx context.Context, maxAttempts int, sleep func(context.Context, time.Duration) error, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
