// Package retry runs an operation against a fixed backoff schedule.
//
// The schedule is explicit rather than exponential: callers that talk to
// document services want a predictable short/medium/long cadence and a hard
// cap on total attempts.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(attempt int) error {
//	    return callUpstream(ctx)
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned (wrapping the last failure) when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// NonRetryableError wraps errors that should not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err as terminal. A nil err stays nil.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was marked terminal.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config describes the attempt budget and the pause before each retry.
type Config struct {
	MaxAttempts int             // total attempts including the first; <=0 means 1
	Schedule    []time.Duration // pause before retry n is Schedule[n-1], last entry repeats
	MaxDelay    time.Duration   // cap applied to every pause; 0 means uncapped
	OnRetry     func(attempt int, err error)
}

// DefaultConfig is three attempts with a short then medium pause, capped at 2s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Schedule:    []time.Duration{250 * time.Millisecond, 750 * time.Millisecond, 2 * time.Second},
		MaxDelay:    2 * time.Second,
	}
}

// Delay returns the pause taken after the given failed attempt (1-based).
func (c Config) Delay(attempt int) time.Duration {
	if len(c.Schedule) == 0 || attempt < 1 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(c.Schedule) {
		idx = len(c.Schedule) - 1
	}
	d := c.Schedule[idx]
	if d < 0 {
		d = 0
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends, or the attempt budget is spent. fn receives the 1-based attempt number.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == maxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		if d := cfg.Delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(attempt int) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(attempt int) error {
		var innerErr error
		result, innerErr = fn(attempt)
		return innerErr
	})
	return result, err
}
