package vision

import (
	"context"
	"time"
)

// SleepFunc waits for the given duration or until the context is canceled.
// Injected so tests can record delays instead of actually sleeping.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy bounds how often a transient analysis failure is retried. The
// delay starts at BaseDelay and is multiplied by Multiplier after each
// failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy mirrors the service defaults: three attempts with a
// doubling one-second backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2.0}
}

// Do runs fn until it succeeds or the attempt budget is exhausted, sleeping
// between attempts. Context cancellation aborts immediately with the context
// error; exhaustion returns a *TerminalError wrapping the last failure.
func (p RetryPolicy) Do(ctx context.Context, sleep SleepFunc, fn func() error) error {
	if sleep == nil {
		sleep = sleepWithContext
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * multiplier)
		}
	}
	return &TerminalError{Attempts: attempts, Err: lastErr}
}
