package provider

import (
	"context"
	"time"

	"stowpay/internal/apperrors"
)

// RetryPolicy is a value object describing bounded exponential backoff. It
// can run synchronously via Do for short transport-level retries, or supply
// Delay values to a deferred task scheduler for out-of-band reattempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy keeps in-call retries short: the caller's request must
// never block for the full retry horizon.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    2 * time.Second,
	}
}

// Delay returns the backoff before the given zero-based attempt, doubling
// from BaseDelay and capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn up to MaxAttempts times, backing off between attempts. Only
// errors tagged retryable are reattempted; a decrypted business error from
// the provider returns immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return apperrors.Wrap(apperrors.KindProviderTransient, "retry aborted", ctx.Err())
			case <-timer.C:
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) {
			return err
		}
	}
	return err
}
