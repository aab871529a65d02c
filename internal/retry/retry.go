// File: internal/retry/retry.go
// Brief: Composable retry policy with clamped exponential backoff.

// Package retry wraps fallible operations with a bounded retry policy keyed
// to an error classifier. A policy is a plain value applied at the call
// site; the operation itself carries no retry annotation.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Classifier maps an error to a kind string. The empty string means
// unclassified.
type Classifier func(err error) string

// Policy retries an operation while its failures classify as Target.
// Any other classification propagates immediately without sleeping, and
// exhausting MaxAttempts re-returns the original error unmodified.
type Policy struct {
	Target      string
	MaxAttempts int
	Min         time.Duration
	Max         time.Duration

	// Sleep is a test hook; nil sleeps on the clock, aborting early when
	// the context is cancelled.
	Sleep func(time.Duration)
}

// Do runs op under the policy.
func (p Policy) Do(ctx context.Context, log *zap.SugaredLogger, classify Classifier, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if classify == nil || classify(err) != p.Target || attempt >= attempts {
			return err
		}
		wait := p.Backoff(attempt)
		if log != nil {
			log.Warnf("retrying after %s (attempt %d/%d); waiting %s", p.Target, attempt, attempts, wait)
		}
		if !p.sleep(ctx, wait) {
			// Cancelled mid-sleep: surface the real failure, not the sleep.
			return err
		}
	}
}

// Backoff returns the sleep before the next attempt: 1s * 2^(attempt-1),
// clamped to [Min, Max]. attempt is 1-based.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 16 {
		shift = 16
	}
	d := time.Second * time.Duration(1<<uint(shift))
	if d < p.Min {
		d = p.Min
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) bool {
	if p.Sleep != nil {
		p.Sleep(d)
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
