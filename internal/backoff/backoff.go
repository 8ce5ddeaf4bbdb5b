// Package backoff provides the bounded exponential delay schedule used for
// rate-limited (429) retries.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a capped exponential schedule: attempt k waits
// Base * 2^k, never more than Cap, for at most MaxAttempts attempts.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
	// Jitter adds up to the given fraction of the computed delay
	// (0 disables it). The jittered delay is still clamped at Cap,
	// so with Jitter <= 1 the schedule stays non-decreasing across
	// attempts.
	Jitter float64
}

// Delay returns the wait before retry attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	if p.Jitter > 0 && d > 0 && (p.Cap <= 0 || d < p.Cap) {
		d += time.Duration(p.Jitter * rand.Float64() * float64(d))
		if p.Cap > 0 && d > p.Cap {
			d = p.Cap
		}
	}
	return d
}

// Exhausted reports whether attempt (0-based) is past the attempt budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Sleep waits d or until ctx is done, whichever is first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
