package engine

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: exponential growth from BaseDelay, capped at
// MaxDelay, with uniform jitter of up to JitterFactor on top of the capped
// value so concurrent callers don't retry in lockstep. A server-supplied
// retry-after hint overrides the exponential schedule (still capped).
type Backoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64

	// rand returns a value in [0, 1). Injectable for deterministic tests.
	rand func() float64
}

// NewBackoff creates a backoff calculator with the given base, cap and jitter.
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		BaseDelay:    base,
		MaxDelay:     max,
		JitterFactor: jitter,
		rand:         rand.Float64,
	}
}

// Delay returns the wait before retrying after the given zero-based attempt.
// The result lies in [capped, capped*(1+JitterFactor)] where
// capped = min(BaseDelay * 2^attempt, MaxDelay).
func (b *Backoff) Delay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > b.MaxDelay {
			return b.MaxDelay
		}
		return retryAfter
	}

	capped := b.BaseDelay << uint(attempt)
	if capped > b.MaxDelay || capped <= 0 {
		capped = b.MaxDelay
	}

	jitter := time.Duration(b.rand() * b.JitterFactor * float64(capped))
	return capped + jitter
}
