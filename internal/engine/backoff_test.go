package engine

import (
	"testing"
	"time"
)

func fixedRandBackoff(r float64) *Backoff {
	b := NewBackoff(100*time.Millisecond, 10*time.Second, 0.3)
	b.rand = func() float64 { return r }
	return b
}

func TestBackoff_MonotonicUntilCap(t *testing.T) {
	b := fixedRandBackoff(0.5)

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		d := b.Delay(attempt, 0)
		if d < prev {
			t.Errorf("delay decreased at attempt %d: %s < %s", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoff_WithinJitterBounds(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 10*time.Second, 0.3)

	for attempt := 0; attempt < 12; attempt++ {
		d := b.Delay(attempt, 0)

		capped := 100 * time.Millisecond << uint(attempt)
		if capped > 10*time.Second || capped <= 0 {
			capped = 10 * time.Second
		}

		if d < capped {
			t.Errorf("attempt %d: delay %s below capped %s", attempt, d, capped)
		}
		max := time.Duration(float64(capped) * 1.3)
		if d > max {
			t.Errorf("attempt %d: delay %s above capped*(1+jitter) %s", attempt, d, max)
		}
	}
}

func TestBackoff_NeverExceedsGlobalCeiling(t *testing.T) {
	b := fixedRandBackoff(0.999)

	ceiling := time.Duration(float64(10*time.Second) * 1.3)
	for attempt := 0; attempt < 40; attempt++ {
		if d := b.Delay(attempt, 0); d > ceiling {
			t.Errorf("attempt %d: delay %s exceeds ceiling %s", attempt, d, ceiling)
		}
	}
}

func TestBackoff_RetryAfterOverride(t *testing.T) {
	b := fixedRandBackoff(0.5)

	if d := b.Delay(0, 5*time.Second); d != 5*time.Second {
		t.Errorf("expected retry-after 5s to win, got %s", d)
	}
}

func TestBackoff_RetryAfterCapped(t *testing.T) {
	b := fixedRandBackoff(0.5)

	if d := b.Delay(0, 5*time.Minute); d != 10*time.Second {
		t.Errorf("expected retry-after capped at 10s, got %s", d)
	}
}

func TestBackoff_ZeroJitterIsDeterministic(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 10*time.Second, 0)
	b.rand = func() float64 { return 0.7 }

	if d := b.Delay(2, 0); d != 400*time.Millisecond {
		t.Errorf("expected 400ms for attempt 2 with zero jitter, got %s", d)
	}
}
