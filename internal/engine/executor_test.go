package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

// setupTestExecutor builds an executor whose sleeps return instantly and are
// recorded, so retry tests run without real waiting.
func setupTestExecutor(t *testing.T) (*Executor, *[]time.Duration) {
	t.Helper()

	breaker := NewCircuitBreaker("test-provider", 3, 30*time.Second, testLogger())
	backoff := NewBackoff(10*time.Millisecond, 1*time.Second, 0)
	backoff.rand = func() float64 { return 0 }

	ex := NewExecutor("test-provider", breaker, backoff, ExecutorConfig{
		MinInterval:    0,
		RequestTimeout: 200 * time.Millisecond,
		MaxRetries:     3,
	}, testLogger())

	var slept []time.Duration
	ex.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return ex, &slept
}

func TestExecutor_Success(t *testing.T) {
	ex, _ := setupTestExecutor(t)

	result, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected %q, got %v", "ok", result)
	}
}

func TestExecutor_RetryBound(t *testing.T) {
	ex, _ := setupTestExecutor(t)

	calls := 0
	_, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("503 service unavailable")
	}, 3)

	if calls != 3 {
		t.Errorf("expected exactly 3 invocations, got %d", calls)
	}

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts in error, got %d", exhausted.Attempts)
	}
}

func TestExecutor_PermanentShortCircuit(t *testing.T) {
	ex, slept := setupTestExecutor(t)

	calls := 0
	_, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("401 Unauthorized")
	}, 3)

	if calls != 1 {
		t.Errorf("expected exactly 1 invocation for a permanent error, got %d", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no backoff sleeps, got %v", *slept)
	}
	if err == nil || err.Error() != "401 Unauthorized" {
		t.Errorf("expected the raw permanent error, got %v", err)
	}
}

func TestExecutor_SuccessAfterRetries(t *testing.T) {
	ex, slept := setupTestExecutor(t)

	calls := 0
	result, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("ETIMEDOUT")
		}
		return 42, nil
	}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %v", result)
	}
	if len(*slept) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %d", len(*slept))
	}
}

func TestExecutor_RateLimitTripsBreaker(t *testing.T) {
	ex, _ := setupTestExecutor(t)

	// Breaker threshold is 3; the executor classifies each failure as a rate
	// limit, so three attempts open the circuit.
	_, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("429 rate limit exceeded")
	}, 3)
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}

	if s := ex.Breaker().GetState(); s.State != StateOpen {
		t.Errorf("expected open breaker after threshold rate limits, got %q", s.State)
	}

	// Next call is rejected without invoking fn.
	calls := 0
	_, err = ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, nil
	}, 3)
	var unavailable *ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no invocation while breaker is open, got %d", calls)
	}
	if unavailable.RetrySeconds() <= 0 {
		t.Errorf("expected positive retry hint, got %d", unavailable.RetrySeconds())
	}
}

func TestExecutor_TimeoutDoesNotTripBreaker(t *testing.T) {
	ex, _ := setupTestExecutor(t)

	_, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("request timed out")
	}, 3)
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}

	if s := ex.Breaker().GetState(); s.State != StateClosed {
		t.Errorf("timeouts must not trip the breaker, got state %q", s.State)
	}
}

func TestExecutor_HalfOpenProbeTimeoutRecovers(t *testing.T) {
	ex, _ := setupTestExecutor(t)

	now := time.Now()
	ex.Breaker().now = func() time.Time { return now }

	// Trip the breaker with rate limits (threshold 3).
	ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("429 rate limit exceeded")
	}, 3)
	if s := ex.Breaker().GetState(); s.State != StateOpen {
		t.Fatalf("expected open breaker, got %q", s.State)
	}

	// Past the cooldown, the probe fails with a timeout. That never counts
	// toward the threshold, but it must still resolve the probe slot and
	// re-open the circuit.
	now = now.Add(31 * time.Second)
	_, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("request timed out")
	}, 1)
	if err == nil {
		t.Fatal("expected the probe failure to surface")
	}
	if s := ex.Breaker().GetState(); s.State != StateOpen {
		t.Errorf("expected breaker re-opened after failed probe, got %q", s.State)
	}

	// After the next cooldown a healthy call must be admitted and close the
	// circuit; a wedged probe slot would reject it forever.
	now = now.Add(31 * time.Second)
	result, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "recovered", nil
	}, 1)
	if err != nil {
		t.Fatalf("expected recovery call to be admitted, got %v", err)
	}
	if result != "recovered" {
		t.Errorf("expected %q, got %v", "recovered", result)
	}
	if s := ex.Breaker().GetState(); s.State != StateClosed {
		t.Errorf("expected closed breaker after successful probe, got %q", s.State)
	}
}

func TestExecutor_PerAttemptTimeout(t *testing.T) {
	ex, _ := setupTestExecutor(t)

	calls := 0
	_, err := ex.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		<-ctx.Done()
		return nil, ctx.Err()
	}, 2)

	if calls != 2 {
		t.Errorf("timed-out attempts should be retried, got %d calls", calls)
	}
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}
	if !errors.Is(exhausted.Last, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded as last error, got %v", exhausted.Last)
	}
}

func TestExecutor_MinIntervalSpacing(t *testing.T) {
	breaker := NewCircuitBreaker("spaced", 3, 30*time.Second, testLogger())
	backoff := NewBackoff(10*time.Millisecond, time.Second, 0)
	ex := NewExecutor("spaced", breaker, backoff, ExecutorConfig{
		MinInterval:    50 * time.Millisecond,
		RequestTimeout: 200 * time.Millisecond,
	}, testLogger())

	var slept []time.Duration
	ex.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	fn := func(ctx context.Context) (any, error) { return nil, nil }
	ex.Execute(context.Background(), fn, 1)
	ex.Execute(context.Background(), fn, 1)

	if len(slept) != 1 {
		t.Fatalf("expected one spacing sleep for the second call, got %v", slept)
	}
	if slept[0] <= 0 || slept[0] > 50*time.Millisecond {
		t.Errorf("expected spacing sleep within (0, 50ms], got %s", slept[0])
	}
}
