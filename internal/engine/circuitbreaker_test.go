package engine

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestCB(t *testing.T) (*CircuitBreaker, *time.Time) {
	t.Helper()
	cb := NewCircuitBreaker("ai-provider", 5, 30*time.Second, testLogger())

	now := time.Now()
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb, _ := setupTestCB(t)

	d := cb.AllowRequest()
	if !d.Allowed {
		t.Error("new breaker should allow requests (circuit closed)")
	}

	s := cb.GetState()
	if s.State != StateClosed {
		t.Errorf("expected state %q, got %q", StateClosed, s.State)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := setupTestCB(t)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	d := cb.AllowRequest()
	if d.Allowed {
		t.Error("should NOT be allowed when circuit is open")
	}
	if d.Wait <= 0 {
		t.Errorf("expected positive remaining wait, got %s", d.Wait)
	}
	if s := cb.GetState(); s.State != StateOpen {
		t.Errorf("expected state %q, got %q", StateOpen, s.State)
	}
}

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb, _ := setupTestCB(t)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}

	if d := cb.AllowRequest(); !d.Allowed {
		t.Error("should be allowed when below threshold")
	}
	if s := cb.GetState(); s.State != StateClosed {
		t.Errorf("expected state %q, got %q", StateClosed, s.State)
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb, _ := setupTestCB(t)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}
	cb.RecordSuccess()

	s := cb.GetState()
	if s.State != StateClosed {
		t.Errorf("expected state %q after success, got %q", StateClosed, s.State)
	}
	if s.Failures != 0 {
		t.Errorf("expected 0 failures after success, got %d", s.Failures)
	}
}

func TestCircuitBreaker_TransitionsToHalfOpen(t *testing.T) {
	cb, now := setupTestCB(t)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	if d := cb.AllowRequest(); d.Allowed {
		t.Fatal("circuit should be open and blocking")
	}

	// Advance past the reset timeout
	*now = now.Add(31 * time.Second)

	d := cb.AllowRequest()
	if !d.Allowed {
		t.Error("should allow the probe once the reset timeout elapsed")
	}
	if s := cb.GetState(); s.State != StateHalfOpen {
		t.Errorf("expected state %q, got %q", StateHalfOpen, s.State)
	}
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	cb, now := setupTestCB(t)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	*now = now.Add(31 * time.Second)

	if d := cb.AllowRequest(); !d.Allowed {
		t.Fatal("first caller past the deadline should be the probe")
	}

	// Probe is in flight: concurrent callers are rejected.
	d := cb.AllowRequest()
	if d.Allowed {
		t.Error("second caller should be rejected while the probe is in flight")
	}
	if d.Reason != "probe in flight" {
		t.Errorf("unexpected reason %q", d.Reason)
	}
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb, now := setupTestCB(t)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	*now = now.Add(31 * time.Second)
	cb.AllowRequest() // probe admitted

	cb.RecordSuccess()

	s := cb.GetState()
	if s.State != StateClosed {
		t.Errorf("expected %q after half-open success, got %q", StateClosed, s.State)
	}
	if !cb.AllowRequest().Allowed {
		t.Error("closed breaker should allow requests")
	}
}

func TestCircuitBreaker_ReleaseProbeReopens(t *testing.T) {
	cb, now := setupTestCB(t)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	*now = now.Add(31 * time.Second)
	cb.AllowRequest() // probe admitted

	// Probe failed without a rate limit: no RecordFailure, but the probe
	// slot must still be resolved.
	cb.ReleaseProbe()

	if s := cb.GetState(); s.State != StateOpen {
		t.Errorf("expected %q after released probe, got %q", StateOpen, s.State)
	}
	if d := cb.AllowRequest(); d.Allowed {
		t.Error("re-opened breaker should reject requests")
	}

	// A later probe can still recover the circuit.
	*now = now.Add(31 * time.Second)
	if d := cb.AllowRequest(); !d.Allowed {
		t.Fatal("expected a fresh probe after the new cooldown")
	}
	cb.RecordSuccess()
	if s := cb.GetState(); s.State != StateClosed {
		t.Errorf("expected %q after successful probe, got %q", StateClosed, s.State)
	}
}

func TestCircuitBreaker_ReleaseProbeNoopWhenClosed(t *testing.T) {
	cb, _ := setupTestCB(t)

	cb.RecordFailure()
	cb.ReleaseProbe()

	s := cb.GetState()
	if s.State != StateClosed {
		t.Errorf("expected %q, got %q", StateClosed, s.State)
	}
	if s.Failures != 1 {
		t.Errorf("release must not touch the failure count, got %d", s.Failures)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := setupTestCB(t)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	*now = now.Add(31 * time.Second)
	cb.AllowRequest() // probe admitted

	cb.RecordFailure()

	if s := cb.GetState(); s.State != StateOpen {
		t.Errorf("expected %q after failed probe, got %q", StateOpen, s.State)
	}
	if d := cb.AllowRequest(); d.Allowed {
		t.Error("re-opened breaker should reject requests")
	}
}
