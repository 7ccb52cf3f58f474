package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker guards one external dependency.
// State transitions: closed → open → half-open → closed
//
// - Closed: normal operation. Rate-limit failures are counted.
// - Open: all calls are rejected until the reset timeout elapses.
// - Half-open: exactly one probe call is allowed through; its outcome decides
//   whether the circuit closes again or re-opens.
//
// State is held in memory and guarded by a mutex, so one breaker instance can
// be shared by the executor and the request queue drain goroutine. Each
// protected dependency gets its own instance; separate processes hold separate
// breakers unless fronted by shared state, which is out of scope here.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	logger           *slog.Logger

	// now is injectable for tests.
	now func() time.Time

	mu            sync.Mutex
	state         string
	failures      int
	lastFailureAt time.Time
	nextRetryAt   time.Time
	probeInFlight bool
}

// Decision is the outcome of an admission check. When Allowed is false, Wait
// carries the remaining cooldown.
type Decision struct {
	Allowed bool
	Wait    time.Duration
	Reason  string
}

// CircuitBreakerState is a snapshot for health endpoints.
type CircuitBreakerState struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Failures      int    `json:"failures"`
	LastFailedAt  string `json:"last_failed_at,omitempty"`
	RetryInSecond int    `json:"retry_in_seconds,omitempty"`
}

func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           logger,
		now:              time.Now,
		state:            StateClosed,
	}
}

// AllowRequest checks whether a call to the dependency may proceed. While
// open, the first check past the reset deadline flips the circuit to
// half-open and admits the caller as the probe; the check is deliberately not
// idempotent in that window. While half-open, only the single probe is in
// flight and every other caller is rejected with the time left until the
// probe would be retried.
func (cb *CircuitBreaker) AllowRequest() Decision {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		wait := cb.nextRetryAt.Sub(cb.now())
		if wait > 0 {
			return Decision{Allowed: false, Wait: wait, Reason: "circuit open"}
		}
		cb.state = StateHalfOpen
		cb.probeInFlight = true
		cb.logger.Info("circuit breaker half-open", "dependency", cb.name)
		return Decision{Allowed: true}

	case StateHalfOpen:
		if cb.probeInFlight {
			return Decision{Allowed: false, Wait: cb.resetTimeout, Reason: "probe in flight"}
		}
		cb.probeInFlight = true
		return Decision{Allowed: true}

	default:
		return Decision{Allowed: true}
	}
}

// RecordSuccess resets the circuit to closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	recovered := cb.state == StateHalfOpen
	cb.state = StateClosed
	cb.failures = 0
	cb.probeInFlight = false

	if recovered {
		cb.logger.Info("circuit breaker closed (recovered)", "dependency", cb.name)
	}
}

// ReleaseProbe resolves a half-open probe that failed for a reason that does
// not count toward the threshold (timeout, network, permanent). The circuit
// returns to open with a fresh cooldown; a half-open breaker must always
// resolve to open or closed, whatever the probe's outcome. No-op unless a
// probe is in flight.
func (cb *CircuitBreaker) ReleaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateHalfOpen || !cb.probeInFlight {
		return
	}

	cb.probeInFlight = false
	cb.state = StateOpen
	cb.nextRetryAt = cb.now().Add(cb.resetTimeout)
	cb.logger.Warn("circuit breaker re-opened (half-open probe failed)",
		"dependency", cb.name,
	)
}

// RecordFailure counts a rate-limit failure. Opens the circuit when the
// threshold is reached, or immediately when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.failures++
	cb.lastFailureAt = now
	cb.probeInFlight = false

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.nextRetryAt = now.Add(cb.resetTimeout)
		cb.logger.Warn("circuit breaker re-opened (half-open probe failed)",
			"dependency", cb.name,
		)
		return
	}

	if cb.failures >= cb.failureThreshold && cb.state != StateOpen {
		cb.state = StateOpen
		cb.nextRetryAt = now.Add(cb.resetTimeout)
		cb.logger.Warn("circuit breaker opened",
			"dependency", cb.name,
			"failures", cb.failures,
			"threshold", cb.failureThreshold,
		)
	}
}

// GetState returns a snapshot of the breaker for health endpoints.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := CircuitBreakerState{
		Name:     cb.name,
		State:    cb.state,
		Failures: cb.failures,
	}
	if !cb.lastFailureAt.IsZero() {
		s.LastFailedAt = cb.lastFailureAt.Format(time.RFC3339)
	}
	if cb.state == StateOpen {
		if wait := cb.nextRetryAt.Sub(cb.now()); wait > 0 {
			s.RetryInSecond = int(wait.Seconds()) + 1
		}
	}
	return s
}
