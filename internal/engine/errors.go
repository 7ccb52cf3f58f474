package engine

import (
	"fmt"
	"math"
	"time"
)

// ServiceUnavailableError is returned when the circuit breaker is open and no
// attempt was made. RetryIn is the remaining cooldown, suitable for a
// user-facing "retry in N seconds" message.
type ServiceUnavailableError struct {
	Dependency string
	RetryIn    time.Duration
	Reason     string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable (%s): retry in %d seconds",
		e.Dependency, e.Reason, e.RetrySeconds())
}

// RetrySeconds returns the remaining cooldown rounded up to whole seconds.
func (e *ServiceUnavailableError) RetrySeconds() int {
	return int(math.Ceil(e.RetryIn.Seconds()))
}

// RetriesExhaustedError is returned after all allowed attempts failed with
// retryable errors. Last is the final underlying error.
type RetriesExhaustedError struct {
	Dependency string
	Attempts   int
	Last       error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s call failed after %d attempts: %v", e.Dependency, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// QueueTimeoutError is returned when a queued request exceeded its residency
// timeout before it could be executed.
type QueueTimeoutError struct {
	Waited time.Duration
}

func (e *QueueTimeoutError) Error() string {
	return fmt.Sprintf("request expired in queue after %s", e.Waited.Round(time.Millisecond))
}
