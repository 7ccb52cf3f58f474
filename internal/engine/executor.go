package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Call is the unit of work the executor runs against a protected dependency.
type Call func(ctx context.Context) (any, error)

// ExecutorConfig tunes a rate-limited executor.
type ExecutorConfig struct {
	// MinInterval is the minimum spacing between call starts, shared by all
	// callers of this executor.
	MinInterval time.Duration
	// RequestTimeout bounds each individual attempt.
	RequestTimeout time.Duration
	// MaxRetries is the default attempt budget when Execute is given zero.
	MaxRetries int
}

// Executor wraps calls to one external dependency with circuit-breaker
// gating, minimum inter-call spacing, per-attempt timeouts and classified
// bounded retries. The breaker and the last-call timestamp are shared state
// for the whole process; construct exactly one executor per dependency.
type Executor struct {
	name    string
	breaker *CircuitBreaker
	backoff *Backoff
	cfg     ExecutorConfig
	logger  *slog.Logger

	// sleep is injectable so tests can run without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	lastCall time.Time
}

func NewExecutor(name string, breaker *CircuitBreaker, backoff *Backoff, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Executor{
		name:    name,
		breaker: breaker,
		backoff: backoff,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Name returns the protected dependency's name.
func (e *Executor) Name() string {
	return e.name
}

// Breaker exposes the underlying circuit breaker for health reporting.
func (e *Executor) Breaker() *CircuitBreaker {
	return e.breaker
}

// Execute runs fn with up to maxRetries attempts (the configured default when
// maxRetries is zero). It returns *ServiceUnavailableError without invoking
// fn when the breaker rejects the call, the underlying error unchanged when
// it is classified permanent, and *RetriesExhaustedError after the attempt
// budget is spent on retryable failures.
func (e *Executor) Execute(ctx context.Context, fn Call, maxRetries int) (any, error) {
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if d := e.breaker.AllowRequest(); !d.Allowed {
			return nil, &ServiceUnavailableError{
				Dependency: e.name,
				RetryIn:    d.Wait,
				Reason:     d.Reason,
			}
		}

		if err := e.waitTurn(ctx); err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		result, err := fn(attemptCtx)
		cancel()

		if err == nil {
			e.breaker.RecordSuccess()
			return result, nil
		}

		lastErr = err
		c := Classify(err)

		if c.IsRateLimit {
			e.breaker.RecordFailure()
		} else {
			// Failures that don't count toward the threshold still have to
			// resolve a half-open probe, or the breaker would stay wedged in
			// half-open with its probe slot taken forever.
			e.breaker.ReleaseProbe()
		}
		if !c.ShouldRetry {
			e.logger.Warn("permanent failure, not retrying",
				"dependency", e.name,
				"error", err,
			)
			return nil, err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := e.backoff.Delay(attempt, c.RetryAfter)
		e.logger.Warn("transient failure, retrying",
			"dependency", e.name,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &RetriesExhaustedError{
		Dependency: e.name,
		Attempts:   maxRetries,
		Last:       lastErr,
	}
}

// waitTurn enforces the minimum inter-call spacing. The slot is reserved
// under the lock before sleeping, so concurrent callers queue up behind each
// other rather than all sleeping for the same remainder.
func (e *Executor) waitTurn(ctx context.Context) error {
	e.mu.Lock()
	now := time.Now()
	next := e.lastCall.Add(e.cfg.MinInterval)
	var wait time.Duration
	if next.After(now) {
		wait = next.Sub(now)
		e.lastCall = next
	} else {
		e.lastCall = now
	}
	e.mu.Unlock()

	if wait > 0 {
		return e.sleep(ctx, wait)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
