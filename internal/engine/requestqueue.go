package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type queueOutcome struct {
	result any
	err    error
}

type queuedRequest struct {
	fn         Call
	done       chan queueOutcome
	enqueuedAt time.Time
}

// RequestQueue is the secondary path for non-latency-critical calls to a
// protected dependency. Requests are executed strictly in FIFO order by a
// single drain goroutine, through the same executor (and therefore the same
// breaker gating and inter-call spacing) as direct calls. Requests that sit
// in the queue longer than the residency timeout are rejected without being
// executed; expiries do not reorder the survivors.
type RequestQueue struct {
	executor *Executor
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	items    []*queuedRequest
	draining bool
}

func NewRequestQueue(executor *Executor, residencyTimeout time.Duration, logger *slog.Logger) *RequestQueue {
	return &RequestQueue{
		executor: executor,
		timeout:  residencyTimeout,
		logger:   logger,
	}
}

// Enqueue adds fn to the queue and blocks until it has been executed, it
// expires in the queue, or ctx is cancelled. Cancellation abandons the wait
// but does not remove the item; the drain loop still runs (or expires) it.
func (q *RequestQueue) Enqueue(ctx context.Context, fn Call) (any, error) {
	req := &queuedRequest{
		fn:         fn,
		done:       make(chan queueOutcome, 1),
		enqueuedAt: time.Now(),
	}

	q.mu.Lock()
	q.items = append(q.items, req)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-req.done:
		return out.result, out.err
	}
}

// Depth returns the number of requests currently waiting.
func (q *RequestQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain processes queued requests one at a time. The draining flag guarantees
// a single drain goroutine; it exits when the queue is empty.
func (q *RequestQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		req := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		waited := time.Since(req.enqueuedAt)
		if waited > q.timeout {
			q.logger.Warn("dropping expired queued request",
				"dependency", q.executor.Name(),
				"waited", waited,
			)
			req.done <- queueOutcome{err: &QueueTimeoutError{Waited: waited}}
			continue
		}

		result, err := q.executor.Execute(context.Background(), req.fn, 0)
		req.done <- queueOutcome{result: result, err: err}
	}
}
