package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func setupTestQueue(t *testing.T, residency time.Duration) *RequestQueue {
	t.Helper()
	ex, _ := setupTestExecutor(t)
	return NewRequestQueue(ex, residency, testLogger())
}

func TestRequestQueue_ExecutesInOrder(t *testing.T) {
	q := setupTestQueue(t, time.Second)

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			// Stagger enqueues so FIFO order is deterministic.
			time.Sleep(time.Duration(i*20) * time.Millisecond)
			q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
		}()
	}
	close(gate)
	wg.Wait()

	if len(order) != 5 {
		t.Fatalf("expected 5 executions, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("position %d: expected %d, got %d (order %v)", i, i, got, order)
			break
		}
	}
}

func TestRequestQueue_ResolvesResult(t *testing.T) {
	q := setupTestQueue(t, time.Second)

	result, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		return "queued-ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "queued-ok" {
		t.Errorf("expected %q, got %v", "queued-ok", result)
	}
}

func TestRequestQueue_PropagatesError(t *testing.T) {
	q := setupTestQueue(t, time.Second)

	_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("400 bad request")
	})
	if err == nil || err.Error() != "400 bad request" {
		t.Errorf("expected underlying error, got %v", err)
	}
}

func TestRequestQueue_DropsExpiredRequests(t *testing.T) {
	q := setupTestQueue(t, 30*time.Millisecond)

	// Block the drain loop long enough for the second request to expire.
	blockerStarted := make(chan struct{})
	go q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		close(blockerStarted)
		time.Sleep(80 * time.Millisecond)
		return nil, nil
	})
	<-blockerStarted

	executed := false
	_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		executed = true
		return nil, nil
	})

	var timeout *QueueTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected QueueTimeoutError, got %v", err)
	}
	if executed {
		t.Error("expired request must not be executed")
	}
}

func TestRequestQueue_DepthDrainsToZero(t *testing.T) {
	q := setupTestQueue(t, time.Second)

	q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})

	// Enqueue returns after its own item completes; give the drain goroutine
	// a beat to observe the empty queue and exit.
	time.Sleep(10 * time.Millisecond)
	if d := q.Depth(); d != 0 {
		t.Errorf("expected empty queue, got depth %d", d)
	}
}
