package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RetryQueueKey is the Redis sorted set holding operator-retry jobs, scored
// by the time they become ready.
const RetryQueueKey = "dispatch_retry_queue"

// Retry job kinds.
const (
	RetryKindAutomationItem = "automation_item"
)

// RetryJob is one re-queued unit of work, created by an operator retry
// action and picked up by the worker-side poller.
type RetryJob struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	ItemID string `json:"item_id"`
}

// RetryQueue is the Redis-backed queue for operator retries of failed
// dispatches. Jobs become visible once their ready-at score has passed;
// claiming is a ZRem so concurrent pollers never process a job twice.
type RetryQueue struct {
	redisClient *redis.Client
	logger      *slog.Logger

	pollInterval time.Duration
	batchSize    int64
}

func NewRetryQueue(redisClient *redis.Client, logger *slog.Logger) *RetryQueue {
	return &RetryQueue{
		redisClient:  redisClient,
		logger:       logger,
		pollInterval: time.Second,
		batchSize:    10,
	}
}

// Enqueue schedules a retry job to become ready at readyAt.
func (q *RetryQueue) Enqueue(ctx context.Context, kind, itemID string, readyAt time.Time) error {
	job := RetryJob{
		ID:     uuid.NewString(),
		Kind:   kind,
		ItemID: itemID,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return q.redisClient.ZAdd(ctx, RetryQueueKey, redis.Z{
		Score:  float64(readyAt.UnixMicro()),
		Member: string(payload),
	}).Err()
}

// Depth returns the number of jobs waiting in the queue.
func (q *RetryQueue) Depth(ctx context.Context) (int64, error) {
	return q.redisClient.ZCard(ctx, RetryQueueKey).Result()
}

// Start runs the polling loop until ctx is cancelled, handing each claimed
// job to handle. Handler failures are logged; the job is not re-queued
// automatically (retrying a retry is an operator decision).
func (q *RetryQueue) Start(ctx context.Context, handle func(ctx context.Context, job RetryJob)) {
	q.logger.Info("retry queue poller started")

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("retry queue poller stopping")
			return
		case <-ticker.C:
			q.poll(ctx, handle)
		}
	}
}

// poll claims a batch of ready jobs and dispatches them.
func (q *RetryQueue) poll(ctx context.Context, handle func(ctx context.Context, job RetryJob)) {
	now := float64(time.Now().UnixMicro())

	results, err := q.redisClient.ZRangeByScore(ctx, RetryQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(now, 'f', -1, 64),
		Count: q.batchSize,
	}).Result()
	if err != nil {
		q.logger.Error("failed to poll retry queue", "error", err)
		return
	}

	for _, member := range results {
		removed, err := q.redisClient.ZRem(ctx, RetryQueueKey, member).Result()
		if err != nil {
			q.logger.Error("failed to remove retry job", "error", err)
			continue
		}
		if removed == 0 {
			// Another poller instance already claimed this job
			continue
		}

		var job RetryJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Error("failed to unmarshal retry job", "error", err)
			continue
		}

		handle(ctx, job)
	}
}
