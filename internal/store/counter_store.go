package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterTTL = 7 * 24 * time.Hour

// CounterStore keeps live per-campaign send counters in Redis hashes so the
// dashboard can show progress while a campaign is still sending. Counters are
// best effort; increment failures are logged and dropped because the durable
// totals land on the campaign row when the send finishes.
type CounterStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewCounterStore(client *redis.Client, logger *slog.Logger) *CounterStore {
	return &CounterStore{client: client, logger: logger}
}

// CampaignCounts is a live counter snapshot for one campaign.
type CampaignCounts struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func counterKey(campaignID string) string {
	return "campaign_counters:" + campaignID
}

func (s *CounterStore) IncrSent(ctx context.Context, campaignID string, n int) {
	s.incr(ctx, campaignID, "sent", n)
}

func (s *CounterStore) IncrFailed(ctx context.Context, campaignID string, n int) {
	s.incr(ctx, campaignID, "failed", n)
}

func (s *CounterStore) incr(ctx context.Context, campaignID, field string, n int) {
	if n == 0 {
		return
	}
	key := counterKey(campaignID)
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, field, int64(n))
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed to update campaign counter",
			"campaign_id", campaignID,
			"field", field,
			"error", err,
		)
	}
}

// GetCounts returns the live counters for one campaign. Missing keys read as
// zero.
func (s *CounterStore) GetCounts(ctx context.Context, campaignID string) (CampaignCounts, error) {
	var counts CampaignCounts

	values, err := s.client.HGetAll(ctx, counterKey(campaignID)).Result()
	if err != nil {
		return counts, fmt.Errorf("reading campaign counters: %w", err)
	}

	for field, raw := range values {
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		switch field {
		case "sent":
			counts.Sent = n
		case "failed":
			counts.Failed = n
		}
	}

	return counts, nil
}
