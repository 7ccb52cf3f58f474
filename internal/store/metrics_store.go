package store

import (
	"context"
	"fmt"
)

// DispatchMetrics holds aggregated send statistics for the dashboard.
type DispatchMetrics struct {
	TotalAttempts    int     `json:"total_attempts"`
	SentCount        int     `json:"sent_count"`
	FailedCount      int     `json:"failed_count"`
	SuccessRate      float64 `json:"success_rate"`
	AvgResponseMs    float64 `json:"avg_response_ms"`
	ActiveCampaigns  int     `json:"active_campaigns"`
	PendingQueueRows int     `json:"pending_queue_rows"`
	FailedQueueRows  int     `json:"failed_queue_rows"`
	DeferredPending  int     `json:"deferred_pending"`
}

// GetDispatchMetrics returns aggregated send statistics from the database.
func (s *PostgresStore) GetDispatchMetrics(ctx context.Context) (*DispatchMetrics, error) {
	var m DispatchMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COALESCE(AVG(response_time_ms) FILTER (WHERE response_time_ms > 0), 0) AS avg_response_ms
		FROM dispatch_attempts
	`).Scan(&m.TotalAttempts, &m.SentCount, &m.FailedCount, &m.AvgResponseMs)
	if err != nil {
		return nil, fmt.Errorf("querying dispatch metrics: %w", err)
	}

	if m.TotalAttempts > 0 {
		m.SuccessRate = float64(m.SentCount) / float64(m.TotalAttempts) * 100
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM campaigns WHERE status IN ('scheduled', 'sending')
	`).Scan(&m.ActiveCampaigns)
	if err != nil {
		return nil, fmt.Errorf("querying active campaigns: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM automation_queue
	`).Scan(&m.PendingQueueRows, &m.FailedQueueRows)
	if err != nil {
		return nil, fmt.Errorf("querying automation queue counts: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM deferred_notifications WHERE status = 'pending'
	`).Scan(&m.DeferredPending)
	if err != nil {
		return nil, fmt.Errorf("querying deferred pending count: %w", err)
	}

	return &m, nil
}
