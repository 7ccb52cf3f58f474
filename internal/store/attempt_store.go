package store

import (
	"context"
	"fmt"

	"github.com/plateshare/comms-service/internal/domain"
)

func (s *PostgresStore) RecordDispatchAttempt(ctx context.Context, rec domain.DispatchAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_attempts
			(channel, recipient, provider, status, message_id, attempt_number,
			 response_time_ms, error_message, campaign_id, queue_item_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''),
		        NULLIF($9::text, '')::uuid, NULLIF($10::text, '')::uuid)
	`, rec.Channel, rec.Recipient, rec.Provider, rec.Status, rec.MessageID,
		rec.AttemptNumber, rec.ResponseTimeMs, rec.ErrorMessage, rec.CampaignID, rec.QueueItemID)
	if err != nil {
		return fmt.Errorf("recording dispatch attempt: %w", err)
	}
	return nil
}
