package domain

import (
	"time"
)

// DispatchAttempt is one provider send attempt, persisted for audit and
// dashboard aggregates.
type DispatchAttempt struct {
	ID             string    `json:"id"`
	Channel        string    `json:"channel"`
	Recipient      string    `json:"recipient"`
	Provider       string    `json:"provider"`
	Status         string    `json:"status"`
	MessageID      string    `json:"message_id,omitempty"`
	AttemptNumber  int       `json:"attempt_number"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CampaignID     string    `json:"campaign_id,omitempty"`
	QueueItemID    string    `json:"queue_item_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
