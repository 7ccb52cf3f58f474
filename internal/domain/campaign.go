package domain

import (
	"time"
)

// Campaign statuses. A campaign moves draft/scheduled → sending → one of the
// terminal states (sent, partial, failed). Paused campaigns are skipped by the
// scheduled sweep until resumed.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
	CampaignStatusPartial   = "partial"
	CampaignStatusFailed    = "failed"
	CampaignStatusPaused    = "paused"
)

type Campaign struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Subject         string     `json:"subject"`
	Content         string     `json:"content"`
	SegmentID       string     `json:"segment_id"`
	Status          string     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	SentCount       int        `json:"sent_count"`
	TotalRecipients int        `json:"total_recipients"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Recipient is one resolved member of a campaign's target segment.
type Recipient struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type CreateCampaignRequest struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	SegmentID   string `json:"segment_id"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}
