package domain

import (
	"time"
)

const (
	DeferredStatusPending = "pending"
	DeferredStatusSent    = "sent"
)

// DeferredNotification is a push notification held back because the recipient
// was inside their quiet-hours window at send time. The daily flush delivers
// rows whose ResumeAt has passed.
type DeferredNotification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	DeviceToken string            `json:"device_token"`
	Platform    string            `json:"platform"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	ResumeAt    time.Time         `json:"resume_at"`
	Status      string            `json:"status"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
