package domain

import (
	"time"
)

// Automation queue item statuses. Transitions are monotonic:
// pending → processing → sent|failed. A failed item only returns to pending
// through the explicit operator retry action.
const (
	QueueItemStatusPending    = "pending"
	QueueItemStatusProcessing = "processing"
	QueueItemStatusSent       = "sent"
	QueueItemStatusFailed     = "failed"
)

// Automation is a multi-step drip sequence. Steps are ordered by StepIndex;
// each step's delay is relative to the previous step.
type Automation struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	IsActive  bool             `json:"is_active"`
	Steps     []AutomationStep `json:"steps"`
	CreatedAt time.Time        `json:"created_at"`
}

type AutomationStep struct {
	ID           string        `json:"id"`
	AutomationID string        `json:"automation_id"`
	StepIndex    int           `json:"step_index"`
	Subject      string        `json:"subject"`
	Content      string        `json:"content"`
	Delay        time.Duration `json:"delay"`
}

// AutomationQueueItem is one pre-materialized step send for one recipient.
// All of a recipient's rows are inserted at enrollment time with due times
// computed from the cumulative step delays; the processor only ever advances
// a row's status, never creates new rows.
type AutomationQueueItem struct {
	ID             string            `json:"id"`
	AutomationID   string            `json:"automation_id"`
	RecipientID    string            `json:"recipient_id"`
	RecipientEmail string            `json:"recipient_email"`
	StepIndex      int               `json:"step_index"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	Status         string            `json:"status"`
	TemplateData   map[string]string `json:"template_data,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AutomationRun records one step execution outcome for audit and for the
// dashboard's per-automation history.
type AutomationRun struct {
	ID           string    `json:"id"`
	AutomationID string    `json:"automation_id"`
	RecipientID  string    `json:"recipient_id"`
	StepIndex    int       `json:"step_index"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
