// Package automation runs multi-step drip sequences. Enrollment
// pre-materializes one queue row per step with due times computed from the
// cumulative step delays; the periodic sweep then advances each row
// independently. Sequencing across steps comes purely from the rows' due
// times; no step ever triggers the next.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plateshare/comms-service/internal/domain"
	"github.com/plateshare/comms-service/internal/template"
)

// ErrAlreadyEnrolled is returned when a recipient is enrolled in an
// automation they already entered.
var ErrAlreadyEnrolled = errors.New("recipient already enrolled in automation")

// ErrAutomationInactive is returned when enrolling into a deactivated
// automation.
var ErrAutomationInactive = errors.New("automation is not active")

// Store is the persistence surface for automations and their queue.
type Store interface {
	GetAutomation(ctx context.Context, id string) (*domain.Automation, error)
	GetQueueItem(ctx context.Context, id string) (*domain.AutomationQueueItem, error)
	// ClaimQueueItem flips a pending item to processing and reports whether
	// this caller won the claim.
	ClaimQueueItem(ctx context.Context, id string) (bool, error)
	MarkQueueItemSent(ctx context.Context, id string, sentAt time.Time) error
	MarkQueueItemFailed(ctx context.Context, id, errorMessage string) error
	InsertAutomationRun(ctx context.Context, run domain.AutomationRun) error
	IsEnrolled(ctx context.Context, automationID, recipientID string) (bool, error)
	InsertQueueItems(ctx context.Context, items []domain.AutomationQueueItem) error
	DueQueueItems(ctx context.Context, limit int) ([]string, error)
	// ResetFailedQueueItem flips a failed item back to pending for the
	// operator retry action.
	ResetFailedQueueItem(ctx context.Context, id string) (bool, error)
}

// MessageDispatcher sends one message; failures come back in the result.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg domain.Message) domain.DispatchResult
}

// SweepResult aggregates one sweep over due queue items.
type SweepResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type Processor struct {
	store      Store
	dispatcher MessageDispatcher
	batchSize  int
	logger     *slog.Logger
}

func NewProcessor(store Store, dispatcher MessageDispatcher, logger *slog.Logger) *Processor {
	return &Processor{
		store:      store,
		dispatcher: dispatcher,
		batchSize:  50,
		logger:     logger,
	}
}

// Enroll enters a recipient into an automation, inserting one queue row per
// step. Re-enrollment is rejected so a recipient never receives a sequence
// twice.
func (p *Processor) Enroll(ctx context.Context, automationID, recipientID, recipientEmail string, templateData map[string]string) error {
	a, err := p.store.GetAutomation(ctx, automationID)
	if err != nil {
		return fmt.Errorf("fetching automation %s: %w", automationID, err)
	}
	if a == nil {
		return fmt.Errorf("automation %s not found", automationID)
	}
	if !a.IsActive {
		return ErrAutomationInactive
	}

	enrolled, err := p.store.IsEnrolled(ctx, automationID, recipientID)
	if err != nil {
		return fmt.Errorf("checking enrollment: %w", err)
	}
	if enrolled {
		return ErrAlreadyEnrolled
	}

	now := time.Now()
	cumulative := time.Duration(0)
	items := make([]domain.AutomationQueueItem, len(a.Steps))
	for i, step := range a.Steps {
		cumulative += step.Delay
		items[i] = domain.AutomationQueueItem{
			AutomationID:   automationID,
			RecipientID:    recipientID,
			RecipientEmail: recipientEmail,
			StepIndex:      step.StepIndex,
			ScheduledAt:    now.Add(cumulative),
			Status:         domain.QueueItemStatusPending,
			TemplateData:   templateData,
		}
	}

	if err := p.store.InsertQueueItems(ctx, items); err != nil {
		return fmt.Errorf("inserting queue items: %w", err)
	}

	p.logger.Info("recipient enrolled in automation",
		"automation_id", automationID,
		"recipient_id", recipientID,
		"steps", len(items),
	)
	return nil
}

// ProcessItem advances one queue item: claim, render, dispatch, record.
// Dispatch failures are absorbed into the item's status and run record; the
// returned error is reserved for infrastructure failures (missing rows,
// store errors) so the sweep can keep going either way.
func (p *Processor) ProcessItem(ctx context.Context, itemID string) error {
	item, err := p.store.GetQueueItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("fetching queue item %s: %w", itemID, err)
	}
	if item == nil {
		return fmt.Errorf("queue item %s not found", itemID)
	}

	a, err := p.store.GetAutomation(ctx, item.AutomationID)
	if err != nil {
		return fmt.Errorf("fetching automation %s: %w", item.AutomationID, err)
	}
	if a == nil {
		return fmt.Errorf("automation %s not found", item.AutomationID)
	}

	claimed, err := p.store.ClaimQueueItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("claiming queue item %s: %w", itemID, err)
	}
	if !claimed {
		p.logger.Info("queue item already claimed, skipping", "item_id", itemID)
		return nil
	}

	// Pausing an automation stops future sends even though the rows keep
	// their original due times.
	if !a.IsActive {
		p.recordFailure(ctx, item, "automation inactive")
		return nil
	}

	var step *domain.AutomationStep
	for i := range a.Steps {
		if a.Steps[i].StepIndex == item.StepIndex {
			step = &a.Steps[i]
			break
		}
	}
	if step == nil {
		// Fail the claimed item so a row pointing at a removed step drains
		// out of the queue instead of being re-selected by every sweep.
		p.recordFailure(ctx, item, fmt.Sprintf("automation %s has no step %d", a.ID, item.StepIndex))
		return nil
	}

	data := item.TemplateData
	if data == nil {
		data = map[string]string{}
	}

	msg := domain.Message{
		Channel:     domain.ChannelEmail,
		To:          item.RecipientEmail,
		Subject:     template.Render(step.Subject, data),
		Body:        template.Render(step.Content, data),
		QueueItemID: item.ID,
	}

	result := p.dispatcher.Dispatch(ctx, msg)
	if !result.Success {
		p.recordFailure(ctx, item, result.Error)
		return nil
	}

	now := time.Now()
	if err := p.store.MarkQueueItemSent(ctx, itemID, now); err != nil {
		p.logger.Error("failed to mark queue item sent", "item_id", itemID, "error", err)
	}
	p.insertRun(ctx, item, domain.QueueItemStatusSent, "")

	p.logger.Info("automation step sent",
		"automation_id", item.AutomationID,
		"recipient_id", item.RecipientID,
		"step", item.StepIndex,
	)
	return nil
}

// Sweep processes up to batchSize due pending items. Items are handled
// independently: one item's failure is collected, not propagated.
func (p *Processor) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	ids, err := p.store.DueQueueItems(ctx, p.batchSize)
	if err != nil {
		return result, fmt.Errorf("listing due queue items: %w", err)
	}

	for _, id := range ids {
		if err := p.ProcessItem(ctx, id); err != nil {
			result.Errors = append(result.Errors, err.Error())
			p.logger.Error("automation item failed", "item_id", id, "error", err)
			continue
		}
		result.Processed++

		item, err := p.store.GetQueueItem(ctx, id)
		if err != nil || item == nil {
			continue
		}
		switch item.Status {
		case domain.QueueItemStatusSent:
			result.Sent++
		case domain.QueueItemStatusFailed:
			result.Failed++
		}
	}

	if result.Processed > 0 || len(result.Errors) > 0 {
		p.logger.Info("automation sweep complete",
			"processed", result.Processed,
			"sent", result.Sent,
			"failed", result.Failed,
			"errors", len(result.Errors),
		)
	}
	return result, nil
}

// RetryItem is the operator action that returns a failed item to pending.
func (p *Processor) RetryItem(ctx context.Context, itemID string) error {
	reset, err := p.store.ResetFailedQueueItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resetting queue item %s: %w", itemID, err)
	}
	if !reset {
		return fmt.Errorf("queue item %s is not in a failed state", itemID)
	}
	return nil
}

func (p *Processor) recordFailure(ctx context.Context, item *domain.AutomationQueueItem, errMsg string) {
	if err := p.store.MarkQueueItemFailed(ctx, item.ID, errMsg); err != nil {
		p.logger.Error("failed to mark queue item failed", "item_id", item.ID, "error", err)
	}
	p.insertRun(ctx, item, domain.QueueItemStatusFailed, errMsg)

	p.logger.Warn("automation step failed",
		"automation_id", item.AutomationID,
		"recipient_id", item.RecipientID,
		"step", item.StepIndex,
		"error", errMsg,
	)
}

func (p *Processor) insertRun(ctx context.Context, item *domain.AutomationQueueItem, status, errMsg string) {
	run := domain.AutomationRun{
		AutomationID: item.AutomationID,
		RecipientID:  item.RecipientID,
		StepIndex:    item.StepIndex,
		Status:       status,
	}
	if errMsg != "" {
		run.ErrorMessage = &errMsg
	}
	if err := p.store.InsertAutomationRun(ctx, run); err != nil {
		p.logger.Error("failed to insert automation run", "item_id", item.ID, "error", err)
	}
}
