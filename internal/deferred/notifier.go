// Package deferred holds back push notifications that would land inside a
// recipient's quiet hours and flushes them once the window has passed. The
// caller decides whether a send must be deferred; this package only persists
// and later delivers.
package deferred

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plateshare/comms-service/internal/domain"
)

// Store is the persistence surface for deferred notifications.
type Store interface {
	InsertDeferredNotification(ctx context.Context, n domain.DeferredNotification) error
	DueDeferredNotifications(ctx context.Context, limit int) ([]domain.DeferredNotification, error)
	MarkDeferredNotificationSent(ctx context.Context, id string, sentAt time.Time) error
}

// PushDispatcher sends one push message; failures come back in the result.
type PushDispatcher interface {
	Dispatch(ctx context.Context, msg domain.Message) domain.DispatchResult
}

// FlushResult aggregates one flush sweep.
type FlushResult struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type Notifier struct {
	store      Store
	dispatcher PushDispatcher
	batchSize  int
	logger     *slog.Logger
}

func NewNotifier(store Store, dispatcher PushDispatcher, logger *slog.Logger) *Notifier {
	return &Notifier{
		store:      store,
		dispatcher: dispatcher,
		batchSize:  100,
		logger:     logger,
	}
}

// Defer persists a notification to be delivered at resumeAt.
func (n *Notifier) Defer(ctx context.Context, notification domain.DeferredNotification) error {
	notification.Status = domain.DeferredStatusPending
	if err := n.store.InsertDeferredNotification(ctx, notification); err != nil {
		return fmt.Errorf("inserting deferred notification: %w", err)
	}

	n.logger.Info("notification deferred past quiet hours",
		"recipient_id", notification.RecipientID,
		"resume_at", notification.ResumeAt,
	)
	return nil
}

// Flush delivers due pending notifications. Notifications that fail to send
// stay pending and are picked up by the next flush.
func (n *Notifier) Flush(ctx context.Context) (FlushResult, error) {
	var result FlushResult

	due, err := n.store.DueDeferredNotifications(ctx, n.batchSize)
	if err != nil {
		return result, fmt.Errorf("listing due deferred notifications: %w", err)
	}
	result.Due = len(due)

	for _, notification := range due {
		msg := domain.Message{
			Channel:  domain.ChannelPush,
			To:       notification.DeviceToken,
			Platform: notification.Platform,
			Title:    notification.Title,
			Body:     notification.Body,
			Data:     notification.Data,
		}

		r := n.dispatcher.Dispatch(ctx, msg)
		if !r.Success {
			result.Failed++
			n.logger.Warn("deferred notification send failed",
				"notification_id", notification.ID,
				"error", r.Error,
			)
			continue
		}

		now := time.Now()
		if err := n.store.MarkDeferredNotificationSent(ctx, notification.ID, now); err != nil {
			n.logger.Error("failed to mark deferred notification sent",
				"notification_id", notification.ID,
				"error", err,
			)
			continue
		}
		result.Sent++
	}

	if result.Due > 0 {
		n.logger.Info("deferred notification flush complete",
			"due", result.Due,
			"sent", result.Sent,
			"failed", result.Failed,
		)
	}
	return result, nil
}
