package store

import (
	"context"
	"fmt"
	"time"

	"github.com/plateshare/comms-service/internal/domain"
)

func (s *PostgresStore) InsertDeferredNotification(ctx context.Context, n domain.DeferredNotification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deferred_notifications
			(recipient_id, device_token, platform, title, body, data, resume_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.RecipientID, n.DeviceToken, n.Platform, n.Title, n.Body, n.Data, n.ResumeAt, n.Status)
	if err != nil {
		return fmt.Errorf("inserting deferred notification: %w", err)
	}
	return nil
}

// DueDeferredNotifications lists pending notifications whose quiet-hours
// window has passed, oldest first.
func (s *PostgresStore) DueDeferredNotifications(ctx context.Context, limit int) ([]domain.DeferredNotification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, device_token, platform, title, body, data,
		       resume_at, status, sent_at, created_at
		FROM deferred_notifications
		WHERE status = 'pending' AND resume_at <= NOW()
		ORDER BY resume_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due deferred notifications: %w", err)
	}
	defer rows.Close()

	notifications := []domain.DeferredNotification{}
	for rows.Next() {
		var n domain.DeferredNotification
		err := rows.Scan(
			&n.ID, &n.RecipientID, &n.DeviceToken, &n.Platform, &n.Title, &n.Body, &n.Data,
			&n.ResumeAt, &n.Status, &n.SentAt, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning deferred notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, nil
}

func (s *PostgresStore) MarkDeferredNotificationSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE deferred_notifications
		SET status = 'sent', sent_at = $2
		WHERE id = $1
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("marking deferred notification sent: %w", err)
	}
	return nil
}

// ListDeferredNotifications returns a recipient's deferred notifications,
// newest first. An empty recipientID lists across recipients.
func (s *PostgresStore) ListDeferredNotifications(ctx context.Context, recipientID string, limit int) ([]domain.DeferredNotification, error) {
	query := `
		SELECT id, recipient_id, device_token, platform, title, body, data,
		       resume_at, status, sent_at, created_at
		FROM deferred_notifications`
	args := []interface{}{}
	argIdx := 1

	if recipientID != "" {
		query += fmt.Sprintf(" WHERE recipient_id = $%d", argIdx)
		args = append(args, recipientID)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deferred notifications: %w", err)
	}
	defer rows.Close()

	notifications := []domain.DeferredNotification{}
	for rows.Next() {
		var n domain.DeferredNotification
		err := rows.Scan(
			&n.ID, &n.RecipientID, &n.DeviceToken, &n.Platform, &n.Title, &n.Body, &n.Data,
			&n.ResumeAt, &n.Status, &n.SentAt, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning deferred notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, nil
}
