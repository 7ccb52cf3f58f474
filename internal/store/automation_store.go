package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/plateshare/comms-service/internal/domain"
)

// GetAutomation loads an automation with its steps ordered by step index.
// Step delays are stored in seconds.
func (s *PostgresStore) GetAutomation(ctx context.Context, id string) (*domain.Automation, error) {
	var a domain.Automation
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_active, created_at
		FROM automations WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying automation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, automation_id, step_index, subject, content, delay_seconds
		FROM automation_steps
		WHERE automation_id = $1
		ORDER BY step_index ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying automation steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step domain.AutomationStep
		var delaySeconds int64
		err := rows.Scan(&step.ID, &step.AutomationID, &step.StepIndex, &step.Subject, &step.Content, &delaySeconds)
		if err != nil {
			return nil, fmt.Errorf("scanning automation step: %w", err)
		}
		step.Delay = time.Duration(delaySeconds) * time.Second
		a.Steps = append(a.Steps, step)
	}

	return &a, nil
}

func (s *PostgresStore) GetQueueItem(ctx context.Context, id string) (*domain.AutomationQueueItem, error) {
	var item domain.AutomationQueueItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, automation_id, recipient_id, recipient_email, step_index,
		       scheduled_at, status, template_data, error_message, sent_at, created_at
		FROM automation_queue WHERE id = $1
	`, id).Scan(
		&item.ID, &item.AutomationID, &item.RecipientID, &item.RecipientEmail, &item.StepIndex,
		&item.ScheduledAt, &item.Status, &item.TemplateData, &item.ErrorMessage, &item.SentAt, &item.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying queue item: %w", err)
	}
	return &item, nil
}

// ClaimQueueItem flips a pending item to processing. A zero affected-row
// count means another worker already claimed it.
func (s *PostgresStore) ClaimQueueItem(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE automation_queue
		SET status = 'processing'
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claiming queue item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkQueueItemSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE automation_queue
		SET status = 'sent', sent_at = $2, error_message = NULL
		WHERE id = $1
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("marking queue item sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkQueueItemFailed(ctx context.Context, id, errorMessage string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE automation_queue
		SET status = 'failed', error_message = $2
		WHERE id = $1
	`, id, errorMessage)
	if err != nil {
		return fmt.Errorf("marking queue item failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAutomationRun(ctx context.Context, run domain.AutomationRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO automation_runs (automation_id, recipient_id, step_index, status, error_message)
		VALUES ($1, $2, $3, $4, $5)
	`, run.AutomationID, run.RecipientID, run.StepIndex, run.Status, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("inserting automation run: %w", err)
	}
	return nil
}

// IsEnrolled reports whether a recipient already has queue rows for an
// automation. Queue rows outlive runs, so this covers in-flight and completed
// enrollments alike.
func (s *PostgresStore) IsEnrolled(ctx context.Context, automationID, recipientID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM automation_queue
			WHERE automation_id = $1 AND recipient_id = $2
		)
	`, automationID, recipientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking enrollment: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertQueueItems(ctx context.Context, items []domain.AutomationQueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO automation_queue
				(automation_id, recipient_id, recipient_email, step_index, scheduled_at, status, template_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.AutomationID, item.RecipientID, item.RecipientEmail, item.StepIndex,
			item.ScheduledAt, item.Status, item.TemplateData)
		if err != nil {
			return fmt.Errorf("inserting queue item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing queue items: %w", err)
	}
	return nil
}

// DueQueueItems lists pending items whose scheduled time has passed, oldest
// first.
func (s *PostgresStore) DueQueueItems(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM automation_queue
		WHERE status = 'pending' AND scheduled_at <= NOW()
		ORDER BY scheduled_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due queue items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning queue item id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (s *PostgresStore) ResetFailedQueueItem(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE automation_queue
		SET status = 'pending', error_message = NULL
		WHERE id = $1 AND status = 'failed'
	`, id)
	if err != nil {
		return false, fmt.Errorf("resetting queue item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListQueueItems returns the queue rows for one automation, newest first.
func (s *PostgresStore) ListQueueItems(ctx context.Context, automationID string, limit int) ([]domain.AutomationQueueItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, automation_id, recipient_id, recipient_email, step_index,
		       scheduled_at, status, template_data, error_message, sent_at, created_at
		FROM automation_queue
		WHERE automation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying queue items: %w", err)
	}
	defer rows.Close()

	items := []domain.AutomationQueueItem{}
	for rows.Next() {
		var item domain.AutomationQueueItem
		err := rows.Scan(
			&item.ID, &item.AutomationID, &item.RecipientID, &item.RecipientEmail, &item.StepIndex,
			&item.ScheduledAt, &item.Status, &item.TemplateData, &item.ErrorMessage, &item.SentAt, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}
