package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/plateshare/comms-service/internal/domain"
)

func (s *PostgresStore) CreateCampaign(ctx context.Context, name, subject, content, segmentID, status string, scheduledAt *time.Time) (*domain.Campaign, error) {
	var c domain.Campaign
	err := s.pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, subject, content, segment_id, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, subject, content, segment_id, status, scheduled_at,
		          sent_count, total_recipients, sent_at, created_at, updated_at
	`, name, subject, content, segmentID, status, scheduledAt).Scan(
		&c.ID, &c.Name, &c.Subject, &c.Content, &c.SegmentID, &c.Status, &c.ScheduledAt,
		&c.SentCount, &c.TotalRecipients, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting campaign: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, subject, content, segment_id, status, scheduled_at,
		       sent_count, total_recipients, sent_at, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Subject, &c.Content, &c.SegmentID, &c.Status, &c.ScheduledAt,
		&c.SentCount, &c.TotalRecipients, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying campaign: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, status string, limit int) ([]domain.Campaign, error) {
	query := `
		SELECT id, name, subject, content, segment_id, status, scheduled_at,
		       sent_count, total_recipients, sent_at, created_at, updated_at
		FROM campaigns`
	args := []interface{}{}
	argIdx := 1

	if status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []domain.Campaign{}
	for rows.Next() {
		var c domain.Campaign
		err := rows.Scan(
			&c.ID, &c.Name, &c.Subject, &c.Content, &c.SegmentID, &c.Status, &c.ScheduledAt,
			&c.SentCount, &c.TotalRecipients, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, nil
}

// ClaimForSending atomically flips a sendable campaign to sending. A zero
// affected-row count means another worker already claimed it.
func (s *PostgresStore) ClaimForSending(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE campaigns
		SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'scheduled')
	`, id)
	if err != nil {
		return false, fmt.Errorf("claiming campaign: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdateCampaignStatus(ctx context.Context, id, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishCampaign(ctx context.Context, id, status string, sentCount, totalRecipients int, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE campaigns
		SET status = $2, sent_count = $3, total_recipients = $4, sent_at = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, sentCount, totalRecipients, sentAt)
	if err != nil {
		return fmt.Errorf("finishing campaign: %w", err)
	}
	return nil
}

// DueCampaigns lists scheduled campaigns whose send time has passed, oldest
// first so a backlog drains in order.
func (s *PostgresStore) DueCampaigns(ctx context.Context, limit int) ([]domain.Campaign, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, subject, content, segment_id, status, scheduled_at,
		       sent_count, total_recipients, sent_at, created_at, updated_at
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= NOW()
		ORDER BY scheduled_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []domain.Campaign{}
	for rows.Next() {
		var c domain.Campaign
		err := rows.Scan(
			&c.ID, &c.Name, &c.Subject, &c.Content, &c.SegmentID, &c.Status, &c.ScheduledAt,
			&c.SentCount, &c.TotalRecipients, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning due campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, nil
}

// ResolveSegmentRecipients returns the members of a segment, capped at limit.
func (s *PostgresStore) ResolveSegmentRecipients(ctx context.Context, segmentID string, limit int) ([]domain.Recipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, COALESCE(name, '')
		FROM segment_members
		WHERE segment_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, segmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("resolving segment recipients: %w", err)
	}
	defer rows.Close()

	recipients := []domain.Recipient{}
	for rows.Next() {
		var r domain.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		recipients = append(recipients, r)
	}

	return recipients, nil
}
