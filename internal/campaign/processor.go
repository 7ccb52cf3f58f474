// Package campaign orchestrates bulk sends: the processor drives a single
// campaign through its lifecycle and the checker sweeps for due scheduled
// campaigns.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plateshare/comms-service/internal/domain"
	"github.com/plateshare/comms-service/internal/template"
	"github.com/plateshare/comms-service/internal/worker"
)

// Store is the campaign persistence surface the processor needs.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	// ClaimForSending flips a draft/scheduled campaign to sending and reports
	// whether this caller won the claim.
	ClaimForSending(ctx context.Context, id string) (bool, error)
	UpdateCampaignStatus(ctx context.Context, id, status string) error
	FinishCampaign(ctx context.Context, id, status string, sentCount, totalRecipients int, sentAt time.Time) error
	ResolveSegmentRecipients(ctx context.Context, segmentID string, limit int) ([]domain.Recipient, error)
}

// BatchDispatcher fans a batch of messages out with bounded concurrency.
type BatchDispatcher interface {
	DispatchBatch(ctx context.Context, messages []domain.Message, concurrency int) worker.BatchResult
}

// Counters tracks live per-campaign send counters for the dashboard.
// Optional; nil disables counting.
type Counters interface {
	IncrSent(ctx context.Context, campaignID string, n int)
	IncrFailed(ctx context.Context, campaignID string, n int)
}

// Summary is the processor's result for one campaign run.
type Summary struct {
	CampaignID      string `json:"campaign_id"`
	Status          string `json:"status"`
	TotalRecipients int    `json:"total_recipients"`
	Sent            int    `json:"sent"`
	Failed          int    `json:"failed"`
}

// Processor drives one campaign through
// draft/scheduled → sending → sent|partial|failed.
type Processor struct {
	store       Store
	dispatcher  BatchDispatcher
	counters    Counters
	concurrency int
	// recipientCap bounds a single campaign's audience as a safety limit.
	recipientCap int
	logger       *slog.Logger
}

// NewProcessor builds a processor sending concurrency messages at a time;
// values below 1 fall back to 10.
func NewProcessor(store Store, dispatcher BatchDispatcher, counters Counters, concurrency int, logger *slog.Logger) *Processor {
	if concurrency < 1 {
		concurrency = 10
	}
	return &Processor{
		store:        store,
		dispatcher:   dispatcher,
		counters:     counters,
		concurrency:  concurrency,
		recipientCap: 10000,
		logger:       logger,
	}
}

// Process sends one campaign. Dispatch failures for individual recipients are
// folded into the partial/sent decision; only infrastructure failures
// (campaign missing, segment resolution, persistence) surface as errors, and
// those also leave the campaign marked failed.
func (p *Processor) Process(ctx context.Context, campaignID string) (*Summary, error) {
	c, err := p.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("fetching campaign %s: %w", campaignID, err)
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}

	claimed, err := p.store.ClaimForSending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("claiming campaign %s: %w", campaignID, err)
	}
	if !claimed {
		p.logger.Info("campaign already claimed, skipping", "campaign_id", campaignID)
		return &Summary{CampaignID: campaignID, Status: c.Status}, nil
	}

	recipients, err := p.store.ResolveSegmentRecipients(ctx, c.SegmentID, p.recipientCap)
	if err != nil {
		p.fail(ctx, campaignID)
		return nil, fmt.Errorf("resolving segment %s: %w", c.SegmentID, err)
	}

	if len(recipients) == 0 {
		now := time.Now()
		if err := p.store.FinishCampaign(ctx, campaignID, domain.CampaignStatusSent, 0, 0, now); err != nil {
			return nil, fmt.Errorf("finishing empty campaign %s: %w", campaignID, err)
		}
		p.logger.Info("campaign had no recipients", "campaign_id", campaignID)
		return &Summary{CampaignID: campaignID, Status: domain.CampaignStatusSent}, nil
	}

	messages := make([]domain.Message, len(recipients))
	for i, r := range recipients {
		data := map[string]string{
			"name":       r.Name,
			"first_name": template.FirstName(r.Name),
			"email":      r.Email,
		}
		messages[i] = domain.Message{
			Channel:    domain.ChannelEmail,
			To:         r.Email,
			Subject:    template.Render(c.Subject, data),
			Body:       template.Render(c.Content, data),
			CampaignID: c.ID,
		}
	}

	batch := p.dispatcher.DispatchBatch(ctx, messages, p.concurrency)

	if p.counters != nil {
		p.counters.IncrSent(ctx, campaignID, batch.Successful)
		p.counters.IncrFailed(ctx, campaignID, batch.Failed)
	}

	status := domain.CampaignStatusSent
	if batch.Failed > 0 {
		status = domain.CampaignStatusPartial
	}

	now := time.Now()
	if err := p.store.FinishCampaign(ctx, campaignID, status, batch.Successful, batch.Total, now); err != nil {
		return nil, fmt.Errorf("finishing campaign %s: %w", campaignID, err)
	}

	p.logger.Info("campaign processed",
		"campaign_id", campaignID,
		"status", status,
		"total", batch.Total,
		"sent", batch.Successful,
		"failed", batch.Failed,
	)

	return &Summary{
		CampaignID:      campaignID,
		Status:          status,
		TotalRecipients: batch.Total,
		Sent:            batch.Successful,
		Failed:          batch.Failed,
	}, nil
}

func (p *Processor) fail(ctx context.Context, campaignID string) {
	if err := p.store.UpdateCampaignStatus(ctx, campaignID, domain.CampaignStatusFailed); err != nil {
		p.logger.Error("failed to mark campaign failed",
			"campaign_id", campaignID,
			"error", err,
		)
	}
}
