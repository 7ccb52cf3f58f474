package campaign

import (
	"context"
	"log/slog"

	"github.com/plateshare/comms-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DueStore lists campaigns whose scheduled time has passed.
type DueStore interface {
	DueCampaigns(ctx context.Context, limit int) ([]domain.Campaign, error)
}

// Checker is the periodic sweep that triggers processing of due scheduled
// campaigns. Each tick handles a small batch so one sweep stays bounded.
type Checker struct {
	store     DueStore
	processor *Processor
	batchSize int
	logger    *slog.Logger
}

func NewChecker(store DueStore, processor *Processor, logger *slog.Logger) *Checker {
	return &Checker{
		store:     store,
		processor: processor,
		batchSize: 10,
		logger:    logger,
	}
}

// Run executes one sweep and returns the number of campaigns triggered.
// Campaigns are processed concurrently and independently: one campaign's
// failure never blocks the others.
func (c *Checker) Run(ctx context.Context) (int, error) {
	due, err := c.store.DueCampaigns(ctx, c.batchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	for _, cmp := range due {
		cmp := cmp
		g.Go(func() error {
			if _, err := c.processor.Process(ctx, cmp.ID); err != nil {
				c.logger.Error("scheduled campaign failed",
					"campaign_id", cmp.ID,
					"name", cmp.Name,
					"error", err,
				)
			}
			// Failures are logged per campaign, never propagated: the sweep
			// must trigger every due campaign.
			return nil
		})
	}
	g.Wait()

	c.logger.Info("scheduled campaign sweep complete", "triggered", len(due))
	return len(due), nil
}
