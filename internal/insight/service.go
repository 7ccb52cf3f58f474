// Package insight generates AI-assisted content for the marketplace:
// campaign copy suggestions on demand and periodic engagement digests. All AI
// calls go through the rate-limited executor; digest generation, which nobody
// is waiting on, takes the queued path instead of competing with interactive
// requests.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/plateshare/comms-service/internal/engine"
)

// AIClient is the completion surface of the AI provider.
type AIClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	executor *engine.Executor
	queue    *engine.RequestQueue
	ai       AIClient
	logger   *slog.Logger
}

func NewService(executor *engine.Executor, queue *engine.RequestQueue, ai AIClient, logger *slog.Logger) *Service {
	return &Service{
		executor: executor,
		queue:    queue,
		ai:       ai,
		logger:   logger,
	}
}

// CampaignSuggestions proposes subject lines and body copy for a campaign
// topic. Interactive path: admins wait on this call.
func (s *Service) CampaignSuggestions(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(
		"Suggest three subject lines and a short body for a food-sharing "+
			"marketplace email campaign about: %s", topic)

	result, err := s.executor.Execute(ctx, func(ctx context.Context) (any, error) {
		return s.ai.Complete(ctx, prompt)
	}, 0)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// EngagementDigest summarizes recent marketplace activity. Non-urgent: goes
// through the request queue so interactive calls keep priority on the shared
// rate budget.
func (s *Service) EngagementDigest(ctx context.Context, activitySummary string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a short, friendly weekly digest for a food-sharing community "+
			"from this activity data: %s", activitySummary)

	result, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.ai.Complete(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// UserMessage converts an AI-path error into copy safe to show an admin. The
// breaker's remaining cooldown becomes a concrete retry hint.
func UserMessage(err error) string {
	var unavailable *engine.ServiceUnavailableError
	if errors.As(err, &unavailable) {
		return fmt.Sprintf("The AI assistant is temporarily unavailable. Please retry in %d seconds.",
			unavailable.RetrySeconds())
	}

	var exhausted *engine.RetriesExhaustedError
	if errors.As(err, &exhausted) {
		return "The AI assistant could not be reached. Please try again later."
	}

	var expired *engine.QueueTimeoutError
	if errors.As(err, &expired) {
		return "The request waited too long and was dropped. Please try again."
	}

	return "Something went wrong generating the insight."
}
