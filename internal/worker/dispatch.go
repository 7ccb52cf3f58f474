// Package worker contains the dispatch tasks: sending a single message
// through a provider with bounded retry, fanning a batch out with bounded
// concurrency, and the Redis-backed operator retry queue.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/plateshare/comms-service/internal/domain"
	"github.com/plateshare/comms-service/internal/engine"
)

// EmailSender is the email provider surface the dispatcher needs.
type EmailSender interface {
	Name() string
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// PushSender is the push provider surface the dispatcher needs.
type PushSender interface {
	Name() string
	Send(ctx context.Context, deviceToken, platform, title, body string, data map[string]string) (string, error)
}

// AttemptRecorder persists one provider send attempt. Optional; a nil
// recorder disables attempt logging.
type AttemptRecorder interface {
	RecordDispatchAttempt(ctx context.Context, rec domain.DispatchAttempt) error
}

// Dispatcher sends single messages with its own bounded retry policy. The
// email/push providers are a different dependency than the AI provider, so
// dispatch retries are independent of the AI executor and its breaker:
// provider failures here are absorbed into the DispatchResult, never thrown.
type Dispatcher struct {
	email       EmailSender
	push        PushSender
	attempts    AttemptRecorder
	backoff     *engine.Backoff
	maxAttempts int
	logger      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(email EmailSender, push PushSender, attempts AttemptRecorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		email:       email,
		push:        push,
		attempts:    attempts,
		backoff:     engine.NewBackoff(500*time.Millisecond, 15*time.Second, 0.2),
		maxAttempts: 3,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Dispatch sends one message, retrying transient provider failures with
// increasing delay. The returned result is always usable; Success=false
// carries the final error text.
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.Message) domain.DispatchResult {
	var result domain.DispatchResult

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		start := time.Now()
		messageID, provider, err := d.send(ctx, msg)
		elapsed := time.Since(start)

		result.Attempts = attempt + 1
		result.Provider = provider

		if err == nil {
			result.Success = true
			result.MessageID = messageID
			result.Error = ""
			d.recordAttempt(ctx, msg, result, elapsed, "")
			return result
		}

		result.Success = false
		result.Error = err.Error()
		d.recordAttempt(ctx, msg, result, elapsed, err.Error())

		c := engine.Classify(err)
		if !c.ShouldRetry || attempt == d.maxAttempts-1 {
			break
		}

		delay := d.backoff.Delay(attempt, c.RetryAfter)
		d.logger.Warn("dispatch failed, retrying",
			"channel", msg.Channel,
			"to", msg.To,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := d.sleep(ctx, delay); err != nil {
			result.Error = err.Error()
			break
		}
	}

	d.logger.Warn("dispatch failed",
		"channel", msg.Channel,
		"to", msg.To,
		"attempts", result.Attempts,
		"error", result.Error,
	)
	return result
}

func (d *Dispatcher) send(ctx context.Context, msg domain.Message) (messageID, provider string, err error) {
	switch msg.Channel {
	case domain.ChannelPush:
		id, err := d.push.Send(ctx, msg.To, msg.Platform, msg.Title, msg.Body, msg.Data)
		return id, d.push.Name(), err
	default:
		id, err := d.email.Send(ctx, msg.To, msg.Subject, msg.Body)
		return id, d.email.Name(), err
	}
}

func (d *Dispatcher) recordAttempt(ctx context.Context, msg domain.Message, result domain.DispatchResult, elapsed time.Duration, errMsg string) {
	if d.attempts == nil {
		return
	}

	status := "sent"
	if errMsg != "" {
		status = "failed"
	}

	err := d.attempts.RecordDispatchAttempt(ctx, domain.DispatchAttempt{
		Channel:        msg.Channel,
		Recipient:      msg.To,
		Provider:       result.Provider,
		Status:         status,
		MessageID:      result.MessageID,
		AttemptNumber:  result.Attempts,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		ErrorMessage:   errMsg,
		CampaignID:     msg.CampaignID,
		QueueItemID:    msg.QueueItemID,
	})
	if err != nil {
		d.logger.Error("failed to record dispatch attempt",
			"error", err,
			"channel", msg.Channel,
			"to", msg.To,
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
