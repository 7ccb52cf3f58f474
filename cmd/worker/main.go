package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/plateshare/comms-service/internal/automation"
	"github.com/plateshare/comms-service/internal/campaign"
	"github.com/plateshare/comms-service/internal/config"
	"github.com/plateshare/comms-service/internal/deferred"
	"github.com/plateshare/comms-service/internal/provider"
	"github.com/plateshare/comms-service/internal/store"
	"github.com/plateshare/comms-service/internal/worker"
	"github.com/robfig/cron/v3"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	counters := store.NewCounterStore(redisStore.Client(), logger)
	retryQueue := worker.NewRetryQueue(redisStore.Client(), logger)

	emailClient := provider.NewEmailClient(cfg.EmailAPIURL, cfg.EmailAPIKey)
	pushClient := provider.NewPushClient(cfg.PushAPIURL, cfg.PushAPIKey)
	dispatcher := worker.NewDispatcher(emailClient, pushClient, pgStore, logger)

	campaignProcessor := campaign.NewProcessor(pgStore, dispatcher, counters, cfg.DispatchConcurrency, logger)
	checker := campaign.NewChecker(pgStore, campaignProcessor, logger)
	automationProcessor := automation.NewProcessor(pgStore, dispatcher, logger)
	notifier := deferred.NewNotifier(pgStore, dispatcher, logger)

	// Operator retries land on the Redis queue; route them back to the
	// automation processor.
	go retryQueue.Start(ctx, func(ctx context.Context, job worker.RetryJob) {
		switch job.Kind {
		case worker.RetryKindAutomationItem:
			if err := automationProcessor.ProcessItem(ctx, job.ItemID); err != nil {
				logger.Error("retry job failed", "job_id", job.ID, "item_id", job.ItemID, "error", err)
			}
		default:
			logger.Warn("unknown retry job kind", "job_id", job.ID, "kind", job.Kind)
		}
	})

	c := cron.New()

	_, err = c.AddFunc("*/5 * * * *", func() {
		if triggered, err := checker.Run(ctx); err != nil {
			logger.Error("scheduled campaign check failed", "error", err)
		} else if triggered > 0 {
			logger.Info("scheduled campaigns triggered", "count", triggered)
		}
	})
	if err != nil {
		logger.Error("failed to schedule campaign checker", "error", err)
		os.Exit(1)
	}

	_, err = c.AddFunc("*/5 * * * *", func() {
		if _, err := automationProcessor.Sweep(ctx); err != nil {
			logger.Error("automation sweep failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to schedule automation sweep", "error", err)
		os.Exit(1)
	}

	_, err = c.AddFunc(fmt.Sprintf("0 %d * * *", cfg.DeferredFlushHour), func() {
		if _, err := notifier.Flush(ctx); err != nil {
			logger.Error("deferred notification flush failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to schedule deferred flush", "error", err)
		os.Exit(1)
	}

	c.Start()
	logger.Info("worker started",
		"campaign_check", "*/5 * * * *",
		"automation_sweep", "*/5 * * * *",
		"deferred_flush_hour", cfg.DeferredFlushHour,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	cancel()
	<-c.Stop().Done()
	logger.Info("worker stopped")
}
