package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plateshare/comms-service/internal/api"
	"github.com/plateshare/comms-service/internal/automation"
	"github.com/plateshare/comms-service/internal/campaign"
	"github.com/plateshare/comms-service/internal/config"
	"github.com/plateshare/comms-service/internal/deferred"
	"github.com/plateshare/comms-service/internal/engine"
	"github.com/plateshare/comms-service/internal/insight"
	"github.com/plateshare/comms-service/internal/provider"
	"github.com/plateshare/comms-service/internal/store"
	"github.com/plateshare/comms-service/internal/worker"
	"github.com/plateshare/comms-service/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Apply embedded schema migrations
	if err := pgStore.ApplyMigrations(ctx, migrations.Files); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	counters := store.NewCounterStore(redisStore.Client(), logger)
	retryQueue := worker.NewRetryQueue(redisStore.Client(), logger)

	// Message providers and dispatch
	emailClient := provider.NewEmailClient(cfg.EmailAPIURL, cfg.EmailAPIKey)
	pushClient := provider.NewPushClient(cfg.PushAPIURL, cfg.PushAPIKey)
	dispatcher := worker.NewDispatcher(emailClient, pushClient, pgStore, logger)

	campaignProcessor := campaign.NewProcessor(pgStore, dispatcher, counters, cfg.DispatchConcurrency, logger)
	automationProcessor := automation.NewProcessor(pgStore, dispatcher, logger)
	notifier := deferred.NewNotifier(pgStore, dispatcher, logger)

	// AI insight path: breaker, rate-limited executor, request queue
	breaker := engine.NewCircuitBreaker("ai-provider", 5, 30*time.Second, logger)
	backoff := engine.NewBackoff(time.Second, 30*time.Second, 0.2)
	executor := engine.NewExecutor("ai-provider", breaker, backoff, engine.ExecutorConfig{
		MinInterval:    time.Second,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
	}, logger)
	requestQueue := engine.NewRequestQueue(executor, 2*time.Minute, logger)
	aiClient := provider.NewAIClient(cfg.AIAPIURL, cfg.AIAPIKey, cfg.AIModel)
	insights := insight.NewService(executor, requestQueue, aiClient, logger)

	// Setup router
	router := api.NewRouter(api.Deps{
		Store:               pgStore,
		Counters:            counters,
		CampaignProcessor:   campaignProcessor,
		AutomationProcessor: automationProcessor,
		Notifier:            notifier,
		Insights:            insights,
		Breaker:             breaker,
		RequestQueue:        requestQueue,
		RetryQueue:          retryQueue,
		Logger:              logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
