package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plateshare/comms-service/internal/automation"
	"github.com/plateshare/comms-service/internal/campaign"
	"github.com/plateshare/comms-service/internal/deferred"
	"github.com/plateshare/comms-service/internal/engine"
	"github.com/plateshare/comms-service/internal/insight"
	"github.com/plateshare/comms-service/internal/store"
	"github.com/plateshare/comms-service/internal/worker"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Store               *store.PostgresStore
	Counters            *store.CounterStore
	CampaignProcessor   *campaign.Processor
	AutomationProcessor *automation.Processor
	Notifier            *deferred.Notifier
	Insights            *insight.Service
	Breaker             *engine.CircuitBreaker
	RequestQueue        *engine.RequestQueue
	RetryQueue          *worker.RetryQueue
	Logger              *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for the admin dashboard
	r.Use(corsMiddleware)

	// Handlers
	campaignHandler := NewCampaignHandler(deps.Store, deps.CampaignProcessor, deps.Counters, deps.Logger)
	automationHandler := NewAutomationHandler(deps.Store, deps.AutomationProcessor, deps.RetryQueue)
	notificationHandler := NewNotificationHandler(deps.Store, deps.Notifier)
	insightHandler := NewInsightHandler(deps.Insights, deps.Logger)
	dashHandler := NewDashboardHandler(deps.Store, deps.Breaker, deps.RequestQueue, deps.RetryQueue, deps.Logger)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Get("/ai/health", AIHealthHandler(deps.Breaker))

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", campaignHandler.Create)
			r.Get("/", campaignHandler.List)
			r.Get("/{id}", campaignHandler.Get)
			r.Post("/{id}/send", campaignHandler.Send)
		})

		r.Route("/automations", func(r chi.Router) {
			r.Get("/{id}", automationHandler.Get)
			r.Post("/{id}/enroll", automationHandler.Enroll)
			r.Get("/{id}/queue", automationHandler.Queue)
		})

		r.Post("/automation-items/{id}/retry", automationHandler.RetryItem)

		r.Route("/notifications/deferred", func(r chi.Router) {
			r.Post("/", notificationHandler.Defer)
			r.Get("/", notificationHandler.List)
		})

		r.Route("/insights", func(r chi.Router) {
			r.Post("/suggestions", insightHandler.Suggestions)
			r.Post("/digest", insightHandler.Digest)
		})

		r.Get("/metrics", dashHandler.Metrics)
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
