package api

import (
	"log/slog"
	"net/http"

	"github.com/plateshare/comms-service/internal/engine"
	"github.com/plateshare/comms-service/internal/store"
	"github.com/plateshare/comms-service/internal/worker"
)

type DashboardHandler struct {
	store      *store.PostgresStore
	breaker    *engine.CircuitBreaker
	queue      *engine.RequestQueue
	retryQueue *worker.RetryQueue
	logger     *slog.Logger
}

func NewDashboardHandler(s *store.PostgresStore, breaker *engine.CircuitBreaker, queue *engine.RequestQueue, retryQueue *worker.RetryQueue, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		store:      s,
		breaker:    breaker,
		queue:      queue,
		retryQueue: retryQueue,
		logger:     logger,
	}
}

// Metrics aggregates send statistics, queue depths, and the AI breaker state
// into one dashboard payload.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetDispatchMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	retryDepth, err := h.retryQueue.Depth(r.Context())
	if err != nil {
		h.logger.Warn("failed to read retry queue depth", "error", err)
	}

	type metricsResponse struct {
		Dispatch       *store.DispatchMetrics     `json:"dispatch"`
		RetryQueue     int64                      `json:"retry_queue_depth"`
		AIRequestQueue int                        `json:"ai_request_queue_depth"`
		CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		Dispatch:       metrics,
		RetryQueue:     retryDepth,
		AIRequestQueue: h.queue.Depth(),
		CircuitBreaker: h.breaker.GetState(),
	})
}
