package api

import (
	"net/http"

	"github.com/plateshare/comms-service/internal/engine"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthHandler returns the health check handler.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:  "healthy",
			Version: "1.0.0",
		})
	}
}

// AIHealthHandler exposes the AI provider's circuit breaker state so admins
// can see whether insight features are degraded.
func AIHealthHandler(breaker *engine.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := breaker.GetState()

		status := "healthy"
		if state.State != engine.StateClosed {
			status = "degraded"
		}

		type aiHealthResponse struct {
			Status         string                     `json:"status"`
			CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
		}

		respondJSON(w, http.StatusOK, aiHealthResponse{
			Status:         status,
			CircuitBreaker: state,
		})
	}
}
