package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/plateshare/comms-service/internal/engine"
	"github.com/plateshare/comms-service/internal/insight"
)

type InsightHandler struct {
	service *insight.Service
	logger  *slog.Logger
}

func NewInsightHandler(service *insight.Service, logger *slog.Logger) *InsightHandler {
	return &InsightHandler{service: service, logger: logger}
}

type suggestionsRequest struct {
	Topic string `json:"topic"`
}

type digestRequest struct {
	ActivitySummary string `json:"activity_summary"`
}

type insightResponse struct {
	Text string `json:"text"`
}

// Suggestions generates campaign copy for a topic. This is the interactive
// AI path; degraded-provider errors map to 503 with a retry hint.
func (h *InsightHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		respondError(w, http.StatusBadRequest, "topic is required")
		return
	}

	text, err := h.service.CampaignSuggestions(r.Context(), req.Topic)
	if err != nil {
		h.respondInsightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, insightResponse{Text: text})
}

// Digest generates an engagement digest through the queued AI path.
func (h *InsightHandler) Digest(w http.ResponseWriter, r *http.Request) {
	var req digestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActivitySummary == "" {
		respondError(w, http.StatusBadRequest, "activity_summary is required")
		return
	}

	text, err := h.service.EngagementDigest(r.Context(), req.ActivitySummary)
	if err != nil {
		h.respondInsightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, insightResponse{Text: text})
}

func (h *InsightHandler) respondInsightError(w http.ResponseWriter, err error) {
	h.logger.Warn("insight request failed", "error", err)

	status := http.StatusBadGateway
	var unavailable *engine.ServiceUnavailableError
	var expired *engine.QueueTimeoutError
	switch {
	case errors.As(err, &unavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &expired):
		status = http.StatusGatewayTimeout
	}

	respondError(w, status, insight.UserMessage(err))
}
