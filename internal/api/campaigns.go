package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/plateshare/comms-service/internal/campaign"
	"github.com/plateshare/comms-service/internal/domain"
	"github.com/plateshare/comms-service/internal/store"
)

type CampaignHandler struct {
	store     *store.PostgresStore
	processor *campaign.Processor
	counters  *store.CounterStore
	logger    *slog.Logger
}

func NewCampaignHandler(s *store.PostgresStore, processor *campaign.Processor, counters *store.CounterStore, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{store: s, processor: processor, counters: counters, logger: logger}
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if req.SegmentID == "" {
		respondError(w, http.StatusBadRequest, "segment_id is required")
		return
	}

	status := domain.CampaignStatusDraft
	var scheduledAt *time.Time
	if req.ScheduledAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "scheduled_at must be RFC 3339")
			return
		}
		status = domain.CampaignStatusScheduled
		scheduledAt = &parsed
	}

	c, err := h.store.CreateCampaign(r.Context(), req.Name, req.Subject, req.Content, req.SegmentID, status, scheduledAt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	campaigns, err := h.store.ListCampaigns(r.Context(), status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	respondJSON(w, http.StatusOK, campaigns)
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}

	// Live counters supplement the durable row while the campaign is still
	// sending.
	counts, err := h.counters.GetCounts(r.Context(), id)
	if err != nil {
		h.logger.Warn("failed to read live counters", "campaign_id", id, "error", err)
	}

	type campaignDetail struct {
		domain.Campaign
		LiveCounts store.CampaignCounts `json:"live_counts"`
	}

	respondJSON(w, http.StatusOK, campaignDetail{
		Campaign:   *c,
		LiveCounts: counts,
	})
}

// Send triggers an immediate campaign send. The send runs in the background;
// the response only confirms the campaign was accepted.
func (h *CampaignHandler) Send(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.Status != domain.CampaignStatusDraft && c.Status != domain.CampaignStatusScheduled {
		respondError(w, http.StatusConflict, "campaign is not in a sendable state")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := h.processor.Process(ctx, id); err != nil {
			h.logger.Error("background campaign send failed", "campaign_id", id, "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"campaign_id": id,
		"status":      "accepted",
	})
}
