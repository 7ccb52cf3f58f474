package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/plateshare/comms-service/internal/automation"
	"github.com/plateshare/comms-service/internal/store"
	"github.com/plateshare/comms-service/internal/worker"
)

type AutomationHandler struct {
	store      *store.PostgresStore
	processor  *automation.Processor
	retryQueue *worker.RetryQueue
}

func NewAutomationHandler(s *store.PostgresStore, processor *automation.Processor, retryQueue *worker.RetryQueue) *AutomationHandler {
	return &AutomationHandler{store: s, processor: processor, retryQueue: retryQueue}
}

func (h *AutomationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.store.GetAutomation(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get automation")
		return
	}
	if a == nil {
		respondError(w, http.StatusNotFound, "automation not found")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

type enrollRequest struct {
	RecipientID    string            `json:"recipient_id"`
	RecipientEmail string            `json:"recipient_email"`
	TemplateData   map[string]string `json:"template_data,omitempty"`
}

func (h *AutomationHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RecipientID == "" {
		respondError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}
	if req.RecipientEmail == "" {
		respondError(w, http.StatusBadRequest, "recipient_email is required")
		return
	}

	err := h.processor.Enroll(r.Context(), id, req.RecipientID, req.RecipientEmail, req.TemplateData)
	switch {
	case errors.Is(err, automation.ErrAlreadyEnrolled):
		respondError(w, http.StatusConflict, "recipient is already enrolled")
		return
	case errors.Is(err, automation.ErrAutomationInactive):
		respondError(w, http.StatusConflict, "automation is not active")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to enroll recipient")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"automation_id": id,
		"recipient_id":  req.RecipientID,
		"status":        "enrolled",
	})
}

func (h *AutomationHandler) Queue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	items, err := h.store.ListQueueItems(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list queue items")
		return
	}

	respondJSON(w, http.StatusOK, items)
}

// RetryItem resets a failed queue item and schedules it for immediate pickup
// by the worker's retry poller.
func (h *AutomationHandler) RetryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.processor.RetryItem(r.Context(), id); err != nil {
		respondError(w, http.StatusConflict, "queue item is not in a failed state")
		return
	}

	if err := h.retryQueue.Enqueue(r.Context(), worker.RetryKindAutomationItem, id, time.Now()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule retry")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"item_id": id,
		"status":  "retry_scheduled",
	})
}
