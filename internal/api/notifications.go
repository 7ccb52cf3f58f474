package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/plateshare/comms-service/internal/deferred"
	"github.com/plateshare/comms-service/internal/domain"
	"github.com/plateshare/comms-service/internal/store"
)

type NotificationHandler struct {
	store    *store.PostgresStore
	notifier *deferred.Notifier
}

func NewNotificationHandler(s *store.PostgresStore, notifier *deferred.Notifier) *NotificationHandler {
	return &NotificationHandler{store: s, notifier: notifier}
}

type deferNotificationRequest struct {
	RecipientID string            `json:"recipient_id"`
	DeviceToken string            `json:"device_token"`
	Platform    string            `json:"platform"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	ResumeAt    string            `json:"resume_at"`
}

func (h *NotificationHandler) Defer(w http.ResponseWriter, r *http.Request) {
	var req deferNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RecipientID == "" {
		respondError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}
	if req.DeviceToken == "" {
		respondError(w, http.StatusBadRequest, "device_token is required")
		return
	}

	resumeAt, err := time.Parse(time.RFC3339, req.ResumeAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "resume_at must be RFC 3339")
		return
	}

	err = h.notifier.Defer(r.Context(), domain.DeferredNotification{
		RecipientID: req.RecipientID,
		DeviceToken: req.DeviceToken,
		Platform:    req.Platform,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		ResumeAt:    resumeAt,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to defer notification")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"recipient_id": req.RecipientID,
		"status":       "deferred",
	})
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	recipientID := r.URL.Query().Get("recipient_id")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	notifications, err := h.store.ListDeferredNotifications(r.Context(), recipientID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list deferred notifications")
		return
	}

	respondJSON(w, http.StatusOK, notifications)
}
