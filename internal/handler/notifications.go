package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshfold/support-chat/internal/middleware"
	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/pkg/logger"
)

// NotificationHandler handles the inbox, preference and device endpoints.
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: log}
}

// NotificationListResponse wraps the inbox.
type NotificationListResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// PreferencesResponse carries the effective preferences.
type PreferencesResponse struct {
	Preferences map[string]bool `json:"preferences"`
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.notifications.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: list})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkRead(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.notifications.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MarkAllReadResponse{Updated: updated})
}

// Preferences handles GET /api/v1/notifications/preferences
func (h *NotificationHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.notifications.Preferences(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{Preferences: prefs})
}

// UpdatePreferences handles PUT /api/v1/notifications/preferences
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch map[string]bool
	if !decode(w, r, h.logger, &patch) {
		return
	}

	prefs, err := h.notifications.UpdatePreferences(r.Context(), middleware.GetUserID(r.Context()), patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{Preferences: prefs})
}

// RegisterDevice handles PUT /api/v1/devices
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterDeviceRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	if err := h.notifications.RegisterDevice(r.Context(), callerFrom(r), &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
