package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshfold/support-chat/internal/middleware"
	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/pkg/logger"
)

// AgentHandler handles the support staff endpoints.
type AgentHandler struct {
	threads     *service.ThreadService
	suggestions *service.SuggestionService
	logger      *logger.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(threads *service.ThreadService, suggestions *service.SuggestionService, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		threads:     threads,
		suggestions: suggestions,
		logger:      log,
	}
}

// ListThreads handles GET /api/v1/agent/threads?branch_id=&status=
func (h *AgentHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := model.ParseThreadStatus(q.Get("status"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "status"})
		return
	}

	threads, err := h.threads.ListForBranch(r.Context(), middleware.GetUserID(r.Context()), q.Get("branch_id"), status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if threads == nil {
		threads = []model.Thread{}
	}

	writeJSON(w, http.StatusOK, ThreadListResponse{Threads: threads})
}

// CustomerThread handles GET /api/v1/agent/customers/{customerID}/thread?branch_id=
func (h *AgentHandler) CustomerThread(w http.ResponseWriter, r *http.Request) {
	t, err := h.threads.GetOrCreateForCustomer(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "customerID"),
		r.URL.Query().Get("branch_id"),
	)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Pickup handles POST /api/v1/agent/threads/{id}/pickup
func (h *AgentHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	t, err := h.threads.Pickup(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Transfer handles POST /api/v1/agent/threads/{id}/transfer
func (h *AgentHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	t, err := h.threads.Transfer(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.TargetAgentID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// SetStatus handles PUT /api/v1/agent/threads/{id}/status
func (h *AgentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req model.StatusRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	t, err := h.threads.SetStatus(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Hide handles DELETE /api/v1/agent/threads/{id}
func (h *AgentHandler) Hide(w http.ResponseWriter, r *http.Request) {
	if err := h.threads.Hide(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Suggestion handles GET /api/v1/agent/threads/{id}/suggestion
func (h *AgentHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	s, err := h.suggestions.Suggest(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, s)
}
