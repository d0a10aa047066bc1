package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/pkg/logger"
)

// ThreadHandler handles thread and message endpoints shared by customers
// and agents.
type ThreadHandler struct {
	threads  *service.ThreadService
	messages *service.MessageService
	logger   *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(threads *service.ThreadService, messages *service.MessageService, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		threads:  threads,
		messages: messages,
		logger:   log,
	}
}

// ThreadListResponse wraps a list of threads.
type ThreadListResponse struct {
	Threads []model.Thread `json:"threads"`
}

// GetOrCreate handles GET /api/v1/threads?branch_id=
func (h *ThreadHandler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	t, err := h.threads.GetOrCreate(r.Context(), caller.ID, r.URL.Query().Get("branch_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Mine handles GET /api/v1/threads/mine
func (h *ThreadHandler) Mine(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.ListForCustomer(r.Context(), callerFrom(r).ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if threads == nil {
		threads = []model.Thread{}
	}

	writeJSON(w, http.StatusOK, ThreadListResponse{Threads: threads})
}

// Messages handles GET /api/v1/threads/{id}/messages
func (h *ThreadHandler) Messages(w http.ResponseWriter, r *http.Request) {
	resp, err := h.messages.List(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if resp.Messages == nil {
		resp.Messages = []model.Message{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/threads/{id}/messages
func (h *ThreadHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	msg, err := h.messages.Send(r.Context(), callerFrom(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
