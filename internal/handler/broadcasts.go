package handler

import (
	"net/http"

	"github.com/freshfold/support-chat/internal/middleware"
	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/pkg/logger"
)

// BroadcastHandler handles broadcast endpoints.
type BroadcastHandler struct {
	broadcasts *service.BroadcastService
	logger     *logger.Logger
}

// NewBroadcastHandler creates a new broadcast handler.
func NewBroadcastHandler(broadcasts *service.BroadcastService, log *logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{broadcasts: broadcasts, logger: log}
}

// Send handles POST /api/v1/agent/broadcasts
func (h *BroadcastHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.BroadcastRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	resp, err := h.broadcasts.Send(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
