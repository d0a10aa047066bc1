// Package handler implements the HTTP handlers of the support chat API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/middleware"
	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/pkg/logger"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error             string                  `json:"error"`
	Field             string                  `json:"field,omitempty"`
	Fields            []middleware.FieldError `json:"fields,omitempty"`
	AssignedAgentID   string                  `json:"assigned_agent_id,omitempty"`
	AssignedAgentName string                  `json:"assigned_agent_name,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service errors onto status codes. Unexpected
// errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var conflict *service.ConflictError
	var verr *service.ValidationError
	var rerr *middleware.RequestError

	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:             conflict.Error(),
			AssignedAgentID:   conflict.AssignedAgentID,
			AssignedAgentName: conflict.AssignedAgentName,
		})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.As(err, &rerr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: rerr.Message, Fields: rerr.Fields})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSuggestionsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads and validates the request body, answering 400 itself on
// failure.
func decode(w http.ResponseWriter, r *http.Request, log *logger.Logger, dst any) bool {
	if err := middleware.DecodeJSON(r, dst); err != nil {
		writeServiceError(w, r, log, err)
		return false
	}
	return true
}

// callerFrom returns the authenticated caller of r.
func callerFrom(r *http.Request) service.Caller {
	return service.Caller{
		ID:   middleware.GetUserID(r.Context()),
		Role: model.Role(middleware.GetRole(r.Context())),
	}
}
