package service

import (
	"errors"
	"fmt"

	"github.com/freshfold/support-chat/internal/store"
)

var (
	// ErrNotFound is returned when a referenced thread, account or
	// notification does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when the thread is not in a state that allows
	// the operation, most notably a lost pickup race.
	ErrConflict = errors.New("conflict")
	// ErrSuggestionsDisabled is returned when no LLM provider is configured.
	ErrSuggestionsDisabled = errors.New("reply suggestions are not configured")
)

// ConflictError reports the thread state that rejected an operation.
type ConflictError struct {
	ThreadID          string
	Reason            string
	AssignedAgentID   string
	AssignedAgentName string
}

func (e *ConflictError) Error() string {
	if e.AssignedAgentID != "" {
		return fmt.Sprintf("thread %s %s: assigned to %s", e.ThreadID, e.Reason, e.AssignedAgentID)
	}
	return fmt.Sprintf("thread %s %s", e.ThreadID, e.Reason)
}

// Is makes errors.Is(err, ErrConflict) hold.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// notFound translates a store miss into ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
