package model

import (
	"time"
)

// EventType represents the type of chat event.
type EventType string

const (
	EventThreadCreated  EventType = "thread.created"
	EventThreadUpdated  EventType = "thread.updated"
	EventMessageCreated EventType = "message.created"
)

// ChatEvent is published whenever a thread or its ledger changes so live
// clients can refresh without polling.
type ChatEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	BranchID  string    `json:"branch_id"`
	ThreadID  string    `json:"thread_id"`
	Thread    *Thread   `json:"thread,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TransferRequest hands a picked up thread to another agent.
type TransferRequest struct {
	TargetAgentID string `json:"target_agent_id" validate:"required"`
}

// StatusRequest sets a thread's status explicitly.
type StatusRequest struct {
	Status ThreadStatus `json:"status" validate:"required,oneof=open picked_up resolved"`
}

// SuggestionResponse is a drafted agent reply.
type SuggestionResponse struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}
