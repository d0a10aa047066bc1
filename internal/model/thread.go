// Package model defines data structures for the support chat backend.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ThreadStatus is the lifecycle state of a chat thread.
type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "open"
	ThreadPickedUp ThreadStatus = "picked_up"
	ThreadResolved ThreadStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadOpen, ThreadPickedUp, ThreadResolved:
		return true
	}
	return false
}

// ParseThreadStatus accepts the status values case-insensitively. An empty
// string or "all" yields the empty status, meaning no filter.
func ParseThreadStatus(s string) (ThreadStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "all" {
		return "", nil
	}
	st := ThreadStatus(v)
	if !st.Valid() {
		return "", fmt.Errorf("unknown thread status %q", s)
	}
	return st, nil
}

// Thread is one conversation between a customer and a branch's support team.
// There is exactly one thread per (CustomerID, BranchID).
type Thread struct {
	ID         string       `json:"id" bson:"_id"`
	CustomerID string       `json:"customer_id" bson:"customerId"`
	BranchID   string       `json:"branch_id" bson:"branchId"`
	Status     ThreadStatus `json:"status" bson:"status"`

	// Assignment
	AssignedAgentID   *string    `json:"assigned_agent_id" bson:"assignedAgentId"`
	AssignedAgentName *string    `json:"assigned_agent_name" bson:"assignedAgentName"`
	AssignedAt        *time.Time `json:"assigned_at" bson:"assignedAt"`

	// Timestamps
	CreatedAt             time.Time  `json:"created_at" bson:"createdAt"`
	ResolvedAt            *time.Time `json:"resolved_at" bson:"resolvedAt"`
	ResolutionTimeMinutes *int       `json:"resolution_time_minutes" bson:"resolutionTimeMinutes"`

	// Denormalized last message
	LastMessageText string    `json:"last_message_text" bson:"lastMessageText"`
	LastMessageAt   time.Time `json:"last_message_at" bson:"lastMessageAt"`

	UnreadCountCustomer int `json:"unread_count_customer" bson:"unreadCountCustomer"`
	UnreadCountAgent    int `json:"unread_count_agent" bson:"unreadCountAgent"`

	HiddenFromAgents bool `json:"hidden_from_agents" bson:"isHiddenFromAgents"`
	AutoResponseSent bool `json:"auto_response_sent" bson:"autoResponseSent"`

	// SLA
	FirstResponseAt  *time.Time `json:"first_response_at" bson:"firstResponseAt"`
	LastAgentReplyAt *time.Time `json:"last_agent_reply_at" bson:"lastAgentReplyAt"`
}

// NewThread returns a fresh open thread.
func NewThread(id, customerID, branchID string, now time.Time) *Thread {
	return &Thread{
		ID:            id,
		CustomerID:    customerID,
		BranchID:      branchID,
		Status:        ThreadOpen,
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

// IsAssigned reports whether an agent currently holds the thread.
func (t *Thread) IsAssigned() bool {
	return t.AssignedAgentID != nil
}

// AssignedTo reports whether agentID currently holds the thread.
func (t *Thread) AssignedTo(agentID string) bool {
	return t.AssignedAgentID != nil && *t.AssignedAgentID == agentID
}

// ResolutionMinutes is the whole number of minutes from creation to at, rounded.
func (t *Thread) ResolutionMinutes(at time.Time) int {
	return int(math.Round(at.Sub(t.CreatedAt).Minutes()))
}
