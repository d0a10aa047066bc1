package store

import (
	"time"

	"github.com/freshfold/support-chat/internal/model"
)

// ThreadCondition is the precondition of a conditional thread update. The
// zero value always holds.
type ThreadCondition struct {
	Status           *model.ThreadStatus
	Unassigned       bool
	Assigned         bool
	AutoResponseSent *bool
}

// Matches reports whether t satisfies c.
func (c ThreadCondition) Matches(t *model.Thread) bool {
	if c.Status != nil && t.Status != *c.Status {
		return false
	}
	if c.Unassigned && t.AssignedAgentID != nil {
		return false
	}
	if c.Assigned && t.AssignedAgentID == nil {
		return false
	}
	if c.AutoResponseSent != nil && t.AutoResponseSent != *c.AutoResponseSent {
		return false
	}
	return true
}

// Assignment is the agent a thread is handed to.
type Assignment struct {
	AgentID   string
	AgentName string
	At        time.Time
}

// ThreadUpdate describes field changes applied in one write. Nil pointers
// and false flags leave the field untouched.
type ThreadUpdate struct {
	Status *model.ThreadStatus

	Assign          *Assignment
	ClearAssignment bool

	ResolvedAt            *time.Time
	ResolutionTimeMinutes *int
	ClearResolvedAt       bool

	LastMessageText *string
	LastMessageAt   *time.Time

	IncUnreadAgent      int
	IncUnreadCustomer   int
	ResetUnreadAgent    bool
	ResetUnreadCustomer bool

	AutoResponseSent *bool
	HiddenFromAgents *bool

	FirstResponseAt  *time.Time
	LastAgentReplyAt *time.Time
}

// Empty reports whether u changes nothing.
func (u ThreadUpdate) Empty() bool {
	return u == ThreadUpdate{}
}

// Apply mutates t in place.
func (u ThreadUpdate) Apply(t *model.Thread) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.ClearAssignment {
		t.AssignedAgentID = nil
		t.AssignedAgentName = nil
		t.AssignedAt = nil
	}
	if u.Assign != nil {
		id, name, at := u.Assign.AgentID, u.Assign.AgentName, u.Assign.At
		t.AssignedAgentID = &id
		t.AssignedAgentName = &name
		t.AssignedAt = &at
	}
	if u.ClearResolvedAt {
		t.ResolvedAt = nil
	}
	if u.ResolvedAt != nil {
		at := *u.ResolvedAt
		t.ResolvedAt = &at
	}
	if u.ResolutionTimeMinutes != nil {
		m := *u.ResolutionTimeMinutes
		t.ResolutionTimeMinutes = &m
	}
	if u.LastMessageText != nil {
		t.LastMessageText = *u.LastMessageText
	}
	if u.LastMessageAt != nil {
		t.LastMessageAt = *u.LastMessageAt
	}
	if u.ResetUnreadAgent {
		t.UnreadCountAgent = 0
	}
	if u.ResetUnreadCustomer {
		t.UnreadCountCustomer = 0
	}
	t.UnreadCountAgent += u.IncUnreadAgent
	t.UnreadCountCustomer += u.IncUnreadCustomer
	if u.AutoResponseSent != nil {
		t.AutoResponseSent = *u.AutoResponseSent
	}
	if u.HiddenFromAgents != nil {
		t.HiddenFromAgents = *u.HiddenFromAgents
	}
	if u.FirstResponseAt != nil {
		at := *u.FirstResponseAt
		t.FirstResponseAt = &at
	}
	if u.LastAgentReplyAt != nil {
		at := *u.LastAgentReplyAt
		t.LastAgentReplyAt = &at
	}
}
