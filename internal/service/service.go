// Package service implements the chat thread lifecycle, the message ledger
// and notification fan-out on top of the store.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/push"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
)

type timeFunc func() time.Time

// Deps are the collaborators shared by the services.
type Deps struct {
	Store  store.Store
	Events EventPublisher
	Push   push.Gateway
	Logger *logger.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = NopPublisher{}
	}
	if d.Push == nil {
		d.Push = push.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logger.Global()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Caller is the authenticated user behind a request.
type Caller struct {
	ID   string
	Role model.Role
}

func (c Caller) senderRole() model.SenderRole {
	if c.Role == model.RoleAgent {
		return model.SenderAgent
	}
	return model.SenderCustomer
}

// activeAgent loads id and requires it to be a non-revoked agent.
func activeAgent(ctx context.Context, accounts store.Accounts, id string) (*model.Account, error) {
	a, err := accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, notFound(err, "agent")
	}
	if !a.IsActiveAgent() {
		return nil, ErrForbidden
	}
	return a, nil
}

// authorizeThread checks that caller may read or write t. Customers only
// reach their own threads; agents must be active and cover t's branch.
func authorizeThread(ctx context.Context, accounts store.Accounts, caller Caller, t *model.Thread) (*model.Account, error) {
	switch caller.Role {
	case model.RoleCustomer:
		if t.CustomerID != caller.ID {
			return nil, ErrForbidden
		}
		return nil, nil
	case model.RoleAgent:
		agent, err := activeAgent(ctx, accounts, caller.ID)
		if err != nil {
			return nil, err
		}
		if !agent.CoversBranch(t.BranchID) {
			return nil, ErrForbidden
		}
		return agent, nil
	}
	return nil, ErrForbidden
}

// agentThread loads threadID for an agent who covers its branch.
func agentThread(ctx context.Context, s store.Store, agent *model.Account, threadID string) (*model.Thread, error) {
	t, err := s.GetThread(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	if !agent.CoversBranch(t.BranchID) {
		return nil, ErrForbidden
	}
	return t, nil
}

func ptr[T any](v T) *T { return &v }
