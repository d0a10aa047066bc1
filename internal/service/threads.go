package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
	"github.com/freshfold/support-chat/pkg/tracing"
)

// maxStatusAttempts bounds optimistic retries of read-modify-write
// transitions that race with other writers.
const maxStatusAttempts = 3

// ThreadService owns the thread state machine.
type ThreadService struct {
	store  store.Store
	events EventPublisher
	logger *logger.Logger
	now    timeFunc
}

// NewThreadService creates a new thread service.
func NewThreadService(d Deps) *ThreadService {
	d = d.withDefaults()
	return &ThreadService{
		store:  d.Store,
		events: d.Events,
		logger: d.Logger,
		now:    d.Now,
	}
}

// GetOrCreate returns the customer's thread with branchID, creating it on
// first access.
func (s *ThreadService) GetOrCreate(ctx context.Context, customerID, branchID string) (*model.Thread, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return nil, invalid("branch_id", "branch ID is required")
	}
	if customerID == "" {
		return nil, invalid("customer_id", "customer ID is required")
	}

	t, created, err := s.store.GetOrCreateThread(ctx, customerID, branchID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get or create thread: %w", err)
	}
	if created {
		metrics.ThreadsCreatedTotal.Inc()
		s.events.Publish(ctx, threadEvent(model.EventThreadCreated, t, nil, s.now))
		s.logger.Info("thread created",
			zap.String("thread_id", t.ID),
			zap.String("customer_id", customerID),
			zap.String("branch_id", branchID),
		)
	}
	return t, nil
}

// GetOrCreateForCustomer lets an agent open a customer's thread before the
// customer has written.
func (s *ThreadService) GetOrCreateForCustomer(ctx context.Context, agentID, customerID, branchID string) (*model.Thread, error) {
	if err := s.WatchBranch(ctx, agentID, strings.TrimSpace(branchID)); err != nil {
		return nil, err
	}
	customer, err := s.store.GetAccount(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "customer")
	}
	if customer.Role != model.RoleCustomer {
		return nil, invalid("customer_id", "account is not a customer")
	}
	return s.GetOrCreate(ctx, customerID, branchID)
}

// ListForCustomer returns the customer's threads, most recent activity first.
func (s *ThreadService) ListForCustomer(ctx context.Context, customerID string) ([]model.Thread, error) {
	threads, err := s.store.ListThreadsByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// ListForBranch returns the threads of a branch visible to agents. An
// empty status lists every status.
func (s *ThreadService) ListForBranch(ctx context.Context, agentID, branchID string, status model.ThreadStatus) ([]model.Thread, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	if err := s.WatchBranch(ctx, agentID, branchID); err != nil {
		return nil, err
	}

	threads, err := s.store.ListThreadsByBranch(ctx, branchID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// WatchBranch reports whether agentID may observe branchID's threads.
func (s *ThreadService) WatchBranch(ctx context.Context, agentID, branchID string) error {
	if branchID == "" {
		return invalid("branch_id", "branch ID is required")
	}
	agent, err := activeAgent(ctx, s.store, agentID)
	if err != nil {
		return err
	}
	if !agent.CoversBranch(branchID) {
		return ErrForbidden
	}
	return nil
}

// Get returns a thread the caller may access.
func (s *ThreadService) Get(ctx context.Context, caller Caller, threadID string) (*model.Thread, error) {
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	if _, err := authorizeThread(ctx, s.store, caller, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Pickup claims an open unassigned thread for agentID. Exactly one of any
// number of concurrent pickups succeeds; the others get a *ConflictError.
func (s *ThreadService) Pickup(ctx context.Context, agentID, threadID string) (*model.Thread, error) {
	ctx, span := tracing.Start(ctx, "ThreadService.Pickup", attribute.String("thread.id", threadID))
	defer span.End()

	agent, err := activeAgent(ctx, s.store, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.Can(model.PermPickup) {
		return nil, ErrForbidden
	}
	if _, err := agentThread(ctx, s.store, agent, threadID); err != nil {
		return nil, err
	}

	now := s.now()
	t, err := s.store.UpdateThread(ctx, threadID,
		store.ThreadCondition{Status: ptr(model.ThreadOpen), Unassigned: true},
		store.ThreadUpdate{
			Status: ptr(model.ThreadPickedUp),
			Assign: &store.Assignment{AgentID: agent.ID, AgentName: agent.Name, At: now},
		},
	)
	switch {
	case errors.Is(err, store.ErrPreconditionFailed):
		metrics.PickupsTotal.WithLabelValues("conflict").Inc()
		return nil, s.conflict(ctx, threadID, "is not open for pickup")
	case err != nil:
		metrics.PickupsTotal.WithLabelValues("error").Inc()
		return nil, notFound(err, "thread")
	}

	metrics.PickupsTotal.WithLabelValues("success").Inc()
	s.events.Publish(ctx, threadEvent(model.EventThreadUpdated, t, nil, s.now))
	s.logger.Info("thread picked up", zap.String("thread_id", t.ID), zap.String("agent_id", agent.ID))
	return t, nil
}

// Transfer reassigns a picked up thread to targetAgentID.
func (s *ThreadService) Transfer(ctx context.Context, fromAgentID, threadID, targetAgentID string) (*model.Thread, error) {
	if targetAgentID == "" {
		return nil, invalid("target_agent_id", "target agent is required")
	}
	from, err := activeAgent(ctx, s.store, fromAgentID)
	if err != nil {
		return nil, err
	}
	if !from.Can(model.PermTransfer) {
		return nil, ErrForbidden
	}

	current, err := agentThread(ctx, s.store, from, threadID)
	if err != nil {
		return nil, err
	}

	target, err := s.store.GetAccount(ctx, targetAgentID)
	if err != nil {
		return nil, notFound(err, "target agent")
	}
	if !target.IsActiveAgent() {
		return nil, invalid("target_agent_id", "target is not an active agent")
	}
	if !target.CoversBranch(current.BranchID) {
		return nil, invalid("target_agent_id", "target agent does not cover the thread's branch")
	}

	t, err := s.store.UpdateThread(ctx, threadID,
		store.ThreadCondition{Status: ptr(model.ThreadPickedUp)},
		store.ThreadUpdate{
			Assign: &store.Assignment{AgentID: target.ID, AgentName: target.Name, At: s.now()},
		},
	)
	switch {
	case errors.Is(err, store.ErrPreconditionFailed):
		return nil, s.conflict(ctx, threadID, "is not picked up")
	case err != nil:
		return nil, notFound(err, "thread")
	}

	s.events.Publish(ctx, threadEvent(model.EventThreadUpdated, t, nil, s.now))
	s.logger.Info("thread transferred",
		zap.String("thread_id", t.ID),
		zap.String("from_agent_id", from.ID),
		zap.String("to_agent_id", target.ID),
	)
	return t, nil
}

// SetStatus moves a thread to status. Resolving stamps resolvedAt and the
// resolution time; leaving resolved clears resolvedAt. Assignment is left
// as it is in both directions, so an unassigned thread can only become
// picked up through Pickup.
func (s *ThreadService) SetStatus(ctx context.Context, agentID, threadID string, status model.ThreadStatus) (*model.Thread, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	agent, err := activeAgent(ctx, s.store, agentID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		current, err := agentThread(ctx, s.store, agent, threadID)
		if err != nil {
			return nil, err
		}

		cond := store.ThreadCondition{Status: ptr(current.Status)}
		if status == model.ThreadPickedUp {
			if !current.IsAssigned() {
				return nil, invalid("status", "unassigned threads are claimed through pickup")
			}
			cond.Assigned = true
		}

		u := store.ThreadUpdate{Status: ptr(status)}
		if status == model.ThreadResolved && current.Status != model.ThreadResolved {
			now := s.now()
			u.ResolvedAt = &now
			u.ResolutionTimeMinutes = ptr(current.ResolutionMinutes(now))
		}
		if status != model.ThreadResolved && current.Status == model.ThreadResolved {
			u.ClearResolvedAt = true
		}

		t, err := s.store.UpdateThread(ctx, threadID, cond, u)
		if errors.Is(err, store.ErrPreconditionFailed) && attempt+1 < maxStatusAttempts {
			continue
		}
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, s.conflict(ctx, threadID, "changed concurrently")
		}
		if err != nil {
			return nil, notFound(err, "thread")
		}

		s.events.Publish(ctx, threadEvent(model.EventThreadUpdated, t, nil, s.now))
		s.logger.Info("thread status changed",
			zap.String("thread_id", t.ID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(status)),
		)
		return t, nil
	}
}

// Hide removes a thread from agent listings. A later customer message
// brings it back.
func (s *ThreadService) Hide(ctx context.Context, agentID, threadID string) error {
	agent, err := activeAgent(ctx, s.store, agentID)
	if err != nil {
		return err
	}
	if _, err := agentThread(ctx, s.store, agent, threadID); err != nil {
		return err
	}
	t, err := s.store.UpdateThread(ctx, threadID, store.ThreadCondition{}, store.ThreadUpdate{HiddenFromAgents: ptr(true)})
	if err != nil {
		return notFound(err, "thread")
	}
	s.events.Publish(ctx, threadEvent(model.EventThreadUpdated, t, nil, s.now))
	return nil
}

func (s *ThreadService) conflict(ctx context.Context, threadID, reason string) error {
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return notFound(err, "thread")
	}
	return conflictFor(t, reason)
}

func conflictFor(t *model.Thread, reason string) *ConflictError {
	e := &ConflictError{ThreadID: t.ID, Reason: reason}
	if t.AssignedAgentID != nil {
		e.AssignedAgentID = *t.AssignedAgentID
	}
	if t.AssignedAgentName != nil {
		e.AssignedAgentName = *t.AssignedAgentName
	}
	return e
}
