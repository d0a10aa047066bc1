package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
	"github.com/freshfold/support-chat/pkg/tracing"
)

// DefaultAutoResponseText acknowledges a customer's first message.
const DefaultAutoResponseText = "Hi there! An agent will be with you shortly. How can I help?"

// AutoResponder is the system account that acknowledges new threads.
type AutoResponder struct {
	AgentID   string
	AgentName string
	Text      string
}

// Account returns the agent account the responder writes as.
func (r AutoResponder) Account() *model.Account {
	return &model.Account{ID: r.AgentID, Name: r.AgentName, Role: model.RoleAgent}
}

// MessageService appends to thread ledgers and drives the state changes a
// message causes.
type MessageService struct {
	store    store.Store
	events   EventPublisher
	notifier *Notifier
	auto     AutoResponder
	logger   *logger.Logger
	now      timeFunc
}

// NewMessageService creates a new message service.
func NewMessageService(d Deps, notifier *Notifier, auto AutoResponder) *MessageService {
	d = d.withDefaults()
	if auto.AgentID == "" {
		auto.AgentID = "system"
	}
	if auto.AgentName == "" {
		auto.AgentName = "Support"
	}
	if auto.Text == "" {
		auto.Text = DefaultAutoResponseText
	}
	if notifier == nil {
		notifier = NewNotifier(d)
	}
	return &MessageService{
		store:    d.Store,
		events:   d.Events,
		notifier: notifier,
		auto:     auto,
		logger:   d.Logger,
		now:      d.Now,
	}
}

// Send appends a message from caller to the thread. A repeated
// ClientMessageID from the same sender returns the stored message without
// side effects.
func (s *MessageService) Send(ctx context.Context, caller Caller, threadID string, req *model.SendMessageRequest) (*model.Message, error) {
	ctx, span := tracing.Start(ctx, "MessageService.Send",
		attribute.String("thread.id", threadID),
		attribute.String("sender.role", string(caller.Role)),
	)
	defer span.End()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, invalid("message_text", "message text is required")
	}

	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	if _, err := authorizeThread(ctx, s.store, caller, t); err != nil {
		return nil, err
	}

	if req.ClientMessageID != "" {
		existing, err := s.store.FindMessageByClientID(ctx, threadID, caller.ID, req.ClientMessageID)
		if err == nil {
			metrics.DuplicateSendsTotal.Inc()
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	msg := &model.Message{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ThreadID:   threadID,
		SenderRole: caller.senderRole(),
		SenderID:   caller.ID,
		Kind:       model.MessageKindText,
		Text:       text,
		CreatedAt:  s.now(),
	}
	if req.OrderID != "" {
		msg.OrderID = ptr(req.OrderID)
	}
	if req.ClientMessageID != "" {
		msg.ClientMessageID = ptr(req.ClientMessageID)
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrDuplicate) && msg.ClientMessageID != nil {
			// A concurrent retry stored the same key first.
			existing, ferr := s.store.FindMessageByClientID(ctx, threadID, caller.ID, *msg.ClientMessageID)
			if ferr != nil {
				return nil, fmt.Errorf("failed to load duplicate message: %w", ferr)
			}
			metrics.DuplicateSendsTotal.Inc()
			return existing, nil
		}
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.SenderRole), string(msg.Kind)).Inc()

	var updated *model.Thread
	if msg.SenderRole == model.SenderCustomer {
		updated, err = s.applyCustomerMessage(ctx, t, msg)
	} else {
		updated, err = s.applyAgentMessage(ctx, t, msg)
	}
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, threadEvent(model.EventMessageCreated, updated, msg, s.now))
	s.events.Publish(ctx, threadEvent(model.EventThreadUpdated, updated, nil, s.now))
	s.notifier.MessageSent(ctx, updated, msg)

	if msg.SenderRole == model.SenderCustomer && updated.Status != model.ThreadPickedUp && !updated.AutoResponseSent {
		s.autoRespond(ctx, updated)
	}
	return msg, nil
}

// applyCustomerMessage records a customer message on the thread. A
// resolved thread reopens unassigned with its auto-response re-armed.
func (s *MessageService) applyCustomerMessage(ctx context.Context, t *model.Thread, msg *model.Message) (*model.Thread, error) {
	current := t
	for attempt := 0; ; attempt++ {
		u := store.ThreadUpdate{
			LastMessageText:  ptr(msg.Text),
			LastMessageAt:    ptr(msg.CreatedAt),
			IncUnreadAgent:   1,
			HiddenFromAgents: ptr(false),
		}
		cond := store.ThreadCondition{}
		if current.Status == model.ThreadResolved {
			cond.Status = ptr(model.ThreadResolved)
			u.Status = ptr(model.ThreadOpen)
			u.ClearAssignment = true
			u.ClearResolvedAt = true
			u.AutoResponseSent = ptr(false)
		}

		updated, err := s.store.UpdateThread(ctx, t.ID, cond, u)
		if errors.Is(err, store.ErrPreconditionFailed) && attempt+1 < maxStatusAttempts {
			// Someone reopened or changed the thread in between.
			if current, err = s.store.GetThread(ctx, t.ID); err != nil {
				return nil, notFound(err, "thread")
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update thread: %w", err)
		}
		if current.Status == model.ThreadResolved {
			s.logger.Info("thread reopened by customer", zap.String("thread_id", t.ID))
		}
		return updated, nil
	}
}

func (s *MessageService) applyAgentMessage(ctx context.Context, t *model.Thread, msg *model.Message) (*model.Thread, error) {
	u := store.ThreadUpdate{
		LastMessageText:   ptr(msg.Text),
		LastMessageAt:     ptr(msg.CreatedAt),
		IncUnreadCustomer: 1,
		LastAgentReplyAt:  ptr(msg.CreatedAt),
	}
	if t.FirstResponseAt == nil {
		u.FirstResponseAt = ptr(msg.CreatedAt)
	}
	updated, err := s.store.UpdateThread(ctx, t.ID, store.ThreadCondition{}, u)
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	return updated, nil
}

// autoRespond claims the thread's auto-response slot and appends the
// acknowledgement. The claim is a conditional write so concurrent customer
// messages produce one acknowledgement.
func (s *MessageService) autoRespond(ctx context.Context, t *model.Thread) {
	_, err := s.store.UpdateThread(ctx, t.ID,
		store.ThreadCondition{AutoResponseSent: ptr(false)},
		store.ThreadUpdate{AutoResponseSent: ptr(true)},
	)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return
	}
	if err != nil {
		s.logger.Warn("auto-response abandoned", zap.String("thread_id", t.ID), zap.Error(err))
		return
	}

	msg := &model.Message{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ThreadID:   t.ID,
		SenderRole: model.SenderAgent,
		SenderID:   s.auto.AgentID,
		Kind:       model.MessageKindAutoResponse,
		Text:       s.auto.Text,
		CreatedAt:  s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		s.logger.Warn("auto-response abandoned", zap.String("thread_id", t.ID), zap.Error(err))
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.SenderRole), string(msg.Kind)).Inc()

	updated, err := s.store.UpdateThread(ctx, t.ID, store.ThreadCondition{}, store.ThreadUpdate{
		LastMessageText:   ptr(msg.Text),
		LastMessageAt:     ptr(msg.CreatedAt),
		IncUnreadCustomer: 1,
	})
	if err != nil {
		s.logger.Warn("failed to record auto-response on thread", zap.String("thread_id", t.ID), zap.Error(err))
		return
	}
	s.events.Publish(ctx, threadEvent(model.EventMessageCreated, updated, msg, s.now))
}

// List returns the thread's ledger oldest first. Reading resets the
// caller's unread counter and marks the other side's messages read.
func (s *MessageService) List(ctx context.Context, caller Caller, threadID string) (*model.ListMessagesResponse, error) {
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	if _, err := authorizeThread(ctx, s.store, caller, t); err != nil {
		return nil, err
	}

	role := caller.senderRole()
	u := store.ThreadUpdate{ResetUnreadCustomer: role == model.SenderCustomer, ResetUnreadAgent: role == model.SenderAgent}
	if t, err = s.store.UpdateThread(ctx, threadID, store.ThreadCondition{}, u); err != nil {
		return nil, notFound(err, "thread")
	}
	if _, err := s.store.MarkMessagesRead(ctx, threadID, role.Other(), s.now()); err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	messages, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return &model.ListMessagesResponse{Messages: messages, Thread: t}, nil
}
