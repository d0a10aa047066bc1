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

// BroadcastService sends one announcement into many customer threads.
type BroadcastService struct {
	store    store.Store
	threads  *ThreadService
	events   EventPublisher
	notifier *Notifier
	logger   *logger.Logger
	now      timeFunc
}

// NewBroadcastService creates a new broadcast service.
func NewBroadcastService(d Deps, threads *ThreadService, notifier *Notifier) *BroadcastService {
	d = d.withDefaults()
	return &BroadcastService{
		store:    d.Store,
		threads:  threads,
		events:   d.Events,
		notifier: notifier,
		logger:   d.Logger,
		now:      d.Now,
	}
}

// Send appends the announcement to each target customer's thread with
// the branch, creating threads as needed. Targets that cannot be reached
// are skipped and logged.
func (s *BroadcastService) Send(ctx context.Context, senderID string, req *model.BroadcastRequest) (*model.BroadcastResponse, error) {
	ctx, span := tracing.Start(ctx, "BroadcastService.Send", attribute.String("branch.id", req.BranchID))
	defer span.End()

	text := strings.TrimSpace(req.Text)
	switch {
	case strings.TrimSpace(req.BranchID) == "":
		return nil, invalid("branch_id", "branch ID is required")
	case text == "":
		return nil, invalid("message_text", "message text is required")
	}

	audience := req.AudienceType
	if audience == "" {
		audience = model.AudienceAll
		if len(req.TargetCustomerIDs) > 0 {
			audience = model.AudienceSelected
		}
	}
	if audience == model.AudienceSelected && len(req.TargetCustomerIDs) == 0 {
		return nil, invalid("target_customer_ids", "selected audience needs at least one customer")
	}

	sender, err := activeAgent(ctx, s.store, senderID)
	if err != nil {
		return nil, err
	}
	if !sender.Can(model.PermBroadcast) || !sender.CoversBranch(req.BranchID) {
		return nil, ErrForbidden
	}

	targets, err := s.targets(ctx, audience, req.TargetCustomerIDs)
	if err != nil {
		return nil, err
	}

	b := &model.Broadcast{
		ID:           uuid.Must(uuid.NewV7()).String(),
		SenderID:     sender.ID,
		BranchID:     req.BranchID,
		Text:         text,
		AudienceType: audience,
		CreatedAt:    s.now(),
	}
	for _, c := range targets {
		b.TargetCustomerIDs = append(b.TargetCustomerIDs, c.ID)
	}
	if err := s.store.InsertBroadcast(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to store broadcast: %w", err)
	}

	delivered := 0
	for _, c := range targets {
		if err := s.deliver(ctx, b, c.ID); err != nil {
			s.logger.Warn("broadcast target skipped",
				zap.String("broadcast_id", b.ID),
				zap.String("customer_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	s.logger.Info("broadcast sent",
		zap.String("broadcast_id", b.ID),
		zap.String("branch_id", b.BranchID),
		zap.Int("targets", len(targets)),
		zap.Int("delivered", delivered),
	)
	return &model.BroadcastResponse{BroadcastID: b.ID, DeliveredCount: delivered}, nil
}

func (s *BroadcastService) targets(ctx context.Context, audience model.Audience, ids []string) ([]model.Account, error) {
	if audience == model.AudienceAll {
		customers, err := s.store.ListCustomers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list customers: %w", err)
		}
		return customers, nil
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		a, err := s.store.GetAccount(ctx, id)
		if err != nil || a.Role != model.RoleCustomer {
			s.logger.Warn("broadcast target is not a customer", zap.String("customer_id", id), zap.Error(err))
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *BroadcastService) deliver(ctx context.Context, b *model.Broadcast, customerID string) error {
	t, err := s.threads.GetOrCreate(ctx, customerID, b.BranchID)
	if err != nil {
		return err
	}

	msg := &model.Message{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ThreadID:        t.ID,
		SenderRole:      model.SenderAgent,
		SenderID:        b.SenderID,
		Kind:            model.MessageKindBroadcast,
		Text:            b.Text,
		ClientMessageID: ptr(b.ID),
		BroadcastID:     ptr(b.ID),
		CreatedAt:       s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("broadcast already delivered to thread %s", t.ID)
		}
		return fmt.Errorf("failed to append broadcast message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.SenderRole), string(msg.Kind)).Inc()

	updated, err := s.store.UpdateThread(ctx, t.ID, store.ThreadCondition{}, store.ThreadUpdate{
		LastMessageText:   ptr(msg.Text),
		LastMessageAt:     ptr(msg.CreatedAt),
		IncUnreadCustomer: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to update thread: %w", err)
	}

	s.events.Publish(ctx, threadEvent(model.EventMessageCreated, updated, msg, s.now))
	s.notifier.BroadcastDelivered(ctx, updated, msg)
	return nil
}
