package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/push"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
	"github.com/freshfold/support-chat/pkg/overlay"
)

const (
	titleCustomerMessage = "New Message"
	titleAgentReply      = "Support Replied"

	clickAction     = "FLUTTER_NOTIFICATION_CLICK"
	maxPushBodyRune = 120
)

// Notifier decides who hears about a new message and delivers the in-app
// records and pushes. It never fails the operation that triggered it.
type Notifier struct {
	store  store.Store
	push   push.Gateway
	logger *logger.Logger
	now    timeFunc
}

// NewNotifier creates a new notifier.
func NewNotifier(d Deps) *Notifier {
	d = d.withDefaults()
	return &Notifier{
		store:  d.Store,
		push:   d.Push,
		logger: d.Logger,
		now:    d.Now,
	}
}

// MessageSent notifies the other side of t about m.
func (n *Notifier) MessageSent(ctx context.Context, t *model.Thread, m *model.Message) {
	switch m.SenderRole {
	case model.SenderCustomer:
		n.toAgents(ctx, t, m)
	case model.SenderAgent:
		n.toCustomer(ctx, t, m, titleAgentReply, m.Text, model.NotificationChat, model.PrefChatMessages)
	}
}

// BroadcastDelivered notifies one broadcast target.
func (n *Notifier) BroadcastDelivered(ctx context.Context, t *model.Thread, m *model.Message) {
	title := fmt.Sprintf("Message from %s", n.branchName(ctx, t.BranchID))
	n.toCustomer(ctx, t, m, title, m.Text, model.NotificationBroadcast, model.PrefAdminBroadcasts)
}

// toAgents notifies the assigned agent, or every agent covering the
// branch while the thread is unassigned.
func (n *Notifier) toAgents(ctx context.Context, t *model.Thread, m *model.Message) {
	recipients, err := n.agentRecipients(ctx, t)
	if err != nil {
		n.logger.Error("failed to resolve agent recipients", zap.String("thread_id", t.ID), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		n.logger.Warn("no agents cover branch", zap.String("branch_id", t.BranchID), zap.String("thread_id", t.ID))
		return
	}

	customerName := "A customer"
	if c, err := n.store.GetAccount(ctx, t.CustomerID); err == nil && c.Name != "" {
		customerName = c.Name
	}
	body := fmt.Sprintf("%s (%s): %s", customerName, n.branchName(ctx, t.BranchID), m.Text)

	records := make([]model.Notification, 0, len(recipients))
	var wanting []model.Account
	for _, a := range recipients {
		records = append(records, n.record(a.ID, titleCustomerMessage, body, model.NotificationChat, t))
		if a.Wants(model.PrefChatMessages) {
			wanting = append(wanting, a)
		}
	}
	n.persist(ctx, records)

	n.deliver(ctx, push.Notification{
		Tokens: push.TokensFor(model.AppAgent, wanting...),
		Title:  titleCustomerMessage,
		Body:   truncate(body, maxPushBodyRune),
		Data:   pushData(model.NotificationChat, t, nil),
	})
}

func (n *Notifier) agentRecipients(ctx context.Context, t *model.Thread) ([]model.Account, error) {
	if t.AssignedAgentID != nil {
		a, err := n.store.GetAccount(ctx, *t.AssignedAgentID)
		if err == nil && a.IsActiveAgent() {
			return []model.Account{*a}, nil
		}
		// A revoked or deleted assignee falls back to the branch team.
	}
	return n.store.ListAgentsForBranch(ctx, t.BranchID)
}

func (n *Notifier) toCustomer(ctx context.Context, t *model.Thread, m *model.Message, title, body string, typ model.NotificationType, pref string) {
	n.persist(ctx, []model.Notification{n.record(t.CustomerID, title, body, typ, t)})

	customer, err := n.store.GetAccount(ctx, t.CustomerID)
	if err != nil {
		n.logger.Warn("customer account unavailable for push", zap.String("customer_id", t.CustomerID), zap.Error(err))
		return
	}
	if !customer.Wants(pref) {
		return
	}

	var extra map[string]string
	if m.BroadcastID != nil {
		extra = map[string]string{"broadcastId": *m.BroadcastID}
	}
	n.deliver(ctx, push.Notification{
		Tokens: push.TokensFor(model.AppCustomer, *customer),
		Title:  title,
		Body:   truncate(body, maxPushBodyRune),
		Data:   pushData(typ, t, extra),
	})
}

func (n *Notifier) record(userID, title, body string, typ model.NotificationType, t *model.Thread) model.Notification {
	return model.Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		Message:   body,
		Type:      typ,
		BranchID:  ptr(t.BranchID),
		ThreadID:  ptr(t.ID),
		CreatedAt: n.now(),
	}
}

func (n *Notifier) persist(ctx context.Context, records []model.Notification) {
	if err := n.store.InsertNotifications(ctx, records); err != nil {
		n.logger.Error("failed to store notifications", zap.Int("count", len(records)), zap.Error(err))
		return
	}
	for _, r := range records {
		metrics.NotificationsTotal.WithLabelValues(string(r.Type)).Inc()
	}
}

func (n *Notifier) deliver(ctx context.Context, p push.Notification) {
	if len(p.Tokens) == 0 {
		return
	}
	if err := n.push.Deliver(ctx, p); err != nil {
		n.logger.Warn("push delivery failed", zap.Int("tokens", len(p.Tokens)), zap.Error(err))
	}
}

func (n *Notifier) branchName(ctx context.Context, branchID string) string {
	b, err := n.store.GetBranch(ctx, branchID)
	if err != nil || b.Name == "" {
		return branchID
	}
	return b.Name
}

// pushData is the data payload the mobile apps route on.
func pushData(typ model.NotificationType, t *model.Thread, extra map[string]string) map[string]string {
	return overlay.Resolve(map[string]string{
		"type":         string(typ),
		"threadId":     t.ID,
		"branchId":     t.BranchID,
		"click_action": clickAction,
	}, extra)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
