package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/overlay"
)

// InboxLimit is the number of notifications returned by List.
const InboxLimit = 50

// NotificationService serves a user's in-app inbox, notification
// preferences and push registrations.
type NotificationService struct {
	store  store.Store
	logger *logger.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(d Deps) *NotificationService {
	d = d.withDefaults()
	return &NotificationService{store: d.Store, logger: d.Logger}
}

// List returns the user's latest notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	ns, err := s.store.ListNotifications(ctx, userID, InboxLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return ns, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil, notFound(err, "notification")
	}
	if n.UserID != userID {
		return nil, ErrForbidden
	}
	if n.IsRead {
		return n, nil
	}
	n, err = s.store.MarkNotificationRead(ctx, id)
	if err != nil {
		return nil, notFound(err, "notification")
	}
	return n, nil
}

// MarkAllRead flags every unread notification of the user and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// Preferences returns the user's effective preferences.
func (s *NotificationService) Preferences(ctx context.Context, userID string) (map[string]bool, error) {
	a, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, notFound(err, "account")
	}
	return a.EffectivePreferences(), nil
}

// UpdatePreferences overlays patch on the stored preferences. Keys not in
// patch keep their value.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, patch map[string]bool) (map[string]bool, error) {
	if len(patch) == 0 {
		return nil, invalid("preferences", "at least one preference is required")
	}
	for k := range patch {
		if !model.IsPreferenceKey(k) {
			return nil, invalid(k, "unknown preference")
		}
	}

	a, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, notFound(err, "account")
	}
	stored := overlay.Resolve(a.Preferences, patch)
	if err := s.store.SetPreferences(ctx, userID, stored); err != nil {
		return nil, notFound(err, "account")
	}
	a.Preferences = stored
	return a.EffectivePreferences(), nil
}

// RegisterDevice records a push token for the user. An untagged token is
// kept untagged and follows the app of the user's role.
func (s *NotificationService) RegisterDevice(ctx context.Context, caller Caller, req *model.RegisterDeviceRequest) error {
	if req.Token == "" {
		return invalid("token", "token is required")
	}
	if !req.App.Valid() {
		return invalid("app", "unknown app")
	}

	a, err := s.store.GetAccount(ctx, caller.ID)
	if err != nil {
		return notFound(err, "account")
	}
	if err := s.store.SetDeviceTokens(ctx, a.ID, a.WithDeviceToken(model.DeviceToken{Token: req.Token, App: req.App})); err != nil {
		return notFound(err, "account")
	}
	s.logger.Debug("device registered", zap.String("user_id", a.ID), zap.String("app", string(req.App)))
	return nil
}
