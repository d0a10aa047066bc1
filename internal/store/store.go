// Package store defines the persistence contract for chat documents and an
// in-memory implementation of it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/freshfold/support-chat/internal/model"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrPreconditionFailed is returned when a conditional update found the
	// document but its precondition did not hold.
	ErrPreconditionFailed = errors.New("store: precondition failed")
	// ErrDuplicate is returned when a uniqueness constraint rejected a write.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Threads persists chat threads, one per (customerID, branchID).
type Threads interface {
	// GetOrCreateThread returns the pair's thread, inserting a fresh open one
	// when absent. created reports whether this call inserted it.
	GetOrCreateThread(ctx context.Context, customerID, branchID string, now time.Time) (thread *model.Thread, created bool, err error)
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	// ListThreadsByCustomer orders by LastMessageAt descending.
	ListThreadsByCustomer(ctx context.Context, customerID string) ([]model.Thread, error)
	// ListThreadsByBranch excludes threads hidden from agents and orders by
	// LastMessageAt descending. An empty status matches every status.
	ListThreadsByBranch(ctx context.Context, branchID string, status model.ThreadStatus) ([]model.Thread, error)
	// UpdateThread atomically applies u when cond holds and returns the
	// updated thread.
	UpdateThread(ctx context.Context, id string, cond ThreadCondition, u ThreadUpdate) (*model.Thread, error)
}

// Messages persists the per-thread message ledger.
type Messages interface {
	// AppendMessage inserts m. A repeated idempotency key yields ErrDuplicate.
	AppendMessage(ctx context.Context, m *model.Message) error
	FindMessageByClientID(ctx context.Context, threadID, senderID, clientMessageID string) (*model.Message, error)
	// ListMessages orders by CreatedAt ascending, insertion order on ties.
	ListMessages(ctx context.Context, threadID string) ([]model.Message, error)
	// MarkMessagesRead stamps readAt on unread messages written by role.
	MarkMessagesRead(ctx context.Context, threadID string, role model.SenderRole, at time.Time) (int64, error)
}

// Accounts persists customer and agent accounts.
type Accounts interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	// EnsureAccount inserts a when no account with its ID exists.
	EnsureAccount(ctx context.Context, a *model.Account) error
	// ListAgentsForBranch returns active agents covering branchID.
	ListAgentsForBranch(ctx context.Context, branchID string) ([]model.Account, error)
	ListCustomers(ctx context.Context) ([]model.Account, error)
	SetDeviceTokens(ctx context.Context, id string, tokens []model.DeviceToken) error
	SetPreferences(ctx context.Context, id string, prefs map[string]bool) error
}

// Branches persists branch metadata.
type Branches interface {
	GetBranch(ctx context.Context, id string) (*model.Branch, error)
	EnsureBranch(ctx context.Context, b *model.Branch) error
}

// Notifications persists in-app notification records.
type Notifications interface {
	InsertNotifications(ctx context.Context, ns []model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	// ListNotifications orders by CreatedAt descending.
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}

// Broadcasts persists broadcast records.
type Broadcasts interface {
	InsertBroadcast(ctx context.Context, b *model.Broadcast) error
}

// Store is the full persistence surface.
type Store interface {
	Threads
	Messages
	Accounts
	Branches
	Notifications
	Broadcasts
	Ping(ctx context.Context) error
}
