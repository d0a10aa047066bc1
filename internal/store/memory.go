package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/support-chat/internal/model"
)

// Memory is a mutex-guarded in-process Store. Reads return copies so callers
// never alias stored documents.
type Memory struct {
	mu sync.RWMutex

	threads      map[string]*model.Thread
	threadByPair map[[2]string]string

	messages    map[string][]*model.Message // by thread, insertion order
	messageKeys map[[3]string]*model.Message

	accounts      map[string]*model.Account
	branches      map[string]*model.Branch
	notifications map[string]*model.Notification
	notifOrder    []string
	broadcasts    map[string]*model.Broadcast
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		threads:       make(map[string]*model.Thread),
		threadByPair:  make(map[[2]string]string),
		messages:      make(map[string][]*model.Message),
		messageKeys:   make(map[[3]string]*model.Message),
		accounts:      make(map[string]*model.Account),
		branches:      make(map[string]*model.Branch),
		notifications: make(map[string]*model.Notification),
		broadcasts:    make(map[string]*model.Broadcast),
	}
}

var _ Store = (*Memory)(nil)

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// GetOrCreateThread returns the pair's thread, inserting it when absent.
func (m *Memory) GetOrCreateThread(ctx context.Context, customerID, branchID string, now time.Time) (*model.Thread, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{customerID, branchID}
	if id, ok := m.threadByPair[key]; ok {
		t := *m.threads[id]
		return &t, false, nil
	}

	t := model.NewThread(uuid.Must(uuid.NewV7()).String(), customerID, branchID, now)
	m.threads[t.ID] = t
	m.threadByPair[key] = t.ID

	out := *t
	return &out, true, nil
}

// GetThread retrieves a thread by ID.
func (m *Memory) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

// ListThreadsByCustomer returns a customer's threads, newest activity first.
func (m *Memory) ListThreadsByCustomer(ctx context.Context, customerID string) ([]model.Thread, error) {
	return m.listThreads(func(t *model.Thread) bool {
		return t.CustomerID == customerID
	}), nil
}

// ListThreadsByBranch returns a branch's visible threads, newest activity first.
func (m *Memory) ListThreadsByBranch(ctx context.Context, branchID string, status model.ThreadStatus) ([]model.Thread, error) {
	return m.listThreads(func(t *model.Thread) bool {
		if t.BranchID != branchID || t.HiddenFromAgents {
			return false
		}
		return status == "" || t.Status == status
	}), nil
}

func (m *Memory) listThreads(keep func(*model.Thread) bool) []model.Thread {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Thread{}
	for _, t := range m.threads {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// UpdateThread applies u when cond holds.
func (m *Memory) UpdateThread(ctx context.Context, id string, cond ThreadCondition, u ThreadUpdate) (*model.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !cond.Matches(t) {
		return nil, ErrPreconditionFailed
	}
	u.Apply(t)

	out := *t
	return &out, nil
}

func messageKey(threadID, senderID, clientID string) [3]string {
	return [3]string{threadID, senderID, clientID}
}

// AppendMessage inserts msg into its thread's ledger.
func (m *Memory) AppendMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *msg
	if msg.ClientMessageID != nil {
		key := messageKey(msg.ThreadID, msg.SenderID, *msg.ClientMessageID)
		if _, dup := m.messageKeys[key]; dup {
			return ErrDuplicate
		}
		m.messageKeys[key] = &stored
	}
	m.messages[msg.ThreadID] = append(m.messages[msg.ThreadID], &stored)
	return nil
}

// FindMessageByClientID looks a message up by its idempotency key.
func (m *Memory) FindMessageByClientID(ctx context.Context, threadID, senderID, clientMessageID string) (*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messageKeys[messageKey(threadID, senderID, clientMessageID)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *msg
	return &out, nil
}

// ListMessages returns the ledger in creation order.
func (m *Memory) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ledger := m.messages[threadID]
	out := make([]model.Message, 0, len(ledger))
	for _, msg := range ledger {
		out = append(out, *msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MarkMessagesRead stamps readAt on role's unread messages.
func (m *Memory) MarkMessagesRead(ctx context.Context, threadID string, role model.SenderRole, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, msg := range m.messages[threadID] {
		if msg.SenderRole == role && msg.ReadAt == nil {
			readAt := at
			msg.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func copyAccount(a *model.Account) *model.Account {
	out := *a
	out.AssignedBranches = slices.Clone(a.AssignedBranches)
	out.SubscribedBranches = slices.Clone(a.SubscribedBranches)
	out.DeviceTokens = slices.Clone(a.DeviceTokens)
	if a.Preferences != nil {
		out.Preferences = maps.Clone(a.Preferences)
	}
	return &out
}

// GetAccount retrieves an account by ID.
func (m *Memory) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

// EnsureAccount inserts a when absent.
func (m *Memory) EnsureAccount(ctx context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; !ok {
		m.accounts[a.ID] = copyAccount(a)
	}
	return nil
}

// PutAccount inserts or replaces a.
func (m *Memory) PutAccount(a *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = copyAccount(a)
}

// ListAgentsForBranch returns active agents covering branchID, ordered by ID.
func (m *Memory) ListAgentsForBranch(ctx context.Context, branchID string) ([]model.Account, error) {
	return m.listAccounts(func(a *model.Account) bool { return a.CoversBranch(branchID) }), nil
}

// ListCustomers returns every customer account, ordered by ID.
func (m *Memory) ListCustomers(ctx context.Context) ([]model.Account, error) {
	return m.listAccounts(func(a *model.Account) bool { return a.Role == model.RoleCustomer }), nil
}

func (m *Memory) listAccounts(keep func(*model.Account) bool) []model.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Account{}
	for _, a := range m.accounts {
		if keep(a) {
			out = append(out, *copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetDeviceTokens replaces an account's push registrations.
func (m *Memory) SetDeviceTokens(ctx context.Context, id string, tokens []model.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.DeviceTokens = slices.Clone(tokens)
	return nil
}

// SetPreferences replaces an account's stored notification preferences.
func (m *Memory) SetPreferences(ctx context.Context, id string, prefs map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Preferences = maps.Clone(prefs)
	return nil
}

// GetBranch retrieves a branch by ID.
func (m *Memory) GetBranch(ctx context.Context, id string) (*model.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.branches[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

// EnsureBranch inserts b when absent.
func (m *Memory) EnsureBranch(ctx context.Context, b *model.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.branches[b.ID]; !ok {
		out := *b
		m.branches[b.ID] = &out
	}
	return nil
}

// InsertNotifications stores ns.
func (m *Memory) InsertNotifications(ctx context.Context, ns []model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range ns {
		n := ns[i]
		if _, dup := m.notifications[n.ID]; dup {
			return ErrDuplicate
		}
		m.notifications[n.ID] = &n
		m.notifOrder = append(m.notifOrder, n.ID)
	}
	return nil
}

// GetNotification retrieves a notification by ID.
func (m *Memory) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *n
	return &out, nil
}

// ListNotifications returns a user's newest notifications first.
func (m *Memory) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Notification{}
	for i := len(m.notifOrder) - 1; i >= 0; i-- {
		n := m.notifications[m.notifOrder[i]]
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read.
func (m *Memory) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.IsRead = true
	out := *n
	return &out, nil
}

// MarkAllNotificationsRead flags every unread notification of userID.
func (m *Memory) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

// InsertBroadcast stores b.
func (m *Memory) InsertBroadcast(ctx context.Context, b *model.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.broadcasts[b.ID]; dup {
		return ErrDuplicate
	}
	out := *b
	out.TargetCustomerIDs = slices.Clone(b.TargetCustomerIDs)
	m.broadcasts[b.ID] = &out
	return nil
}

// Broadcasts returns every stored broadcast.
func (m *Memory) Broadcasts() []model.Broadcast {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Broadcast, 0, len(m.broadcasts))
	for _, b := range m.broadcasts {
		out = append(out, *b)
	}
	return out
}
