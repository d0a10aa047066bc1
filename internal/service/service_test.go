package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/push"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPush struct {
	mu   sync.Mutex
	sent []push.Notification
}

func (r *recordingPush) Deliver(_ context.Context, n push.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingPush) all() []push.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]push.Notification(nil), r.sent...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []model.ChatEvent
}

func (r *recordingEvents) Publish(_ context.Context, e *model.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
}

func (r *recordingEvents) count(typ model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	store  *store.Memory
	clock  *clock
	push   *recordingPush
	events *recordingEvents

	threads       *ThreadService
	messages      *MessageService
	broadcasts    *BroadcastService
	notifications *NotificationService
}

const (
	branchDowntown = "b1"
	branchHarbor   = "b2"
	autoAgentID    = "system"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  store.NewMemory(),
		clock:  &clock{now: t0},
		push:   &recordingPush{},
		events: &recordingEvents{},
	}
	d := Deps{
		Store:  f.store,
		Events: f.events,
		Push:   f.push,
		Logger: logger.NewNop(),
		Now:    f.clock.Now,
	}
	notifier := NewNotifier(d)
	f.threads = NewThreadService(d)
	f.messages = NewMessageService(d, notifier, AutoResponder{AgentID: autoAgentID, AgentName: "Support"})
	f.broadcasts = NewBroadcastService(d, f.threads, notifier)
	f.notifications = NewNotificationService(d)

	ctx := context.Background()
	require.NoError(t, f.store.EnsureBranch(ctx, &model.Branch{ID: branchDowntown, Name: "Downtown"}))
	require.NoError(t, f.store.EnsureBranch(ctx, &model.Branch{ID: branchHarbor, Name: "Harbor"}))
	require.NoError(t, Bootstrap(ctx, f.store, AutoResponder{AgentID: autoAgentID, AgentName: "Support"}))

	f.store.PutAccount(&model.Account{
		ID: "c1", Name: "Carol", Role: model.RoleCustomer,
		DeviceTokens: []model.DeviceToken{
			{Token: "c1-legacy"},
			{Token: "c1-staff-app", App: model.AppAgent},
		},
	})
	f.store.PutAccount(&model.Account{
		ID: "c2", Name: "Dan", Role: model.RoleCustomer,
		DeviceTokens: []model.DeviceToken{{Token: "c2-app", App: model.AppCustomer}},
	})
	f.store.PutAccount(&model.Account{
		ID: "a1", Name: "Ada", Role: model.RoleAgent,
		AssignedBranches: []string{branchDowntown},
		Permissions:      model.Permissions{PickupThreads: true, TransferThreads: true, Broadcast: true},
		DeviceTokens: []model.DeviceToken{
			{Token: "a1-agent-app", App: model.AppAgent},
			{Token: "a1-shopping-app", App: model.AppCustomer},
		},
	})
	f.store.PutAccount(&model.Account{
		ID: "a2", Name: "Bob", Role: model.RoleAgent,
		SubscribedBranches: []string{branchDowntown},
		Permissions:        model.Permissions{PickupThreads: true},
		DeviceTokens:       []model.DeviceToken{{Token: "a2-legacy"}},
	})
	f.store.PutAccount(&model.Account{
		ID: "a3", Name: "Meg", Role: model.RoleAgent, IsMaster: true,
	})
	f.store.PutAccount(&model.Account{
		ID: "a4", Name: "Hal", Role: model.RoleAgent,
		AssignedBranches: []string{branchHarbor},
		DeviceTokens:     []model.DeviceToken{{Token: "a4-agent-app", App: model.AppAgent}},
	})
	f.store.PutAccount(&model.Account{
		ID: "a5", Name: "Rex", Role: model.RoleAgent, Revoked: true,
		AssignedBranches: []string{branchDowntown},
		Permissions:      model.Permissions{PickupThreads: true},
	})
	return f
}

var (
	customer = Caller{ID: "c1", Role: model.RoleCustomer}
	agentAda = Caller{ID: "a1", Role: model.RoleAgent}
)

func (f *fixture) thread(t *testing.T, customerID string) *model.Thread {
	t.Helper()
	th, err := f.threads.GetOrCreate(context.Background(), customerID, branchDowntown)
	require.NoError(t, err)
	return th
}

func (f *fixture) send(t *testing.T, caller Caller, threadID, text string) *model.Message {
	t.Helper()
	m, err := f.messages.Send(context.Background(), caller, threadID, &model.SendMessageRequest{Text: text})
	require.NoError(t, err)
	return m
}

func (f *fixture) reload(t *testing.T, id string) *model.Thread {
	t.Helper()
	th, err := f.store.GetThread(context.Background(), id)
	require.NoError(t, err)
	return th
}

func (f *fixture) ledger(t *testing.T, threadID string) []model.Message {
	t.Helper()
	ms, err := f.store.ListMessages(context.Background(), threadID)
	require.NoError(t, err)
	return ms
}

func (f *fixture) inbox(t *testing.T, userID string) []model.Notification {
	t.Helper()
	ns, err := f.store.ListNotifications(context.Background(), userID, 0)
	require.NoError(t, err)
	return ns
}
