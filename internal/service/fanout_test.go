package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfold/support-chat/internal/model"
)

func recipients(ns map[string][]model.Notification) []string {
	var out []string
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", autoAgentID} {
		if len(ns[id]) > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (f *fixture) agentInboxes(t *testing.T) map[string][]model.Notification {
	t.Helper()
	out := map[string][]model.Notification{}
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", autoAgentID} {
		out[id] = f.inbox(t, id)
	}
	return out
}

func TestCustomerMessageToUnassignedThreadReachesBranchTeam(t *testing.T) {
	f := newFixture(t)
	th := f.thread(t, "c1")

	f.send(t, customer, th.ID, "my shirt is missing")

	inboxes := f.agentInboxes(t)
	assert.Equal(t, []string{"a1", "a2", "a3"}, recipients(inboxes))

	n := inboxes["a1"][0]
	assert.Equal(t, "New Message", n.Title)
	assert.Equal(t, "Carol (Downtown): my shirt is missing", n.Message)
	assert.Equal(t, model.NotificationChat, n.Type)
	assert.Equal(t, th.ID, *n.ThreadID)
	assert.Equal(t, branchDowntown, *n.BranchID)

	pushes := f.push.all()
	require.Len(t, pushes, 1, "the acknowledgement sends no push")
	p := pushes[0]
	assert.Equal(t, []string{"a1-agent-app", "a2-legacy"}, p.Tokens)
	assert.Equal(t, "New Message", p.Title)
	assert.Contains(t, p.Body, "Carol")
	assert.Contains(t, p.Body, "Downtown")
	assert.Equal(t, map[string]string{
		"type":         "chat",
		"threadId":     th.ID,
		"branchId":     branchDowntown,
		"click_action": "FLUTTER_NOTIFICATION_CLICK",
	}, p.Data)
}

func TestCustomerMessageToAssignedThreadReachesAssigneeOnly(t *testing.T) {
	f := newFixture(t)
	th := f.thread(t, "c1")

	_, err := f.threads.Pickup(context.Background(), "a2", th.ID)
	require.NoError(t, err)
	f.send(t, customer, th.ID, "hello")

	assert.Equal(t, []string{"a2"}, recipients(f.agentInboxes(t)))
	pushes := f.push.all()
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"a2-legacy"}, pushes[0].Tokens)
}

func TestAgentReplyReachesCustomerApp(t *testing.T) {
	f := newFixture(t)
	th := f.thread(t, "c1")

	f.send(t, agentAda, th.ID, "your order is ready")

	inbox := f.inbox(t, "c1")
	require.Len(t, inbox, 1)
	assert.Equal(t, "Support Replied", inbox[0].Title)
	assert.Equal(t, "your order is ready", inbox[0].Message)

	pushes := f.push.all()
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"c1-legacy"}, pushes[0].Tokens, "the customer's staff-app token is never used")
	assert.Equal(t, "Support Replied", pushes[0].Title)
	assert.Empty(t, recipients(f.agentInboxes(t)))
}

func TestPushRespectsPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.thread(t, "c1")

	_, err := f.notifications.UpdatePreferences(ctx, "c1", map[string]bool{model.PrefChatMessages: false})
	require.NoError(t, err)
	_, err = f.notifications.UpdatePreferences(ctx, "a1", map[string]bool{model.PrefPush: false})
	require.NoError(t, err)

	f.send(t, agentAda, th.ID, "ready for pickup")
	assert.Len(t, f.inbox(t, "c1"), 1, "in-app records are always written")
	assert.Empty(t, f.push.all())

	f.send(t, customer, th.ID, "thanks")
	assert.Len(t, f.inbox(t, "a1"), 1)
	pushes := f.push.all()
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"a2-legacy"}, pushes[0].Tokens)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ñññ…", truncate("ññññññ", 4))
}
