package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfold/support-chat/internal/model"
)

func TestBroadcastToSelectedCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.thread(t, "c1")

	resp, err := f.broadcasts.Send(ctx, "a1", &model.BroadcastRequest{
		BranchID:          branchDowntown,
		Text:              "We are closed on Monday",
		AudienceType:      model.AudienceSelected,
		TargetCustomerIDs: []string{"c1", "c2", "c1", "a2", "ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.DeliveredCount)

	stored := f.store.Broadcasts()
	require.Len(t, stored, 1)
	assert.Equal(t, resp.BroadcastID, stored[0].ID)
	assert.Equal(t, []string{"c1", "c2"}, stored[0].TargetCustomerIDs)

	for _, id := range []string{"c1", "c2"} {
		th, err := f.threads.GetOrCreate(ctx, id, branchDowntown)
		require.NoError(t, err)
		if id == "c1" {
			assert.Equal(t, existing.ID, th.ID, "existing thread is reused")
		}

		ledger := f.ledger(t, th.ID)
		require.Len(t, ledger, 1)
		assert.Equal(t, model.MessageKindBroadcast, ledger[0].Kind)
		assert.Equal(t, resp.BroadcastID, *ledger[0].BroadcastID)
		assert.Equal(t, 1, f.reload(t, th.ID).UnreadCountCustomer)

		inbox := f.inbox(t, id)
		require.Len(t, inbox, 1)
		assert.Equal(t, model.NotificationBroadcast, inbox[0].Type)
		assert.Equal(t, "Message from Downtown", inbox[0].Title)
	}

	pushes := f.push.all()
	require.Len(t, pushes, 2, "one multicast per customer")
	assert.Equal(t, []string{"c1-legacy"}, pushes[0].Tokens)
	assert.Equal(t, []string{"c2-app"}, pushes[1].Tokens)
	assert.Equal(t, "broadcast", pushes[1].Data["type"])
	assert.Equal(t, resp.BroadcastID, pushes[1].Data["broadcastId"])
}

func TestBroadcastToAllCustomers(t *testing.T) {
	f := newFixture(t)

	resp, err := f.broadcasts.Send(context.Background(), "a3", &model.BroadcastRequest{
		BranchID: branchHarbor,
		Text:     "New opening hours",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.DeliveredCount)
	assert.Equal(t, model.AudienceAll, f.store.Broadcasts()[0].AudienceType)
	assert.Empty(t, f.inbox(t, "a1"))
}

func TestBroadcastRespectsPreference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.notifications.UpdatePreferences(ctx, "c2", map[string]bool{model.PrefAdminBroadcasts: false})
	require.NoError(t, err)

	_, err = f.broadcasts.Send(ctx, "a1", &model.BroadcastRequest{
		BranchID:          branchDowntown,
		Text:              "Sale",
		TargetCustomerIDs: []string{"c2"},
	})
	require.NoError(t, err)

	assert.Len(t, f.inbox(t, "c2"), 1)
	assert.Empty(t, f.push.all())
}

func TestBroadcastValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.broadcasts.Send(ctx, "a1", &model.BroadcastRequest{BranchID: branchDowntown, Text: "x", AudienceType: model.AudienceSelected})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "target_customer_ids", verr.Field)

	_, err = f.broadcasts.Send(ctx, "a1", &model.BroadcastRequest{Text: "x"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "branch_id", verr.Field)

	_, err = f.broadcasts.Send(ctx, "a2", &model.BroadcastRequest{BranchID: branchDowntown, Text: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.broadcasts.Send(ctx, "c1", &model.BroadcastRequest{BranchID: branchDowntown, Text: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.store.Broadcasts())
}
