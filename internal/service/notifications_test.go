package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfold/support-chat/internal/model"
)

func seedNotifications(t *testing.T, f *fixture, userID string, n int) []model.Notification {
	t.Helper()
	ns := make([]model.Notification, n)
	for i := range ns {
		ns[i] = model.Notification{
			ID:        fmt.Sprintf("%s-n%02d", userID, i),
			UserID:    userID,
			Title:     "t",
			Type:      model.NotificationOrder,
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}
	}
	require.NoError(t, f.store.InsertNotifications(context.Background(), ns))
	return ns
}

func TestInboxListsLatestFirst(t *testing.T) {
	f := newFixture(t)
	seedNotifications(t, f, "c1", InboxLimit+5)
	seedNotifications(t, f, "c2", 1)

	got, err := f.notifications.List(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, got, InboxLimit)
	assert.Equal(t, fmt.Sprintf("c1-n%02d", InboxLimit+4), got[0].ID)
	for _, n := range got {
		assert.Equal(t, "c1", n.UserID)
	}
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedNotifications(t, f, "c1", 3)

	n, err := f.notifications.MarkRead(ctx, "c1", "c1-n01")
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	_, err = f.notifications.MarkRead(ctx, "c2", "c1-n02")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.notifications.MarkRead(ctx, "c1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := f.notifications.MarkAllRead(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = f.notifications.MarkAllRead(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs, err := f.notifications.Preferences(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)

	prefs, err = f.notifications.UpdatePreferences(ctx, "c1", map[string]bool{model.PrefEmail: false})
	require.NoError(t, err)
	assert.False(t, prefs[model.PrefEmail])
	assert.True(t, prefs[model.PrefPush])

	prefs, err = f.notifications.UpdatePreferences(ctx, "c1", map[string]bool{model.PrefPush: false})
	require.NoError(t, err)
	assert.False(t, prefs[model.PrefEmail], "earlier overrides survive a partial update")
	assert.False(t, prefs[model.PrefPush])

	_, err = f.notifications.UpdatePreferences(ctx, "c1", map[string]bool{"sms": true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sms", verr.Field)

	_, err = f.notifications.Preferences(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.notifications.RegisterDevice(ctx, customer, &model.RegisterDeviceRequest{Token: "c1-legacy", App: model.AppCustomer}))
	require.NoError(t, f.notifications.RegisterDevice(ctx, customer, &model.RegisterDeviceRequest{Token: "c1-new"}))

	a, err := f.store.GetAccount(ctx, "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.DeviceToken{
		{Token: "c1-staff-app", App: model.AppAgent},
		{Token: "c1-legacy", App: model.AppCustomer},
		{Token: "c1-new"},
	}, a.DeviceTokens)

	err = f.notifications.RegisterDevice(ctx, customer, &model.RegisterDeviceRequest{Token: "x", App: "watch"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "app", verr.Field)
}
