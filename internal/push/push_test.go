package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/pkg/logger"
)

type fakeSender struct {
	mu      sync.Mutex
	batches []*messaging.MulticastMessage
	err     error
}

func (f *fakeSender) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, m)
	if f.err != nil {
		return nil, f.err
	}
	resps := make([]*messaging.SendResponse, len(m.Tokens))
	for i := range resps {
		resps[i] = &messaging.SendResponse{Success: true}
	}
	return &messaging.BatchResponse{SuccessCount: len(m.Tokens), Responses: resps}, nil
}

func TestFCMChunksLargeAudiences(t *testing.T) {
	sender := &fakeSender{}
	gw := NewFCMWithSender(sender, logger.NewNop())

	tokens := make([]string, 1203)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}

	require.NoError(t, gw.Deliver(context.Background(), Notification{Tokens: tokens, Title: "t", Body: "b"}))

	require.Len(t, sender.batches, 3)
	assert.Len(t, sender.batches[0].Tokens, 500)
	assert.Len(t, sender.batches[1].Tokens, 500)
	assert.Len(t, sender.batches[2].Tokens, 203)
}

func TestFCMMessageShape(t *testing.T) {
	sender := &fakeSender{}
	gw := NewFCMWithSender(sender, logger.NewNop())

	data := map[string]string{"type": "chat", "threadId": "t1"}
	require.NoError(t, gw.Deliver(context.Background(), Notification{
		Tokens: []string{"a", "a", "b"},
		Title:  "New Message",
		Body:   "hi",
		Data:   data,
	}))

	require.Len(t, sender.batches, 1)
	m := sender.batches[0]
	assert.Equal(t, []string{"a", "b"}, m.Tokens)
	assert.Equal(t, data, m.Data)
	assert.Equal(t, "New Message", m.Notification.Title)
	assert.Equal(t, "high", m.Android.Priority)
	assert.Equal(t, "high_importance_channel", m.Android.Notification.ChannelID)
	assert.Equal(t, "10", m.APNS.Headers["apns-priority"])
	assert.True(t, m.APNS.Payload.Aps.ContentAvailable)
	assert.Equal(t, "default", m.APNS.Payload.Aps.Sound)
}

func TestFCMReportsSendErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("unavailable")}
	gw := NewFCMWithSender(sender, logger.NewNop())

	err := gw.Deliver(context.Background(), Notification{Tokens: []string{"a"}})
	assert.ErrorContains(t, err, "unavailable")
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []Notification
	ctxs []context.Context
}

func (r *recordingGateway) Deliver(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	r.ctxs = append(r.ctxs, ctx)
	return nil
}

func TestAsyncOutlivesCallerContext(t *testing.T) {
	rec := &recordingGateway{}
	a := NewAsync(rec, time.Second, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Deliver(ctx, Notification{Tokens: []string{"x", ""}}))
	cancel()
	require.NoError(t, a.Deliver(context.Background(), Notification{Tokens: []string{""}}))
	a.Close()

	require.Len(t, rec.sent, 1, "empty audiences are skipped")
	assert.Equal(t, []string{"x"}, rec.sent[0].Tokens)
}

func TestTokensForIsolatesApps(t *testing.T) {
	agent := model.Account{ID: "a", Role: model.RoleAgent, DeviceTokens: []model.DeviceToken{
		{Token: "agent-legacy"},
		{Token: "agent-app", App: model.AppAgent},
		{Token: "agent-phone-customer-app", App: model.AppCustomer},
	}}
	customer := model.Account{ID: "c", Role: model.RoleCustomer, DeviceTokens: []model.DeviceToken{
		{Token: "customer-legacy"},
		{Token: "agent-app"},
	}}

	assert.Equal(t, []string{"agent-legacy", "agent-app"}, TokensFor(model.AppAgent, agent, customer))
	assert.Equal(t, []string{"agent-phone-customer-app", "customer-legacy", "agent-app"}, TokensFor(model.AppCustomer, agent, customer))
	assert.Empty(t, TokensFor(model.AppCustomer))
}

func TestFirebaseConfigEnabled(t *testing.T) {
	assert.False(t, FirebaseConfig{}.Enabled())
	assert.False(t, FirebaseConfig{ProjectID: "p"}.Enabled())
	assert.True(t, FirebaseConfig{ProjectID: "p", CredentialsFile: "/x.json"}.Enabled())
	assert.True(t, FirebaseConfig{ProjectID: "p", ClientEmail: "e", PrivateKey: "k"}.Enabled())
}
