package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDeviceTokenJSONAcceptsBothShapes(t *testing.T) {
	var toks []DeviceToken
	err := json.Unmarshal([]byte(`["legacy-1", {"token": "t-2", "app": "agent"}]`), &toks)
	require.NoError(t, err)

	assert.Equal(t, []DeviceToken{
		{Token: "legacy-1", App: AppUntagged},
		{Token: "t-2", App: AppAgent},
	}, toks)
}

func TestDeviceTokenBSONAcceptsBothShapes(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":  "u1",
		"role": "agent",
		"deviceTokens": bson.A{
			"legacy-1",
			bson.M{"token": "t-2", "appType": "customer"},
		},
	})
	require.NoError(t, err)

	var acc Account
	require.NoError(t, bson.Unmarshal(raw, &acc))

	assert.Equal(t, []DeviceToken{
		{Token: "legacy-1"},
		{Token: "t-2", App: AppCustomer},
	}, acc.DeviceTokens)
}

func TestAccountCoversBranch(t *testing.T) {
	agent := Account{Role: RoleAgent, AssignedBranches: []string{"b1"}, SubscribedBranches: []string{"b2"}}

	assert.True(t, agent.CoversBranch("b1"))
	assert.True(t, agent.CoversBranch("b2"))
	assert.False(t, agent.CoversBranch("b3"))

	agent.SeesAllBranches = true
	assert.True(t, agent.CoversBranch("b3"))

	agent.Revoked = true
	assert.False(t, agent.CoversBranch("b1"))

	customer := Account{Role: RoleCustomer, SeesAllBranches: true}
	assert.False(t, customer.CoversBranch("b1"))
}

func TestAccountCan(t *testing.T) {
	agent := Account{Role: RoleAgent, Permissions: Permissions{PickupThreads: true}}
	assert.True(t, agent.Can(PermPickup))
	assert.False(t, agent.Can(PermTransfer))

	master := Account{Role: RoleAgent, IsMaster: true}
	assert.True(t, master.Can(PermTransfer))
	assert.True(t, master.Can(PermBroadcast))

	customer := Account{Role: RoleCustomer, IsMaster: true}
	assert.False(t, customer.Can(PermPickup))
}

func TestAccountWants(t *testing.T) {
	acc := Account{}
	assert.True(t, acc.Wants(PrefChatMessages))

	acc.Preferences = map[string]bool{PrefChatMessages: false}
	assert.False(t, acc.Wants(PrefChatMessages))
	assert.True(t, acc.Wants(PrefAdminBroadcasts))

	acc.Preferences = map[string]bool{PrefPush: false}
	assert.False(t, acc.Wants(PrefAdminBroadcasts))
}

func TestWithDeviceTokenReplacesTag(t *testing.T) {
	acc := Account{DeviceTokens: []DeviceToken{{Token: "a"}, {Token: "b", App: AppCustomer}}}

	got := acc.WithDeviceToken(DeviceToken{Token: "a", App: AppAgent})

	assert.Equal(t, []DeviceToken{{Token: "b", App: AppCustomer}, {Token: "a", App: AppAgent}}, got)
	assert.Len(t, acc.DeviceTokens, 2)
}

func TestThreadResolutionMinutes(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	th := NewThread("t", "c", "b", t0)

	assert.Equal(t, 95, th.ResolutionMinutes(t0.Add(95*time.Minute)))
	assert.Equal(t, 96, th.ResolutionMinutes(t0.Add(95*time.Minute+40*time.Second)))
}

func TestParseThreadStatus(t *testing.T) {
	st, err := ParseThreadStatus("Picked_Up")
	require.NoError(t, err)
	assert.Equal(t, ThreadPickedUp, st)

	st, err = ParseThreadStatus("All")
	require.NoError(t, err)
	assert.Equal(t, ThreadStatus(""), st)

	_, err = ParseThreadStatus("closed")
	assert.Error(t, err)
}
