package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/freshfold/support-chat/pkg/overlay"
)

// Role is an account's role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// AppClass tags which client application a push token belongs to.
type AppClass string

const (
	// AppUntagged marks legacy tokens registered before tagging existed.
	AppUntagged AppClass = ""
	AppAgent    AppClass = "agent"
	AppCustomer AppClass = "customer"
)

// Valid reports whether c is a known class, including untagged.
func (c AppClass) Valid() bool {
	return c == AppUntagged || c == AppAgent || c == AppCustomer
}

// AppClassFor is the application class an account of role r uses.
func AppClassFor(r Role) AppClass {
	if r == RoleAgent {
		return AppAgent
	}
	return AppCustomer
}

// DeviceToken is a push registration. Legacy records store the bare token
// string; both shapes decode into this type with App left untagged.
type DeviceToken struct {
	Token string   `json:"token" bson:"token"`
	App   AppClass `json:"app,omitempty" bson:"appType,omitempty"`
}

type deviceTokenDoc struct {
	Token string   `json:"token" bson:"token"`
	App   AppClass `json:"app,omitempty" bson:"appType,omitempty"`
}

// UnmarshalJSON accepts either "token" or {"token": ..., "app": ...}.
func (d *DeviceToken) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DeviceToken{Token: s}
		return nil
	}
	var doc deviceTokenDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*d = DeviceToken(doc)
	return nil
}

// UnmarshalBSONValue accepts either a string element or a subdocument.
func (d *DeviceToken) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		s, _ := raw.StringValueOK()
		*d = DeviceToken{Token: s}
		return nil
	case bsontype.Null, bsontype.Undefined:
		*d = DeviceToken{}
		return nil
	case bsontype.EmbeddedDocument:
		var doc deviceTokenDoc
		if err := raw.Unmarshal(&doc); err != nil {
			return err
		}
		*d = DeviceToken(doc)
		return nil
	}
	return fmt.Errorf("cannot decode device token from BSON %s", t)
}

// Permissions are the chat capabilities granted to an agent.
type Permissions struct {
	PickupThreads   bool `json:"pickup_threads" bson:"pickupThreads"`
	TransferThreads bool `json:"transfer_threads" bson:"transferThreads"`
	Broadcast       bool `json:"broadcast" bson:"broadcast"`
}

// Permission names one capability.
type Permission string

const (
	PermPickup    Permission = "pickup"
	PermTransfer  Permission = "transfer"
	PermBroadcast Permission = "broadcast"
)

// Notification preference keys.
const (
	PrefEmail           = "email"
	PrefPush            = "push"
	PrefOrderUpdates    = "orderUpdates"
	PrefChatMessages    = "chatMessages"
	PrefAdminBroadcasts = "adminBroadcasts"
	PrefBucketUpdates   = "bucketUpdates"
)

// DefaultPreferences has every channel enabled.
func DefaultPreferences() map[string]bool {
	return map[string]bool{
		PrefEmail:           true,
		PrefPush:            true,
		PrefOrderUpdates:    true,
		PrefChatMessages:    true,
		PrefAdminBroadcasts: true,
		PrefBucketUpdates:   true,
	}
}

// IsPreferenceKey reports whether key is a known preference.
func IsPreferenceKey(key string) bool {
	_, ok := DefaultPreferences()[key]
	return ok
}

// Account is a customer or agent user.
type Account struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Role  Role   `json:"role" bson:"role"`

	// Agent scope
	IsMaster           bool        `json:"is_master" bson:"isMaster"`
	SeesAllBranches    bool        `json:"sees_all_branches" bson:"seesAllBranches"`
	AssignedBranches   []string    `json:"assigned_branches,omitempty" bson:"assignedBranches,omitempty"`
	SubscribedBranches []string    `json:"subscribed_branches,omitempty" bson:"subscribedBranches,omitempty"`
	Permissions        Permissions `json:"permissions" bson:"permissions"`
	Revoked            bool        `json:"revoked" bson:"isRevoked"`

	DeviceTokens []DeviceToken  `json:"device_tokens,omitempty" bson:"deviceTokens,omitempty"`
	Preferences  map[string]bool `json:"preferences,omitempty" bson:"notificationPreferences,omitempty"`
}

// IsActiveAgent reports whether the account may act as support staff.
func (a *Account) IsActiveAgent() bool {
	return a.Role == RoleAgent && !a.Revoked
}

// Can reports whether an active agent holds permission p. Master agents hold
// every permission.
func (a *Account) Can(p Permission) bool {
	if !a.IsActiveAgent() {
		return false
	}
	if a.IsMaster {
		return true
	}
	switch p {
	case PermPickup:
		return a.Permissions.PickupThreads
	case PermTransfer:
		return a.Permissions.TransferThreads
	case PermBroadcast:
		return a.Permissions.Broadcast
	}
	return false
}

// CoversBranch reports whether an agent sees notifications for branchID.
func (a *Account) CoversBranch(branchID string) bool {
	if !a.IsActiveAgent() {
		return false
	}
	if a.IsMaster || a.SeesAllBranches {
		return true
	}
	return slices.Contains(a.AssignedBranches, branchID) || slices.Contains(a.SubscribedBranches, branchID)
}

// EffectivePreferences overlays the stored preferences on the defaults.
func (a *Account) EffectivePreferences() map[string]bool {
	return overlay.Resolve(DefaultPreferences(), a.Preferences)
}

// Wants reports whether the account accepts pushes for the given preference.
func (a *Account) Wants(pref string) bool {
	prefs := a.EffectivePreferences()
	return prefs[PrefPush] && prefs[pref]
}

// WithDeviceToken returns the token list with tok registered. An existing
// entry for the same token string is replaced so its tag follows the latest
// registration.
func (a *Account) WithDeviceToken(tok DeviceToken) []DeviceToken {
	out := make([]DeviceToken, 0, len(a.DeviceTokens)+1)
	for _, existing := range a.DeviceTokens {
		if existing.Token == tok.Token || existing.Token == "" {
			continue
		}
		out = append(out, existing)
	}
	return append(out, tok)
}

// Branch is a shop location whose support team owns threads.
type Branch struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// RegisterDeviceRequest registers a push token for the caller.
type RegisterDeviceRequest struct {
	Token string   `json:"token" validate:"required,max=4096"`
	App   AppClass `json:"app" validate:"omitempty,oneof=agent customer"`
}
