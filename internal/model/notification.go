package model

import (
	"time"
)

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationChat      NotificationType = "chat"
	NotificationBroadcast NotificationType = "broadcast"
	NotificationOrder     NotificationType = "order"
)

// Notification is an in-app record owned by its recipient.
type Notification struct {
	ID        string           `json:"id" bson:"_id"`
	UserID    string           `json:"user_id" bson:"userId"`
	Title     string           `json:"title" bson:"title"`
	Message   string           `json:"message" bson:"message"`
	Type      NotificationType `json:"type" bson:"type"`
	BranchID  *string          `json:"branch_id" bson:"branchId"`
	ThreadID  *string          `json:"thread_id,omitempty" bson:"threadId,omitempty"`
	IsRead    bool             `json:"is_read" bson:"isRead"`
	CreatedAt time.Time        `json:"created_at" bson:"createdAt"`
}

// Audience selects broadcast recipients.
type Audience string

const (
	AudienceAll      Audience = "all"
	AudienceSelected Audience = "selected"
)

// Broadcast is a one-to-many announcement from an agent within a branch.
type Broadcast struct {
	ID                string    `json:"id" bson:"_id"`
	SenderID          string    `json:"sender_id" bson:"senderId"`
	BranchID          string    `json:"branch_id" bson:"branchId"`
	Text              string    `json:"text" bson:"text"`
	AudienceType      Audience  `json:"audience_type" bson:"audienceType"`
	TargetCustomerIDs []string  `json:"target_customer_ids" bson:"targetCustomerIds"`
	CreatedAt         time.Time `json:"created_at" bson:"createdAt"`
}

// BroadcastRequest is the request to send a broadcast.
type BroadcastRequest struct {
	BranchID          string   `json:"branch_id" validate:"required"`
	Text              string   `json:"message_text" validate:"required,max=4000"`
	AudienceType      Audience `json:"audience_type" validate:"omitempty,oneof=all selected"`
	TargetCustomerIDs []string `json:"target_customer_ids,omitempty" validate:"omitempty,dive,required"`
}

// BroadcastResponse reports how many customers received the broadcast.
type BroadcastResponse struct {
	BroadcastID    string `json:"broadcast_id"`
	DeliveredCount int    `json:"delivered_count"`
}
