package model

import (
	"time"
)

// SenderRole identifies which side of a thread wrote a message.
type SenderRole string

const (
	SenderCustomer SenderRole = "customer"
	SenderAgent    SenderRole = "agent"
)

// Valid reports whether r is a known sender role.
func (r SenderRole) Valid() bool {
	return r == SenderCustomer || r == SenderAgent
}

// Other returns the opposite side of the conversation.
func (r SenderRole) Other() SenderRole {
	if r == SenderCustomer {
		return SenderAgent
	}
	return SenderCustomer
}

// MessageKind tags messages that were not typed by a person in the thread.
type MessageKind string

const (
	MessageKindText         MessageKind = "text"
	MessageKindAutoResponse MessageKind = "auto_response"
	MessageKindBroadcast    MessageKind = "broadcast"
)

// Message is one entry of a thread's append-only ledger.
type Message struct {
	// Identity
	ID       string `json:"id" bson:"_id"`
	ThreadID string `json:"thread_id" bson:"threadId"`

	// Author
	SenderRole SenderRole `json:"sender_role" bson:"senderRole"`
	SenderID   string     `json:"sender_id" bson:"senderId"`

	// Content
	Kind    MessageKind `json:"kind" bson:"kind"`
	Text    string      `json:"text" bson:"text"`
	OrderID *string     `json:"order_id,omitempty" bson:"orderId,omitempty"`

	// ClientMessageID is the client-supplied idempotency key, unique per
	// (ThreadID, SenderID).
	ClientMessageID *string `json:"client_message_id,omitempty" bson:"clientMessageId,omitempty"`
	BroadcastID     *string `json:"broadcast_id,omitempty" bson:"broadcastId,omitempty"`

	// Timestamps
	ReadAt    *time.Time `json:"read_at" bson:"readAt"`
	CreatedAt time.Time  `json:"created_at" bson:"createdAt"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Text            string `json:"message_text" validate:"required,max=4000"`
	OrderID         string `json:"order_id,omitempty" validate:"omitempty,max=64"`
	ClientMessageID string `json:"client_message_id,omitempty" validate:"omitempty,max=128"`
}

// ListMessagesResponse is the response for listing a thread's messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Thread   *Thread   `json:"thread"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent represents an error event on a stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
