package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/freshfold/support-chat/internal/model"
)

// EventPublisher fans chat events out to live subscribers. Publishing is
// best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ChatEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, *model.ChatEvent) {}

func threadEvent(typ model.EventType, t *model.Thread, m *model.Message, at timeFunc) *model.ChatEvent {
	return &model.ChatEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      typ,
		BranchID:  t.BranchID,
		ThreadID:  t.ID,
		Thread:    t,
		Message:   m,
		CreatedAt: at(),
	}
}
