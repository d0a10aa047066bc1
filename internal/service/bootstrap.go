package service

import (
	"context"
	"fmt"

	"github.com/freshfold/support-chat/internal/store"
)

// Bootstrap performs the idempotent create-if-absent setup the chat core
// expects at process start.
func Bootstrap(ctx context.Context, s store.Store, auto AutoResponder) error {
	if auto.AgentID == "" {
		return nil
	}
	a := auto.Account()
	if a.Name == "" {
		a.Name = "Support"
	}
	if err := s.EnsureAccount(ctx, a); err != nil {
		return fmt.Errorf("failed to ensure auto-responder account: %w", err)
	}
	return nil
}
