// Package push delivers mobile notifications through Firebase Cloud
// Messaging.
package push

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/freshfold/support-chat/pkg/logger"
)

// Notification is one push addressed to a set of device tokens.
type Notification struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Gateway sends push notifications. Delivery is best effort.
type Gateway interface {
	Deliver(ctx context.Context, n Notification) error
}

// Nop discards every notification.
type Nop struct{}

// Deliver implements Gateway.
func (Nop) Deliver(context.Context, Notification) error { return nil }

// Async runs deliveries off the request path. Each delivery gets its own
// timeout detached from the caller's cancellation.
type Async struct {
	next    Gateway
	timeout time.Duration
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// NewAsync wraps next.
func NewAsync(next Gateway, timeout time.Duration, log *logger.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: log}
}

// Deliver schedules n and returns immediately.
func (a *Async) Deliver(ctx context.Context, n Notification) error {
	n.Tokens = Dedupe(n.Tokens)
	if len(n.Tokens) == 0 {
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Deliver(sendCtx, n); err != nil {
			a.logger.Warn("push delivery failed",
				zap.Int("tokens", len(n.Tokens)),
				zap.String("title", n.Title),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Close waits for in-flight deliveries.
func (a *Async) Close() {
	a.wg.Wait()
}

// Dedupe drops empty and repeated tokens, keeping first-seen order.
func Dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
