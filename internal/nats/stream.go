package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
)

const (
	// StreamName is the name of the chat event stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chat"

	publishTimeout = 2 * time.Second
)

// EventSubject returns chat.<branch>.<thread>.<type>.
func EventSubject(branchID, threadID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, branchID, threadID, eventType)
}

// BranchFilter matches every event of a branch.
func BranchFilter(branchID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, branchID)
}

// ThreadFilter matches every event of a thread whatever its branch.
func ThreadFilter(threadID string) string {
	return fmt.Sprintf("%s.*.%s.>", SubjectPrefix, threadID)
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
	logger *logger.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client, log *logger.Logger) *StreamManager {
	return &StreamManager{client: client, logger: log}
}

// EnsureStream creates the chat stream unless it already exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "Support chat thread and message events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish sends a chat event to JetStream. Failures are logged and
// counted; they never fail the caller's operation.
func (m *StreamManager) Publish(ctx context.Context, event *model.ChatEvent) {
	subject := EventSubject(event.BranchID, event.ThreadID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to marshal chat event", zap.String("subject", subject), zap.Error(err))
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := m.client.JetStream().Publish(pubCtx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		m.logger.Warn("failed to publish chat event", zap.String("subject", subject), zap.Error(err))
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()
}

// Subscription delivers decoded events until Close is called.
type Subscription struct {
	sub    *nats.Subscription
	raw    chan *nats.Msg
	events chan model.ChatEvent
	done   chan struct{}
}

// Events returns the channel of decoded events.
func (s *Subscription) Events() <-chan model.ChatEvent {
	return s.events
}

// Close stops delivery.
func (s *Subscription) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.sub.Unsubscribe()
}

// Subscribe listens on filter with a core NATS subscription. Live
// streams need only events that happen while they are connected.
func (m *StreamManager) Subscribe(filter string) (*Subscription, error) {
	raw := make(chan *nats.Msg, 64)
	sub, err := m.client.Conn().ChanSubscribe(filter, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	s := &Subscription{
		sub:    sub,
		raw:    raw,
		events: make(chan model.ChatEvent, 64),
		done:   make(chan struct{}),
	}
	go s.decode(m.logger)
	return s, nil
}

func (s *Subscription) decode(log *logger.Logger) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.raw:
			var event model.ChatEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Warn("dropping malformed chat event", zap.String("subject", msg.Subject), zap.Error(err))
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}
