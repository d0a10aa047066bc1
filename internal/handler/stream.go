package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/middleware"
	"github.com/freshfold/support-chat/internal/model"
	natsclient "github.com/freshfold/support-chat/internal/nats"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
)

const heartbeatInterval = 30 * time.Second

// Subscription is a live feed of chat events.
type Subscription interface {
	Events() <-chan model.ChatEvent
	Close() error
}

// Subscriber opens event feeds scoped to a branch or a single thread.
type Subscriber interface {
	SubscribeBranch(branchID string) (Subscription, error)
	SubscribeThread(threadID string) (Subscription, error)
}

// NATSSubscriber adapts a JetStream stream manager to Subscriber.
type NATSSubscriber struct {
	Streams *natsclient.StreamManager
}

// SubscribeBranch follows every thread of branchID.
func (s NATSSubscriber) SubscribeBranch(branchID string) (Subscription, error) {
	sub, err := s.Streams.Subscribe(natsclient.BranchFilter(branchID))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeThread follows one thread.
func (s NATSSubscriber) SubscribeThread(threadID string) (Subscription, error) {
	sub, err := s.Streams.Subscribe(natsclient.ThreadFilter(threadID))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	threads *service.ThreadService
	feed    Subscriber
	logger  *logger.Logger
}

// NewStreamHandler creates a new stream handler. A nil feed disables
// streaming.
func NewStreamHandler(threads *service.ThreadService, feed Subscriber, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		threads: threads,
		feed:    feed,
		logger:  log,
	}
}

// Thread handles GET /api/v1/threads/{id}/stream
func (h *StreamHandler) Thread(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime events are not configured")
		return
	}
	threadID := chi.URLParam(r, "id")

	if _, err := h.threads.Get(r.Context(), callerFrom(r), threadID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	sub, err := h.feed.SubscribeThread(threadID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.serve(w, r, sub, map[string]string{"thread_id": threadID})
}

// Branch handles GET /api/v1/agent/stream?branch_id=
func (h *StreamHandler) Branch(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime events are not configured")
		return
	}
	branchID := r.URL.Query().Get("branch_id")

	if err := h.threads.WatchBranch(r.Context(), middleware.GetUserID(r.Context()), branchID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	sub, err := h.feed.SubscribeBranch(branchID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.serve(w, r, sub, map[string]string{"branch_id": branchID})
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, sub Subscription, hello map[string]string) {
	defer sub.Close()

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := rc.Flush(); err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.With(
		zap.String("user_id", middleware.GetUserID(r.Context())),
		zap.Any("scope", hello),
	)
	log.Debug("SSE client connected")

	if err := sendSSEEvent(w, rc, "connected", hello); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	events := sub.Events()
	for {
		select {
		case <-r.Context().Done():
			log.Debug("SSE client disconnected")
			return

		case ev, ok := <-events:
			if !ok {
				_ = sendSSEEvent(w, rc, "error", &model.ErrorEvent{
					Code:    "stream_closed",
					Message: "event feed closed",
				})
				return
			}
			if err := sendSSEEvent(w, rc, string(ev.Type), &ev); err != nil {
				log.Debug("SSE write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, rc, "heartbeat", &model.HeartbeatEvent{Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	return rc.Flush()
}
