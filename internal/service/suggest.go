package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/llm"
	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
)

const suggestionContext = 20

const suggestionPrompt = `You are helping a support agent at a laundry and dry cleaning shop reply to a customer.
Write one short, friendly reply the agent could send next. Reply with the message text only.`

// SuggestionService drafts agent replies with an LLM. Drafts are returned
// to the agent and never sent.
type SuggestionService struct {
	store  store.Store
	client llm.Client
	logger *logger.Logger
}

// NewSuggestionService creates a new suggestion service. client may be nil,
// in which case Suggest returns ErrSuggestionsDisabled.
func NewSuggestionService(d Deps, client llm.Client) *SuggestionService {
	d = d.withDefaults()
	return &SuggestionService{store: d.Store, client: client, logger: d.Logger}
}

// Enabled reports whether a provider is configured.
func (s *SuggestionService) Enabled() bool {
	return s.client != nil
}

// Suggest drafts the agent's next reply in threadID.
func (s *SuggestionService) Suggest(ctx context.Context, agentID, threadID string) (*model.SuggestionResponse, error) {
	if s.client == nil {
		return nil, ErrSuggestionsDisabled
	}
	agent, err := activeAgent(ctx, s.store, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := agentThread(ctx, s.store, agent, threadID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, invalid("thread_id", "thread has no messages yet")
	}
	if len(messages) > suggestionContext {
		messages = messages[len(messages)-suggestionContext:]
	}

	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		System:      suggestionPrompt,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: "Conversation so far:\n" + transcript(messages)}},
		Temperature: 0.3,
	})
	if err != nil {
		metrics.SuggestionsTotal.WithLabelValues(s.client.Name(), "error").Inc()
		s.logger.Warn("suggestion failed", zap.String("thread_id", threadID), zap.String("provider", s.client.Name()), zap.Error(err))
		return nil, fmt.Errorf("failed to draft suggestion: %w", err)
	}
	metrics.SuggestionsTotal.WithLabelValues(s.client.Name(), "success").Inc()

	return &model.SuggestionResponse{
		Text:     strings.TrimSpace(resp.Content),
		Provider: s.client.Name(),
	}, nil
}

func transcript(messages []model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		speaker := "Customer"
		if m.SenderRole == model.SenderAgent {
			speaker = "Agent"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Text)
	}
	return b.String()
}
