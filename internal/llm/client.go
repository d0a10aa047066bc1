// Package llm drafts agent reply suggestions with a hosted language model.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message roles understood by both providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultMaxTokens = 512

// ErrEmptyCompletion is returned when the provider answers without text.
var ErrEmptyCompletion = errors.New("model returned no text")

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	// System carries the standing instructions, sent separately from the
	// conversation turns.
	System      string
	Messages    []ChatMessage
	Model       string
	MaxTokens   int
	Temperature float64
}

// withDefaults fills the model and token limit left unset by the caller.
func (r CompletionRequest) withDefaults(model string) CompletionRequest {
	if r.Model == "" {
		r.Model = model
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaultMaxTokens
	}
	return r
}

// ChatMessage is one turn sent to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is the drafted text and its token usage.
type CompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a client for provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		c, err := NewAnthropicClient(apiKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(apiKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", provider)
}

// Select picks the configured provider. preferred wins when its key is
// set; otherwise the first provider with a key is used. It returns nil
// when no key is configured.
func Select(preferred Provider, keys map[Provider]string) (Client, error) {
	if key := keys[preferred]; key != "" {
		return NewClient(preferred, key)
	}
	for _, p := range []Provider{ProviderAnthropic, ProviderOpenAI} {
		if key := keys[p]; key != "" {
			return NewClient(p, key)
		}
	}
	return nil, nil
}
