package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfold/support-chat/internal/llm"
)

type fakeLLM struct {
	got  *llm.CompletionRequest
	resp string
	err  error
}

func (f *fakeLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.resp}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func TestSuggestDisabledWithoutProvider(t *testing.T) {
	f := newFixture(t)
	svc := NewSuggestionService(Deps{Store: f.store}, nil)

	assert.False(t, svc.Enabled())
	_, err := svc.Suggest(context.Background(), "a1", "t")
	assert.ErrorIs(t, err, ErrSuggestionsDisabled)
}

func TestSuggestUsesRecentTranscript(t *testing.T) {
	f := newFixture(t)
	th := f.thread(t, "c1")
	_, err := f.threads.Pickup(context.Background(), "a1", th.ID)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		f.send(t, customer, th.ID, fmt.Sprintf("line %d", i))
		f.clock.Advance(time.Second)
	}

	client := &fakeLLM{resp: "  Sure, let me check that for you.\n"}
	svc := NewSuggestionService(Deps{Store: f.store}, client)

	got, err := svc.Suggest(context.Background(), "a1", th.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sure, let me check that for you.", got.Text)
	assert.Equal(t, "fake", got.Provider)

	assert.Equal(t, suggestionPrompt, client.got.System)
	require.Len(t, client.got.Messages, 1)
	prompt := client.got.Messages[0].Content
	assert.Contains(t, prompt, "Customer: line 24")
	assert.Contains(t, prompt, "Customer: line 5\n")
	assert.NotContains(t, prompt, "Customer: line 4\n")
}

func TestSuggestErrors(t *testing.T) {
	f := newFixture(t)
	th := f.thread(t, "c1")
	client := &fakeLLM{err: errors.New("overloaded")}
	svc := NewSuggestionService(Deps{Store: f.store}, client)
	ctx := context.Background()

	_, err := svc.Suggest(ctx, "c1", th.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Suggest(ctx, "a1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Suggest(ctx, "a1", th.ID)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr, "empty thread")

	f.send(t, customer, th.ID, "hi")
	_, err = svc.Suggest(ctx, "a1", th.ID)
	assert.ErrorContains(t, err, "overloaded")
}
