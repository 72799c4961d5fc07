package assistant

import (
	"context"
	"errors"
	"testing"

	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply    string
	err      error
	messages []llm.Message
	options  llm.Options
}

func (f *fakeProvider) Chat(_ context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.messages = history
	for _, opt := range opts {
		opt(&f.options)
	}
	return f.reply, f.err
}

func TestLLMClient_Send(t *testing.T) {
	provider := &fakeProvider{reply: "- lactate is up"}
	client := NewLLMClient(provider, logger.NewNopLogger(), llm.WithMaxTokens(300))

	got := client.Send(context.Background(), RequestPayload{
		UserMessage: "Summarize the current filters and notable metabolites.",
		Task:        TaskFilterSummary,
		Context:     map[string]any{"filters": map[string]any{"pThreshold": 0.05}},
	})

	assert.Equal(t, Reply{Reply: "- lactate is up"}, got)
	require.Len(t, provider.messages, 2)
	assert.Equal(t, llm.RoleSystem, provider.messages[0].Role)
	assert.Contains(t, provider.messages[0].Content, taskPrompts[TaskFilterSummary])
	assert.Contains(t, provider.messages[0].Content, `"pThreshold": 0.05`)
	assert.Equal(t, "Summarize the current filters and notable metabolites.", provider.messages[1].Content)
	assert.Equal(t, 300, provider.options.MaxTokens)
}

func TestLLMClient_Failures(t *testing.T) {
	client := NewLLMClient(&fakeProvider{err: errors.New("connection refused")}, logger.NewNopLogger())
	assert.Equal(t, Unavailable(), client.Send(context.Background(), RequestPayload{Task: TaskChat}))

	client = NewLLMClient(&fakeProvider{reply: "  "}, logger.NewNopLogger())
	assert.Equal(t, Reply{Reply: NoResponseText}, client.Send(context.Background(), RequestPayload{Task: TaskChat}))

	client = NewLLMClient(&fakeProvider{reply: "x"}, logger.NewNopLogger())
	got := client.Send(context.Background(), RequestPayload{Task: TaskChat, Context: func() {}})
	assert.Equal(t, Unavailable(), got)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Options{Endpoint: "http://localhost:8787/api/chat"}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, c)

	c, err = NewClient(Options{Provider: ProviderOllama, Model: "llama3"}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &LLMClient{}, c)

	c, err = NewClient(Options{Provider: ProviderHuggingFace, Model: "meta-llama/Llama-3.1-8B-Instruct", LLMAPIKey: "hf_x"}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &LLMClient{}, c)

	c, err = NewClient(Options{Endpoint: "http://localhost:8787/api/chat", RateLimit: 2, RateBurst: 4}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &LimitedClient{}, c)

	_, err = NewClient(Options{Provider: ProviderHTTP}, logger.NewNopLogger())
	assert.Error(t, err)

	_, err = NewClient(Options{Provider: "carrier-pigeon"}, logger.NewNopLogger())
	assert.Error(t, err)
}
