package assistant

import (
	"fmt"
	"net/http"
	"time"

	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/llm"
	"metabolite-assistant-be/pkg/llm/factory"
)

const (
	ProviderHTTP        = "http"
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
)

type Options struct {
	Provider string
	Endpoint string
	// Timeout of zero leaves requests unbounded; a slow service keeps the
	// typing indicator on until it answers.
	Timeout time.Duration
	// LLMBaseURL and LLMAPIKey configure the chat model providers. An empty
	// base URL picks the provider's default.
	LLMBaseURL string
	LLMAPIKey  string
	Model      string
	MaxTokens  int
	// RateLimit is requests per second across all sessions; 0 disables it.
	RateLimit float64
	RateBurst int
}

// NewClient builds the Client selected by opts.Provider.
func NewClient(opts Options, log logger.ILogger) (Client, error) {
	client, err := newProviderClient(opts, log)
	if err != nil {
		return nil, err
	}
	return NewLimitedClient(client, opts.RateLimit, opts.RateBurst, log), nil
}

func newProviderClient(opts Options, log logger.ILogger) (Client, error) {
	httpClient := &http.Client{Timeout: opts.Timeout}

	switch opts.Provider {
	case "", ProviderHTTP:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("assistant endpoint is not configured")
		}
		return NewHTTPClient(opts.Endpoint, httpClient, log), nil
	case ProviderOllama, ProviderHuggingFace:
		provider, err := factory.NewLLMProvider(opts.Provider, opts.Model, opts.LLMBaseURL, opts.LLMAPIKey, httpClient)
		if err != nil {
			return nil, err
		}
		var llmOpts []llm.Option
		if opts.MaxTokens > 0 {
			llmOpts = append(llmOpts, llm.WithMaxTokens(opts.MaxTokens))
		}
		return NewLLMClient(provider, log, llmOpts...), nil
	default:
		return nil, fmt.Errorf("unsupported assistant provider: %s", opts.Provider)
	}
}
