package factory

import (
	"fmt"
	"net/http"

	"metabolite-assistant-be/pkg/llm"
	"metabolite-assistant-be/pkg/llm/huggingface"
	"metabolite-assistant-be/pkg/llm/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// NewLLMProvider builds a chat model backend. apiKey is ignored by ollama.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string, httpClient *http.Client) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return ollama.NewOllamaProvider(baseURL, modelName, httpClient), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
