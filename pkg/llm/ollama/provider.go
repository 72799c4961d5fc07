package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"metabolite-assistant-be/pkg/llm"
)

const chatPath = "/api/chat"

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

// NewOllamaProvider uses httpClient for every call; nil means http.DefaultClient.
func NewOllamaProvider(baseURL, modelName string, httpClient *http.Client) *OllamaProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    httpClient,
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *options  `json:"options,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	// 1. Process Options
	callOpts := &llm.Options{Temperature: 0.3}
	for _, opt := range opts {
		opt(callOpts)
	}

	// 2. Map generic messages; Ollama calls the model side "assistant"
	messages := make([]message, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = llm.RoleAssistant
		}
		messages[i] = message{Role: role, Content: msg.Content}
	}

	// 3. Prepare Payload
	model := o.ModelName
	if callOpts.Model != "" {
		model = callOpts.Model
	}
	payload := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: &options{
			Temperature: callOpts.Temperature,
			NumPredict:  callOpts.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// 4. Send Request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	// 5. Parse Response
	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return parsed.Message.Content, nil
}
