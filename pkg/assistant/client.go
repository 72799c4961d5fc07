package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"metabolite-assistant-be/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	logModule       = "ASSISTANT"
	maxResponseSize = 1 << 20
)

var tracer = otel.Tracer("metabolite-assistant-be/pkg/assistant")

// Client sends one request and always yields a Reply.
type Client interface {
	Send(ctx context.Context, payload RequestPayload) Reply
}

// StatusError is returned internally for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// HTTPClient posts the payload as JSON to a fixed endpoint. No authentication
// header is sent; the endpoint is expected to be a proxy that holds the keys.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.ILogger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient uses httpClient for every call; nil means http.DefaultClient,
// which has no timeout.
func NewHTTPClient(endpoint string, httpClient *http.Client, log logger.ILogger) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{endpoint: endpoint, httpClient: httpClient, logger: log}
}

func (c *HTTPClient) Send(ctx context.Context, payload RequestPayload) Reply {
	ctx, span := tracer.Start(ctx, "assistant.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("assistant.task", string(payload.Task))),
	)
	defer span.End()

	reply, err := c.post(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error(logModule, "AI request failed", map[string]interface{}{
			"error":    err.Error(),
			"task":     string(payload.Task),
			"endpoint": c.endpoint,
		})
		return Unavailable()
	}
	return reply
}

func (c *HTTPClient) post(ctx context.Context, payload RequestPayload) (Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, &StatusError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}
	return parseReply(raw)
}

// parseReply accepts a JSON object and picks "reply", then "text". Fields
// that are missing, empty or not strings fall through to NoResponseText.
func parseReply(raw []byte) (Reply, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return Reply{}, fmt.Errorf("decode response: %w", err)
	}
	if body == nil {
		return Reply{}, fmt.Errorf("decode response: not a JSON object")
	}
	for _, key := range []string{"reply", "text"} {
		if s, ok := body[key].(string); ok && s != "" {
			return Reply{Reply: s}, nil
		}
	}
	return Reply{Reply: NoResponseText}, nil
}
