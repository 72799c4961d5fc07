package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/llm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const basePrompt = `You are an assistant embedded in a metabolomics dashboard comparing normal and tumor samples.
Answer only from the dashboard context below. Lower p values are more significant; log2fc > 0 means higher in tumor.
Keep answers short. You may use bullet lists and backtick code spans; no other formatting.`

var taskPrompts = map[TaskKind]string{
	TaskChat:             "Answer the user's question about the data currently on screen.",
	TaskInterpretVolcano: "Interpret the volcano plot: which metabolites stand out, in which direction, and how strongly.",
	TaskMetaboliteDetail: "Explain the selected metabolite, its biological role and the difference between the sample groups.",
	TaskFilterSummary:    "Summarize the active filters and the most notable metabolites that pass them.",
}

// LLMClient answers requests with a chat model instead of the remote proxy.
// The task and grounding context become the system message.
type LLMClient struct {
	provider llm.LLMProvider
	logger   logger.ILogger
	options  []llm.Option
}

var _ Client = (*LLMClient)(nil)

func NewLLMClient(provider llm.LLMProvider, log logger.ILogger, options ...llm.Option) *LLMClient {
	return &LLMClient{provider: provider, logger: log, options: options}
}

func (c *LLMClient) Send(ctx context.Context, payload RequestPayload) Reply {
	ctx, span := tracer.Start(ctx, "assistant.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("assistant.task", string(payload.Task))),
	)
	defer span.End()

	messages, err := buildMessages(payload)
	if err == nil {
		var out string
		out, err = c.provider.Chat(ctx, messages, c.options...)
		if err == nil {
			if strings.TrimSpace(out) == "" {
				return Reply{Reply: NoResponseText}
			}
			return Reply{Reply: out}
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Error(logModule, "AI request failed", map[string]interface{}{
		"error": err.Error(),
		"task":  string(payload.Task),
	})
	return Unavailable()
}

func buildMessages(payload RequestPayload) ([]llm.Message, error) {
	grounding, err := json.MarshalIndent(payload.Context, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	task, ok := taskPrompts[payload.Task]
	if !ok {
		task = taskPrompts[TaskChat]
	}

	system := basePrompt + "\n\nTask: " + task + "\n\nDashboard context (JSON):\n" + string(grounding)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: payload.UserMessage},
	}, nil
}
