package mapper

import (
	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/pkg/chat"
	"metabolite-assistant-be/pkg/render"
)

// AssistantMapper builds API responses from live sessions. Every text that
// leaves the service is paired with its escaped HTML rendering.
type AssistantMapper struct{}

func NewAssistantMapper() *AssistantMapper {
	return &AssistantMapper{}
}

func (m *AssistantMapper) MessageToResponse(msg chat.Message) dto.MessageResponse {
	return dto.MessageResponse{
		Id:        msg.Id,
		Role:      string(msg.Role),
		Text:      msg.Text,
		Html:      render.Markup(msg.Text),
		CreatedAt: msg.CreatedAt,
	}
}

func (m *AssistantMapper) UIStateToResponse(ui chat.UIState) dto.UIStateResponse {
	return dto.UIStateResponse{PanelOpen: ui.PanelOpen, Typing: ui.Typing}
}

func (m *AssistantMapper) SessionToResponse(s *chat.Session) *dto.SessionResponse {
	transcript := s.Transcript()
	messages := make([]dto.MessageResponse, 0, len(transcript))
	for _, msg := range transcript {
		messages = append(messages, m.MessageToResponse(msg))
	}

	return &dto.SessionResponse{
		Id:        s.Id,
		CreatedAt: s.CreatedAt,
		State:     m.UIStateToResponse(s.UIState()),
		InFlight:  s.InFlight(),
		Messages:  messages,
	}
}

func (m *AssistantMapper) ExchangeToResponse(e *entity.Exchange) dto.ExchangeResponse {
	return dto.ExchangeResponse{
		Id:          e.Id,
		SessionId:   e.SessionId,
		Task:        e.Task,
		Prompt:      e.Prompt,
		Instruction: e.Instruction,
		Reply:       e.Reply,
		ReplyHtml:   render.Markup(e.Reply),
		IsError:     e.IsError,
		Sent:        e.Sent,
		DurationMs:  e.Duration.Milliseconds(),
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
	}
}

func (m *AssistantMapper) EventToResponse(e chat.Event) dto.SessionEventResponse {
	res := dto.SessionEventResponse{
		SessionId: e.SessionId,
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		State:     m.UIStateToResponse(e.State),
	}
	if e.Message != nil {
		msg := m.MessageToResponse(*e.Message)
		res.Message = &msg
	}
	return res
}
