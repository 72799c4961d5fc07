package dto

import (
	"time"

	"metabolite-assistant-be/pkg/snapshot"

	"github.com/google/uuid"
)

type UIStateResponse struct {
	PanelOpen bool `json:"panel_open"`
	Typing    bool `json:"typing"`
}

// MessageResponse carries the raw text and its safe HTML rendering.
type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Html      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionResponse struct {
	Id        uuid.UUID         `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	State     UIStateResponse   `json:"state"`
	InFlight  bool              `json:"in_flight"`
	Messages  []MessageResponse `json:"messages"`
}

type CreateSessionRequest struct {
	State *snapshot.HostState `json:"state,omitempty"`
}

// SendMessageRequest submits free text. Blank text is accepted and ignored.
type SendMessageRequest struct {
	Message string              `json:"message" validate:"max=4000"`
	Async   bool                `json:"async"`
	State   *snapshot.HostState `json:"state,omitempty"`
}

type TaskRequest struct {
	Async bool                `json:"async"`
	State *snapshot.HostState `json:"state,omitempty"`
}

type AppendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type ExchangeResponse struct {
	Id          uuid.UUID `json:"id,omitempty"`
	SessionId   uuid.UUID `json:"session_id"`
	Task        string    `json:"task"`
	Prompt      string    `json:"prompt"`
	Instruction string    `json:"instruction,omitempty"`
	Reply       string    `json:"reply"`
	ReplyHtml   string    `json:"reply_html"`
	IsError     bool      `json:"is_error"`
	Sent        bool      `json:"sent"`
	DurationMs  int64     `json:"duration_ms"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ExchangeResultResponse answers a send or task. Exchange is nil when the
// text was blank or the request was accepted for background processing.
type ExchangeResultResponse struct {
	Accepted bool              `json:"accepted"`
	Exchange *ExchangeResponse `json:"exchange,omitempty"`
	Session  *SessionResponse  `json:"session"`
}

type ExchangeListResponse struct {
	Items  []ExchangeResponse `json:"items"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type ExchangeListQuery struct {
	Limit  int `query:"limit" validate:"min=0,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// SessionEventResponse is the websocket payload for one session change.
type SessionEventResponse struct {
	SessionId uuid.UUID        `json:"session_id"`
	Seq       uint64           `json:"seq"`
	Kind      string           `json:"kind"`
	Message   *MessageResponse `json:"message,omitempty"`
	State     UIStateResponse  `json:"state"`
}

type LogQuery struct {
	Level  string `query:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Module string `query:"module"`
	Limit  int    `query:"limit" validate:"min=0,max=500"`
	Offset int    `query:"offset" validate:"min=0"`
}

type LogEntryResponse struct {
	Id        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Module    string                 `json:"module,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
