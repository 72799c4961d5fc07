// Package chat drives one assistant conversation: the visible transcript, the
// panel and typing flags, and the single request that may be in flight.
package chat

import (
	"errors"
	"sync"
	"time"

	"metabolite-assistant-be/pkg/snapshot"

	"github.com/google/uuid"
)

// ErrExchangeInFlight is returned when an exchange is started while another
// one on the same session has not settled yet.
var ErrExchangeInFlight = errors.New("an assistant request is already in flight")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Id        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UIState is what the dashboard shows around the transcript.
type UIState struct {
	PanelOpen bool `json:"panel_open"`
	Typing    bool `json:"typing"`
}

// Session is owned by the caller and passed to every Orchestrator operation.
// Its state changes only through the Orchestrator.
type Session struct {
	Id        uuid.UUID
	CreatedAt time.Time

	host snapshot.Source

	mu         sync.Mutex
	transcript []Message
	ui         UIState
	// inFlight is the single request slot; typing mirrors it unless the
	// indicator was toggled by hand.
	inFlight bool
	seq      uint64
}

// NewSession starts a closed, idle session reading dashboard state from host.
func NewSession(host snapshot.Source) *Session {
	if host == nil {
		host = snapshot.Static{}
	}
	return &Session{
		Id:        uuid.New(),
		CreatedAt: time.Now(),
		host:      host,
	}
}

// Host returns the session's dashboard state source.
func (s *Session) Host() snapshot.Source {
	return s.host
}

// Transcript returns a copy of the visible messages in order.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) UIState() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

// InFlight reports whether an exchange is waiting for its reply.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
