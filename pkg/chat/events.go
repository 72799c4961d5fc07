package chat

import "github.com/google/uuid"

type EventKind string

const (
	EventMessageAppended   EventKind = "message_appended"
	EventStateChanged      EventKind = "state_changed"
	EventTranscriptCleared EventKind = "transcript_cleared"
)

// Event describes one change to a session, in the order it happened.
type Event struct {
	SessionId uuid.UUID `json:"session_id"`
	// Seq increases by one for every event of a session.
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Message   *Message  `json:"message,omitempty"`
	State     UIState   `json:"state"`
}

// Observer is notified while the session lock is held, so events arrive in
// order. Implementations must not block or call back into the Orchestrator.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Notify(Event) {}
