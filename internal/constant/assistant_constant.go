package constant

// Log modules
const (
	LogModuleAssistantService = "ASSISTANT_SERVICE"
	LogModuleEventBus         = "EVENT_BUS"
	LogModuleConsumer         = "CONSUMER"
	LogModuleExchangeEvents   = "EXCHANGE_EVENTS"
)

// SessionEventTopic is the in-process topic carrying chat.Event values.
const SessionEventTopic = "assistant.session.events"

// Websocket frame types
const (
	FrameSessionEvent = "session_event"
	FrameSessionEnded = "session_ended"
)

// NATS event types, published as assistant.<type>.
const (
	EventExchangeCompleted = "ASSISTANT_EXCHANGE_COMPLETED"
	EventExchangeFailed    = "ASSISTANT_EXCHANGE_FAILED"
	EventSessionCreated    = "ASSISTANT_SESSION_CREATED"
	EventSessionDeleted    = "ASSISTANT_SESSION_DELETED"
)

const (
	DefaultExchangePage = 20
	MaxExchangePage     = 100
)
