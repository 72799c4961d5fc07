package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"metabolite-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	hubModule    = "Hub"
	redisChannel = "assistant_session_events"
)

// Envelope is the frame written to websocket clients.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	SessionId string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: SessionId -> connections watching it
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	// done is closed when Run returns.
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out; nil delivers locally only
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionId] = append(h.clients[client.SessionId], client)
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{"session_id": client.SessionId})

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
		}
	}
}

// Register and Unregister give up once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// removeLocked drops one client. Unknown clients are ignored, so a client
// can be unregistered more than once.
func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.SessionId]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionId] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionId]) == 0 {
		delete(h.clients, client.SessionId)
		h.logger.Info(hubModule, "Session has no more watchers", map[string]interface{}{"session_id": client.SessionId})
	}
}

// Send delivers one frame to every connection watching the session, on this
// instance and, through Redis, on the others.
func (h *Hub) Send(sessionId uuid.UUID, eventType string, data interface{}) {
	frame, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}

	if h.rdb == nil {
		h.deliver(sessionId, frame)
		return
	}

	// Every instance, this one included, delivers from the Redis subscription.
	payload, _ := json.Marshal(clusterMessage{SessionId: sessionId.String(), Message: frame})
	if err := h.rdb.Publish(context.Background(), redisChannel, payload).Err(); err != nil {
		h.logger.Warn(hubModule, "Redis publish failed, delivering locally", map[string]interface{}{"error": err.Error()})
		h.deliver(sessionId, frame)
	}
}

// CloseSession disconnects every local watcher of the session.
func (h *Hub) CloseSession(sessionId uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range append([]*Client(nil), h.clients[sessionId]...) {
		h.removeLocked(client)
	}
}

// Watchers reports how many local connections watch the session.
func (h *Hub) Watchers(sessionId uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionId])
}

func (h *Hub) deliver(sessionId uuid.UUID, frame []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients[sessionId] {
		select {
		case client.Send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn(hubModule, "Client send buffer full, dropping connection", map[string]interface{}{"session_id": sessionId})
		h.mu.Lock()
		h.removeLocked(client)
		h.mu.Unlock()
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn(hubModule, "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			sessionId, err := uuid.Parse(payload.SessionId)
			if err != nil {
				continue
			}
			h.deliver(sessionId, payload.Message)
		}
	}
}
