package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"metabolite-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func attach(hub *Hub, sessionId uuid.UUID, buffer int) *Client {
	client := &Client{Hub: hub, SessionId: sessionId, Send: make(chan []byte, buffer)}
	hub.Register(client)
	return client
}

func TestHub_SendReachesOnlyWatchers(t *testing.T) {
	hub := startHub(t)
	session := uuid.New()
	watcher := attach(hub, session, 4)
	other := attach(hub, uuid.New(), 4)
	require.Eventually(t, func() bool { return hub.Watchers(session) == 1 }, time.Second, 5*time.Millisecond)

	hub.Send(session, "session_event", map[string]string{"kind": "state_changed"})

	select {
	case frame := <-watcher.Send:
		var env struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(frame, &env))
		assert.Equal(t, "session_event", env.Type)
		assert.Equal(t, "state_changed", env.Data["kind"])
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}
	assert.Empty(t, other.Send)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	session := uuid.New()
	client := attach(hub, session, 1)
	require.Eventually(t, func() bool { return hub.Watchers(session) == 1 }, time.Second, 5*time.Millisecond)

	hub.Send(session, "session_event", 1)
	hub.Send(session, "session_event", 2)

	assert.Equal(t, 0, hub.Watchers(session))
	<-client.Send
	_, open := <-client.Send
	assert.False(t, open)

	// A late unregister of the same client is harmless.
	hub.Unregister(client)
}

func TestHub_CloseSession(t *testing.T) {
	hub := startHub(t)
	session := uuid.New()
	a := attach(hub, session, 1)
	b := attach(hub, session, 1)
	require.Eventually(t, func() bool { return hub.Watchers(session) == 2 }, time.Second, 5*time.Millisecond)

	hub.CloseSession(session)

	assert.Equal(t, 0, hub.Watchers(session))
	_, openA := <-a.Send
	_, openB := <-b.Send
	assert.False(t, openA)
	assert.False(t, openB)
}
