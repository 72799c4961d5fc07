package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches the connection to the session's stream and blocks until
// the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, sessionId uuid.UUID) {
	client := &Client{Hub: hub, Conn: c, SessionId: sessionId, Send: make(chan []byte, sendBufferSize)}
	if !hub.Register(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
