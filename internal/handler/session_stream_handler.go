package handler

import (
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/internal/pkg/serverutils"
	"metabolite-assistant-be/internal/service"
	internalWS "metabolite-assistant-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const streamModule = "SessionStreamHandler"

// SessionStreamHandler upgrades a request to a websocket that receives every
// change of one assistant session.
type SessionStreamHandler struct {
	service   service.IAssistantService
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewSessionStreamHandler(service service.IAssistantService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *SessionStreamHandler {
	return &SessionStreamHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs checks the token and the session, then hands the connection to the hub.
func (h *SessionStreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if h.jwtSecret != "" {
		if err := h.authorize(c); err != nil {
			h.logger.Warn(streamModule, "Rejected websocket handshake", map[string]interface{}{"error": err.Error()})
			return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}
	}

	sessionId, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}
	if !h.service.SessionExists(sessionId) {
		return serverutils.ErrSessionNotFound
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(streamModule, "Starting session stream", map[string]interface{}{"session_id": sessionId})
		internalWS.ServeWs(h.hub, conn, sessionId)
		h.logger.Info(streamModule, "Session stream ended", map[string]interface{}{"session_id": sessionId})
	})(c)
}

// authorize accepts the token from the query (browsers) or the header.
func (h *SessionStreamHandler) authorize(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return fiber.ErrUnauthorized
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fiber.ErrUnauthorized
	}
	return nil
}
