package websocket

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handler exposes the chat socket at /chat/v1/ws?session_id=...
type Handler struct {
	hub              *Hub
	streamer         Streamer
	defaultSessionID string
}

func NewHandler(hub *Hub, streamer Streamer, defaultSessionID string) *Handler {
	return &Handler{hub: hub, streamer: streamer, defaultSessionID: defaultSessionID}
}

func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Use("/chat/v1/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/chat/v1/ws", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Query("session_id")
		if sessionID == "" {
			sessionID = h.defaultSessionID
		}
		ServeWs(h.hub, h.streamer, c, sessionID)
	}))
}

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, streamer Streamer, c *websocket.Conn, sessionID string) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256), streamer: streamer}
	if !hub.Register(client) {
		c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump()
	client.readPump(ctx) // Run readPump in current goroutine (handler)
}
