package websocket

import (
	"context"
	"encoding/json"
	"time"

	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/pkg/serverutils"
	"ai-chatbot-be/pkg/rag/response"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Frame types
const (
	FrameMessage = "message"
	FrameChunk   = "chunk"
	FrameDone    = "done"
	FrameError   = "error"
)

// Streamer produces a streamed reply for one user message.
type Streamer interface {
	StreamMessage(ctx context.Context, request *dto.SendMessageRequest) <-chan response.Chunk
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	SessionID string

	// Buffered channel of outbound messages.
	Send chan []byte

	streamer Streamer
}

// readPump reads frames until the connection fails. Each message frame is
// answered on its own goroutine; ctx is cancelled when the socket goes away.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WS", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			return
		}
		go c.handleFrame(ctx, raw)
	}
}

// handleFrame answers one inbound frame. Replies go to every socket on the
// session so other tabs see the conversation too.
func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var frame dto.SocketFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.reply(dto.SocketFrame{Type: FrameError, Error: "Invalid frame"})
		return
	}
	if frame.Type != FrameMessage {
		c.reply(dto.SocketFrame{Type: FrameError, Error: "Unsupported frame type " + frame.Type})
		return
	}

	req := &dto.SendMessageRequest{
		SessionId:    c.SessionID,
		Message:      frame.Message,
		UseRetrieval: frame.UseRetrieval,
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		c.reply(dto.SocketFrame{Type: FrameError, SessionId: c.SessionID, Error: err.Error()})
		return
	}

	for chunk := range c.streamer.StreamMessage(ctx, req) {
		switch {
		case chunk.Err != nil:
			c.broadcast(dto.SocketFrame{Type: FrameError, SessionId: c.SessionID, Error: response.FailureMessage(chunk.Err)})
		case chunk.Done:
			c.broadcast(dto.SocketFrame{Type: FrameDone, SessionId: c.SessionID})
		default:
			c.broadcast(dto.SocketFrame{Type: FrameChunk, SessionId: c.SessionID, Text: chunk.Text})
		}
	}
}

func (c *Client) broadcast(frame dto.SocketFrame) {
	data, _ := json.Marshal(frame)
	c.Hub.SendToSession(c.SessionID, data)
}

// reply answers only this socket.
func (c *Client) reply(frame dto.SocketFrame) {
	data, _ := json.Marshal(frame)
	c.Hub.sendTo(c, data)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
