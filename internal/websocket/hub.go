package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-chatbot-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "chatbot:cluster_events"

type Hub struct {
	// Instance id, used to skip our own messages coming back from Redis
	id string

	// Registered clients map: SessionID -> every socket open on that session
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns; pending register/unregister calls give up
	done     chan struct{}
	doneOnce sync.Once

	mu sync.RWMutex

	// Redis connection for cross-instance delivery, may be nil
	rdb *redis.Client

	logger logger.ILogger
}

type clusterPayload struct {
	Origin          string          `json:"origin"`
	TargetSessionID string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		id:         uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("HUB", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Register adds client to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client and closes its Send channel. After the hub has
// stopped it returns immediately.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// shutdown closes every Send channel so write pumps exit.
func (h *Hub) shutdown() {
	h.mu.Lock()
	for sessionID, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()
	h.doneOnce.Do(func() { close(h.done) })
	h.logger.Info("HUB", "Hub stopped", nil)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
		h.logger.Info("HUB", "Session has no sockets left", map[string]interface{}{"session_id": client.SessionID})
	}
}

// Clients returns how many sockets are open on sessionID on this instance.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// SendToSession delivers data to every socket on sessionID, here and on
// other instances.
func (h *Hub) SendToSession(sessionID string, data []byte) {
	h.deliver(sessionID, data)

	if h.rdb != nil {
		jsonPayload, _ := json.Marshal(clusterPayload{
			Origin:          h.id,
			TargetSessionID: sessionID,
			Message:         data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, jsonPayload).Err(); err != nil {
			h.logger.Warn("HUB", "Failed to publish to cluster", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliver holds the read lock while sending so remove cannot close a Send
// channel underneath it.
func (h *Hub) deliver(sessionID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[sessionID] {
		h.trySend(client, data)
	}
}

// sendTo delivers data to one client if it is still registered.
func (h *Hub) sendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients[client.SessionID] {
		if c == client {
			h.trySend(client, data)
			return
		}
	}
}

func (h *Hub) trySend(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("HUB", "Client Send buffer full, dropping client", map[string]interface{}{"session_id": client.SessionID})
		go h.Unregister(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
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
			var payload clusterPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("HUB", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.id {
				continue
			}
			h.deliver(payload.TargetSessionID, payload.Message)
		}
	}
}
