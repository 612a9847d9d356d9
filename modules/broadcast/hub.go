package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
)

// DefaultOutboxSize is the number of frames buffered per client.
const DefaultOutboxSize = 256

// ErrClientExists is returned when a client id is registered twice.
var ErrClientExists = errors.New("client already registered")

// Client is the outbox of one connected WebSocket client. Frames are
// drained by the connection's write pump.
type Client struct {
	ID   string
	send chan []byte
}

// Outbox returns the channel of frames to write. It is closed when the
// client is unregistered or the hub shuts down.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// Hub tracks client outboxes and delivers frames without blocking.
type Hub struct {
	clients    map[string]*Client
	outboxSize int
	dropped    atomic.Uint64
	logger     types.Logger
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(outboxSize int, logger types.Logger) *Hub {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Hub{
		clients:    make(map[string]*Client),
		outboxSize: outboxSize,
		logger:     logger,
	}
}

// Register creates the outbox for a client.
func (h *Hub) Register(clientID string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[clientID]; exists {
		return nil, ErrClientExists
	}
	client := &Client{
		ID:   clientID,
		send: make(chan []byte, h.outboxSize),
	}
	h.clients[clientID] = client
	h.logger.Debug("Client registered", "clientID", clientID)
	return client, nil
}

// Unregister removes a client and closes its outbox.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		close(client.send)
		h.logger.Debug("Client unregistered", "clientID", clientID)
	}
}

// Send queues frame for each listed client. A client whose outbox is full
// misses the frame; unknown ids are skipped.
func (h *Hub) Send(clientIDs []string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range clientIDs {
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case client.send <- frame:
		default:
			h.dropped.Add(1)
			h.logger.Warn("Outbox full, dropping frame", "clientID", id)
		}
	}
}

// CloseAll closes every outbox, which ends all write pumps.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames dropped because an outbox was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
