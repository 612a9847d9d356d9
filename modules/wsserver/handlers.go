package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/chat"
)

// Session defaults.
const (
	DefaultMaxFrameSize = 16 * 1024
	DefaultPongWait     = 60 * time.Second
	DefaultWriteWait    = 10 * time.Second

	disconnectTimeout = 5 * time.Second
)

// Disconnect reasons reported to the relay.
const (
	ReasonClientClose    = "client disconnect"
	ReasonPingTimeout    = "ping timeout"
	ReasonServerShutdown = "server shutdown"
	ReasonTransportError = "transport error"
)

var errOutboxClosed = errors.New("outbox closed")

// Relay is the part of the chat relay a WebSocket session drives.
type Relay interface {
	Connect(ctx context.Context, connID string) error
	Dispatch(ctx context.Context, connID string, in chat.Inbound) error
	Disconnect(ctx context.Context, connID, reason string) error
}

// Outboxes registers per-connection outboxes.
type Outboxes interface {
	Register(clientID string) (*broadcast.Client, error)
	Unregister(clientID string)
	Send(clientIDs []string, frame []byte)
}

// Config configures WebSocket sessions.
type Config struct {
	MaxFrameSize int64
	PongWait     time.Duration
	WriteWait    time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize: DefaultMaxFrameSize,
		PongWait:     DefaultPongWait,
		WriteWait:    DefaultWriteWait,
	}
}

func (c Config) pingInterval() time.Duration {
	return c.PongWait * 9 / 10
}

// Handlers serves WebSocket sessions.
type Handlers struct {
	relay  Relay
	hub    Outboxes
	cfg    Config
	logger types.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(relay Relay, hub Outboxes, cfg Config, logger types.Logger) *Handlers {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultPongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	return &Handlers{
		relay:  relay,
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
}

// HandleWebSocket runs one client session until either side closes it.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	defer c.Close()

	client, err := h.hub.Register(connID)
	if err != nil {
		h.logger.Error("Failed to register outbox", "connID", connID, "error", err)
		return
	}

	if err := h.relay.Connect(context.Background(), connID); err != nil {
		h.logger.Error("Failed to connect session", "connID", connID, "error", err)
		h.hub.Unregister(connID)
		return
	}

	h.logger.Info("WebSocket connected", "connID", connID, "remote", c.RemoteAddr().String())

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return h.readPump(ctx, c, connID)
	})
	g.Go(func() error {
		return h.writePump(ctx, c, client)
	})
	reason := disconnectReason(g.Wait())

	dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := h.relay.Disconnect(dctx, connID, reason); err != nil {
		h.logger.Warn("Failed to disconnect session", "connID", connID, "error", err)
	}
	h.hub.Unregister(connID)

	h.logger.Info("WebSocket disconnected", "connID", connID, "reason", reason)
}

// readPump decodes inbound frames and hands them to the relay. It always
// returns a non-nil error describing why the session ended.
func (h *Handlers) readPump(ctx context.Context, c *websocket.Conn, connID string) error {
	c.SetReadLimit(h.cfg.MaxFrameSize)
	_ = c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", "connID", connID, "error", err)
			}
			return err
		}
		_ = c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		var in chat.Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Event == "" {
			h.sendError(connID, "Invalid message format")
			continue
		}

		if err := h.relay.Dispatch(ctx, connID, in); err != nil {
			return err
		}
	}
}

// writePump drains the outbox to the socket and keeps the connection alive
// with pings. Closing the socket on exit unblocks readPump.
func (h *Handlers) writePump(ctx context.Context, c *websocket.Conn, client *broadcast.Client) error {
	ticker := time.NewTicker(h.cfg.pingInterval())
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-client.Outbox():
			if !ok {
				deadline := time.Now().Add(h.cfg.WriteWait)
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ReasonServerShutdown), deadline)
				return errOutboxClosed
			}
			_ = c.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteWait)); err != nil {
				return err
			}
		}
	}
}

func (h *Handlers) sendError(connID, message string) {
	frame, err := chat.Encode(chat.EventError, nil, chat.ErrorNotice{Error: message})
	if err != nil {
		h.logger.Error("Failed to encode error frame", "error", err)
		return
	}
	h.hub.Send([]string{connID}, frame)
}

func disconnectReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, errOutboxClosed), errors.Is(err, chat.ErrRelayClosed):
		return ReasonServerShutdown
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return ReasonClientClose
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonPingTimeout
	default:
		return ReasonTransportError
	}
}
