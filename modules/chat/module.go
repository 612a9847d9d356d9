package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	domain "github.com/example/room-relay/domain/chat"
	"github.com/example/room-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module runs the relay worker and exposes its read side as services.
type Module struct {
	relay     *Relay
	publisher *busPublisher
	eventBus  mono.EventBus
	logger    types.Logger

	cancel context.CancelFunc
	mu     sync.Mutex
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module. Frames are delivered through out.
func NewModule(cfg Config, out Broadcaster, logger types.Logger) (*Module, error) {
	m := &Module{logger: logger}

	relay, err := NewRelay(cfg, out, m, logger)
	if err != nil {
		return nil, err
	}
	m.relay = relay
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessagePostedV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
	}
}

// Publish hands a domain event to the bus publisher once the module runs.
func (m *Module) Publish(event any) {
	m.mu.Lock()
	p := m.publisher
	m.mu.Unlock()
	if p != nil {
		p.Publish(event)
	}
}

// RegisterServices registers the read-side request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetHistory, json.Unmarshal, json.Marshal, m.getHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetPresence, json.Unmarshal, json.Marshal, m.getPresence,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetPresence, err)
	}

	m.logger.Info("Registered chat services",
		"services", []string{ServiceListRooms, ServiceGetRoom, ServiceGetHistory, ServiceGetPresence})
	return nil
}

func (m *Module) listRooms(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.relay.ListRooms(ctx)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: rooms, Connections: m.relay.ConnectionCount()}, nil
}

func (m *Module) getRoom(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	room, err := m.relay.RoomInfo(ctx, req.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		return GetRoomResponse{Found: false}, nil
	}
	if err != nil {
		return GetRoomResponse{}, err
	}
	return GetRoomResponse{Found: true, Room: room}, nil
}

func (m *Module) getHistory(ctx context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	messages, err := m.relay.History(ctx, req.RoomID, req.Limit)
	if errors.Is(err, ErrRoomNotFound) {
		return GetHistoryResponse{Found: false}, nil
	}
	if err != nil {
		return GetHistoryResponse{}, err
	}
	return GetHistoryResponse{Found: true, Messages: messages}, nil
}

func (m *Module) getPresence(ctx context.Context, req GetPresenceRequest, _ *mono.Msg) (GetPresenceResponse, error) {
	users, err := m.relay.Presence(ctx, req.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		return GetPresenceResponse{Found: false}, nil
	}
	if err != nil {
		return GetPresenceResponse{}, err
	}
	if users == nil {
		users = []domain.Member{}
	}
	return GetPresenceResponse{Found: true, Users: users}, nil
}

// Start launches the relay worker.
func (m *Module) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return nil
	}
	if m.eventBus != nil {
		m.publisher = newBusPublisher(m.eventBus, m.logger)
	} else {
		m.logger.Warn("EventBus not set, domain events will not be published")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.relay.Run(ctx)

	m.logger.Info("Chat module started",
		"maxHistory", m.relay.cfg.MaxHistory,
		"joinHistory", m.relay.cfg.JoinHistory)
	return nil
}

// Stop stops the relay worker and flushes pending domain events.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	publisher := m.publisher
	m.publisher = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-m.relay.Done():
	case <-ctx.Done():
		return fmt.Errorf("chat module stop: %w", ctx.Err())
	}

	if publisher != nil {
		publisher.Close()
	}
	m.logger.Info("Chat module stopped")
	return nil
}

// Health reports whether the relay worker is running.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	select {
	case <-m.relay.Done():
		return mono.HealthStatus{
			Healthy: false,
			Message: "relay stopped",
		}
	default:
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.relay.ConnectionCount(),
		},
	}
}

// Relay returns the relay used by transport modules.
func (m *Module) Relay() *Relay {
	return m.relay
}
