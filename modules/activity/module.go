package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/room-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Request-reply services exposed by the activity module.
const (
	ServiceGetActivity     = "get-activity"
	ServiceGetRoomActivity = "get-room-activity"
)

// Module consumes chat domain events and keeps activity counters.
type Module struct {
	store  *Store
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		store:  NewStore(),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers registers handlers for chat events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessagePostedV1, m.handleMessagePosted, m,
	); err != nil {
		return fmt.Errorf("failed to register MessagePosted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"RoomCreated.v1", "MessagePosted.v1", "UserJoined.v1", "UserLeft.v1"})
	return nil
}

func (m *Module) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.store.RecordRoomCreated(event.RoomID, event.CreatedBy, event.Timestamp)
	m.logger.Info("Recorded room creation", "roomID", event.RoomID, "createdBy", event.CreatedBy)
	return nil
}

func (m *Module) handleMessagePosted(_ context.Context, event events.MessagePostedEvent, _ *mono.Msg) error {
	m.store.RecordMessage(event.RoomID, event.Length, event.Timestamp)
	m.logger.Debug("Recorded message", "roomID", event.RoomID, "messageID", event.MessageID)
	return nil
}

func (m *Module) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	m.store.RecordJoin(event.RoomID, event.Timestamp)
	m.logger.Debug("Recorded join", "roomID", event.RoomID, "userID", event.UserID)
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	m.store.RecordLeave(event.RoomID, event.Reason == events.LeaveReasonDisconnect, event.Timestamp)
	m.logger.Debug("Recorded leave", "roomID", event.RoomID, "userID", event.UserID, "reason", event.Reason)
	return nil
}

// RegisterServices registers this module's services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := container.RegisterRequestReplyService(ServiceGetActivity, m.handleGetActivity); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetActivity, err)
	}
	if err := container.RegisterRequestReplyService(ServiceGetRoomActivity, m.handleGetRoomActivity); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoomActivity, err)
	}

	m.logger.Info("Registered activity services",
		"services", []string{ServiceGetActivity, ServiceGetRoomActivity})
	return nil
}

// handleGetActivity handles get-activity service requests.
func (m *Module) handleGetActivity(_ context.Context, _ *mono.Msg) ([]byte, error) {
	return json.Marshal(m.store.GetSummary())
}

// handleGetRoomActivity handles get-room-activity service requests.
func (m *Module) handleGetRoomActivity(_ context.Context, msg *mono.Msg) ([]byte, error) {
	var req RoomActivityRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	room, found := m.store.GetRoom(req.RoomID)
	return json.Marshal(RoomActivityResponse{Found: found, Room: room})
}

// Start initializes the activity module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	summary := m.store.GetSummary()
	m.logger.Info("Activity module stopped",
		"messages", summary.TotalMessages,
		"rooms", len(summary.Rooms))
	return nil
}

// Store returns the activity store.
func (m *Module) Store() *Store {
	return m.store
}
