package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/room-relay/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Service names registered by the chat module.
const (
	ServiceListRooms   = "list-rooms"
	ServiceGetRoom     = "get-room"
	ServiceGetHistory  = "get-history"
	ServiceGetPresence = "get-presence"
)

// Request and response types of the chat services.
type (
	ListRoomsRequest  struct{}
	ListRoomsResponse struct {
		Rooms       []domain.RoomSummary `json:"rooms"`
		Connections int                  `json:"connections"`
	}

	GetRoomRequest struct {
		RoomID string `json:"room_id"`
	}
	GetRoomResponse struct {
		Found bool               `json:"found"`
		Room  domain.RoomSummary `json:"room"`
	}

	GetHistoryRequest struct {
		RoomID string `json:"room_id"`
		Limit  int    `json:"limit"`
	}
	GetHistoryResponse struct {
		Found    bool             `json:"found"`
		Messages []domain.Message `json:"messages"`
	}

	GetPresenceRequest struct {
		RoomID string `json:"room_id"`
	}
	GetPresenceResponse struct {
		Found bool            `json:"found"`
		Users []domain.Member `json:"users"`
	}
)

// ChatPort is the read-side interface other modules use to query rooms.
type ChatPort interface {
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, error)
	GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	GetPresence(ctx context.Context, roomID string) ([]domain.Member, error)
}

// chatAdapter implements ChatPort using the service container.
type chatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a ChatPort backed by the chat module's services.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat adapter requires non-nil ServiceContainer")
	}
	return &chatAdapter{container: container}
}

// ListRooms returns every room.
func (a *chatAdapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-rooms service call failed: %w", err)
	}
	return resp.Rooms, nil
}

// GetRoom returns one room or ErrRoomNotFound.
func (a *chatAdapter) GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.RoomSummary{}, fmt.Errorf("get-room service call failed: %w", err)
	}
	if !resp.Found {
		return domain.RoomSummary{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return resp.Room, nil
}

// GetHistory returns recent messages of a room or ErrRoomNotFound.
func (a *chatAdapter) GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := GetHistoryRequest{RoomID: roomID, Limit: limit}
	var resp GetHistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-history service call failed: %w", err)
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return resp.Messages, nil
}

// GetPresence returns the members of a room or ErrRoomNotFound.
func (a *chatAdapter) GetPresence(ctx context.Context, roomID string) ([]domain.Member, error) {
	req := GetPresenceRequest{RoomID: roomID}
	var resp GetPresenceResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetPresence,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-presence service call failed: %w", err)
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return resp.Users, nil
}
