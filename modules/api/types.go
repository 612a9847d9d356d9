package api

import (
	"time"

	domain "github.com/example/room-relay/domain/chat"
)

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
	Count int                  `json:"count"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	RoomID   string           `json:"room"`
	Messages []domain.Message `json:"messages"`
}

// UsersResponse is the API response for room presence.
type UsersResponse struct {
	RoomID string          `json:"room"`
	Users  []domain.Member `json:"users"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Connections int       `json:"connections"`
}
