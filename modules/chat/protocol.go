package chat

import (
	"encoding/json"
	"errors"
	"time"

	domain "github.com/example/room-relay/domain/chat"
)

// Inbound event names.
const (
	EventSetIdentity = "set-identity"
	EventJoinRoom    = "join-room"
	EventPostMessage = "post-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Outbound event names.
const (
	EventConnected        = "connected"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventNewMessage       = "new-message"
	EventRoomUsersUpdated = "room-users-updated"
	EventUserTyping       = "user-typing"
	EventAck              = "ack"
	EventError            = "error"
)

// Inbound is a frame received from a client.
type Inbound struct {
	Event string          `json:"event"`
	Ack   *uint64         `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Event string  `json:"event"`
	Ack   *uint64 `json:"ack,omitempty"`
	Data  any     `json:"data,omitempty"`
}

// Ack is the payload of an acknowledgment frame.
type Ack struct {
	Success   bool        `json:"success"`
	UserID    string      `json:"userId,omitempty"`
	Room      *JoinResult `json:"room,omitempty"`
	MessageID string      `json:"messageId,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// JoinResult is returned to a connection that joined a room.
type JoinResult struct {
	ID       string           `json:"id"`
	Messages []domain.Message `json:"messages"`
	Users    []domain.Member  `json:"users"`
}

// PresenceNotice announces a user entering or leaving a room.
type PresenceNotice struct {
	Username  string    `json:"username"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingNotice relays a typing indicator.
type TypingNotice struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorNotice is the payload of an error frame.
type ErrorNotice struct {
	Error string `json:"error"`
}

// Payloads of inbound events.
type (
	SetIdentityPayload struct {
		Username *string `json:"username"`
	}

	PostMessagePayload struct {
		Text *string `json:"text"`
	}
)

// ConnectedNotice is sent once when a connection is established.
type ConnectedNotice struct {
	UserID string `json:"userId"`
}

// AckError maps an operation error to the text reported to clients.
func AckError(err error) string {
	switch {
	case errors.Is(err, ErrUsernameTooShort):
		return "Username too short"
	case errors.Is(err, ErrInvalidIdentity):
		return "Invalid username"
	case errors.Is(err, ErrIdentityRequired):
		return "Must set username first"
	case errors.Is(err, ErrNotReady):
		return "Not properly connected"
	case errors.Is(err, ErrInvalidMessage):
		return "Invalid message"
	case errors.Is(err, ErrInvalidRoom):
		return "Invalid room"
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded"
	default:
		return "Server error"
	}
}

// Encode marshals an outbound frame.
func Encode(event string, ack *uint64, data any) ([]byte, error) {
	return json.Marshal(Outbound{Event: event, Ack: ack, Data: data})
}
