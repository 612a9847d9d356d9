package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/example/room-relay/domain/chat"
)

// Validation and retention limits.
const (
	MinUsernameLength  = 2
	MaxUsernameLength  = 30
	MaxRoomIDLength    = 100
	MaxMessageLength   = 500
	DefaultMaxHistory  = 1000
	DefaultJoinHistory = 50
)

// Errors returned by relay operations. Each is turned into a failure
// acknowledgment for the originating connection.
var (
	ErrIdentityRequired  = errors.New("must set username first")
	ErrInvalidIdentity   = errors.New("invalid username")
	ErrUsernameTooShort  = fmt.Errorf("%w: too short", ErrInvalidIdentity)
	ErrNotReady          = errors.New("not properly connected")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrInvalidRoom       = errors.New("invalid room")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrRoomNotFound      = errors.New("room not found")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrRelayClosed       = errors.New("relay closed")
	ErrInternal          = errors.New("server error")
)

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// SanitizeUsername trims and truncates a requested display name.
func SanitizeUsername(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", ErrInvalidIdentity
	}
	name := truncate(strings.TrimSpace(raw), MaxUsernameLength)
	if utf8.RuneCountInString(name) < MinUsernameLength {
		return "", ErrUsernameTooShort
	}
	return name, nil
}

// SanitizeMessage trims and truncates message text. An empty result means
// the message must be rejected.
func SanitizeMessage(raw string) string {
	return truncate(strings.TrimSpace(raw), MaxMessageLength)
}

// NormalizeRoomID validates a requested room id.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" || !utf8.ValidString(id) || utf8.RuneCountInString(id) > MaxRoomIDLength {
		return "", ErrInvalidRoom
	}
	return id, nil
}

type roomState struct {
	room     domain.Room
	messages []domain.Message
	members  []string // connection ids in join order
}

// RoomStore holds rooms, their bounded history and their membership.
// It is owned by the relay worker and is not safe for concurrent use.
type RoomStore struct {
	rooms      map[string]*roomState
	maxHistory int
}

// NewRoomStore creates a new room store.
func NewRoomStore(maxHistory int) *RoomStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &RoomStore{
		rooms:      make(map[string]*roomState),
		maxHistory: maxHistory,
	}
}

// GetOrCreate returns the room with the given id, creating it when absent.
// Rooms are never removed.
func (s *RoomStore) GetOrCreate(id string, now time.Time) (domain.Room, bool) {
	if st, ok := s.rooms[id]; ok {
		return st.room, false
	}
	st := &roomState{
		room: domain.Room{
			ID:        id,
			Name:      id,
			CreatedAt: now,
		},
		messages: make([]domain.Message, 0),
	}
	s.rooms[id] = st
	return st.room, true
}

// GetRoom returns a summary of a room.
func (s *RoomStore) GetRoom(id string) (domain.RoomSummary, bool) {
	st, ok := s.rooms[id]
	if !ok {
		return domain.RoomSummary{}, false
	}
	return st.summary(), true
}

// ListRooms returns all rooms ordered by id.
func (s *RoomStore) ListRooms() []domain.RoomSummary {
	result := make([]domain.RoomSummary, 0, len(s.rooms))
	for _, st := range s.rooms {
		result = append(result, st.summary())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (st *roomState) summary() domain.RoomSummary {
	return domain.RoomSummary{
		ID:        st.room.ID,
		Name:      st.room.Name,
		CreatedAt: st.room.CreatedAt,
		Members:   len(st.members),
		Messages:  len(st.messages),
	}
}

// AddMember adds a connection to a room. Adding an existing member is a no-op.
func (s *RoomStore) AddMember(roomID, connID string) bool {
	st, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	for _, id := range st.members {
		if id == connID {
			return true
		}
	}
	st.members = append(st.members, connID)
	return true
}

// RemoveMember removes a connection from a room.
func (s *RoomStore) RemoveMember(roomID, connID string) {
	st, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for i, id := range st.members {
		if id == connID {
			st.members = append(st.members[:i], st.members[i+1:]...)
			return
		}
	}
}

// Members returns the connection ids of a room in join order.
func (s *RoomStore) Members(roomID string) []string {
	st, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	result := make([]string, len(st.members))
	copy(result, st.members)
	return result
}

// AddMessage appends a message to its room's history, evicting the oldest
// entries beyond the history bound.
func (s *RoomStore) AddMessage(msg domain.Message) bool {
	st, ok := s.rooms[msg.RoomID]
	if !ok {
		return false
	}

	st.messages = append(st.messages, msg)
	if len(st.messages) > s.maxHistory {
		st.messages = st.messages[len(st.messages)-s.maxHistory:]
	}
	return true
}

// GetHistory returns up to limit of the most recent messages of a room,
// oldest first. A non-positive limit returns the whole history.
func (s *RoomStore) GetHistory(roomID string, limit int) []domain.Message {
	st, ok := s.rooms[roomID]
	if !ok {
		return nil
	}

	messages := st.messages
	if limit <= 0 || limit > len(messages) {
		limit = len(messages)
	}

	start := len(messages) - limit
	result := make([]domain.Message, limit)
	copy(result, messages[start:])
	return result
}
