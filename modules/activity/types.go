package activity

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNoActivity is returned when no event has been recorded for a room.
var ErrNoActivity = errors.New("no activity recorded")

// RoomActivity tracks counters for a single room.
type RoomActivity struct {
	RoomID       string    `json:"room_id"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	Messages     int64     `json:"messages"`
	Characters   int64     `json:"characters"`
	Joins        int64     `json:"joins"`
	Leaves       int64     `json:"leaves"`
	LastActivity time.Time `json:"last_activity,omitempty"`
}

// Summary is a snapshot of relay activity.
type Summary struct {
	RoomsCreated  int64          `json:"rooms_created"`
	TotalMessages int64          `json:"total_messages"`
	TotalJoins    int64          `json:"total_joins"`
	TotalLeaves   int64          `json:"total_leaves"`
	Disconnects   int64          `json:"disconnects"`
	Rooms         []RoomActivity `json:"rooms"`
}

// RoomActivityRequest asks for the counters of one room.
type RoomActivityRequest struct {
	RoomID string `json:"room_id"`
}

// RoomActivityResponse carries the counters of one room.
type RoomActivityResponse struct {
	Found bool         `json:"found"`
	Room  RoomActivity `json:"room"`
}

// Store provides thread-safe storage for activity counters.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*RoomActivity
	roomsCreated int64
	messages     int64
	joins        int64
	leaves       int64
	disconnects  int64
}

// NewStore creates a new activity store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*RoomActivity),
	}
}

func (s *Store) room(roomID string) *RoomActivity {
	r, ok := s.rooms[roomID]
	if !ok {
		r = &RoomActivity{RoomID: roomID}
		s.rooms[roomID] = r
	}
	return r
}

func touch(r *RoomActivity, at time.Time) {
	if at.After(r.LastActivity) {
		r.LastActivity = at
	}
}

// RecordRoomCreated records the creation of a room.
func (s *Store) RecordRoomCreated(roomID, createdBy string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.CreatedBy = createdBy
	r.CreatedAt = at
	touch(r, at)
	s.roomsCreated++
}

// RecordMessage records a posted message of the given length.
func (s *Store) RecordMessage(roomID string, length int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.Messages++
	r.Characters += int64(length)
	touch(r, at)
	s.messages++
}

// RecordJoin records a connection joining a room.
func (s *Store) RecordJoin(roomID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.Joins++
	touch(r, at)
	s.joins++
}

// RecordLeave records a connection leaving a room.
func (s *Store) RecordLeave(roomID string, disconnect bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.Leaves++
	touch(r, at)
	s.leaves++
	if disconnect {
		s.disconnects++
	}
}

// GetRoom returns the counters of one room.
func (s *Store) GetRoom(roomID string) (RoomActivity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return RoomActivity{}, false
	}
	return *r, true
}

// GetSummary returns a snapshot with rooms ordered by most recent activity.
func (s *Store) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]RoomActivity, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, *r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActivity.Equal(rooms[j].LastActivity) {
			return rooms[i].RoomID < rooms[j].RoomID
		}
		return rooms[i].LastActivity.After(rooms[j].LastActivity)
	})

	return Summary{
		RoomsCreated:  s.roomsCreated,
		TotalMessages: s.messages,
		TotalJoins:    s.joins,
		TotalLeaves:   s.leaves,
		Disconnects:   s.disconnects,
		Rooms:         rooms,
	}
}
