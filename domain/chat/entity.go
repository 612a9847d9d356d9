package chat

import "time"

// Room represents a chat room. The ID doubles as the display name.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message represents a chat message as stored in room history and
// delivered to clients.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	UserID    string    `json:"userId"`
	RoomID    string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

// Member is one entry of a room's presence snapshot.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RoomSummary describes a room for listings.
type RoomSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Members   int       `json:"members"`
	Messages  int       `json:"messages"`
}
