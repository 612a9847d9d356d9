package activity

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/example/room-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func TestStore_RecordsPerRoom(t *testing.T) {
	store := NewStore()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	store.RecordRoomCreated("general", "alice", base)
	store.RecordJoin("general", base)
	store.RecordMessage("general", 5, base.Add(time.Second))
	store.RecordMessage("general", 7, base.Add(2*time.Second))
	store.RecordLeave("general", true, base.Add(3*time.Second))

	room, exists := store.GetRoom("general")
	if !exists {
		t.Fatal("Expected room activity to exist")
	}
	if room.Messages != 2 {
		t.Errorf("Expected 2 messages, got %d", room.Messages)
	}
	if room.Characters != 12 {
		t.Errorf("Expected 12 characters, got %d", room.Characters)
	}
	if room.Joins != 1 || room.Leaves != 1 {
		t.Errorf("Expected 1 join and 1 leave, got %d / %d", room.Joins, room.Leaves)
	}
	if room.CreatedBy != "alice" {
		t.Errorf("Expected CreatedBy 'alice', got %q", room.CreatedBy)
	}
	if !room.LastActivity.Equal(base.Add(3 * time.Second)) {
		t.Errorf("Unexpected LastActivity %v", room.LastActivity)
	}

	if _, exists := store.GetRoom("missing"); exists {
		t.Error("Expected missing room to not exist")
	}
}

func TestStore_SummaryOrdering(t *testing.T) {
	store := NewStore()
	base := time.Now()

	store.RecordMessage("quiet", 1, base)
	store.RecordMessage("busy", 1, base.Add(time.Minute))
	store.RecordLeave("busy", false, base.Add(2*time.Minute))

	summary := store.GetSummary()
	if summary.TotalMessages != 2 {
		t.Errorf("Expected 2 total messages, got %d", summary.TotalMessages)
	}
	if summary.TotalLeaves != 1 || summary.Disconnects != 0 {
		t.Errorf("Expected 1 leave and 0 disconnects, got %d / %d", summary.TotalLeaves, summary.Disconnects)
	}
	if len(summary.Rooms) != 2 || summary.Rooms[0].RoomID != "busy" {
		t.Errorf("Expected most recently active room first, got %+v", summary.Rooms)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.RecordMessage("general", 3, time.Now())
				_ = store.GetSummary()
			}
		}()
	}
	wg.Wait()

	if got := store.GetSummary().TotalMessages; got != 1000 {
		t.Errorf("Expected 1000 messages, got %d", got)
	}
}

func TestModule_EventHandlers(t *testing.T) {
	m := NewModule(&mockLogger{})
	ctx := context.Background()
	now := time.Now()

	if err := m.handleRoomCreated(ctx, events.RoomCreatedEvent{RoomID: "general", CreatedBy: "alice", Timestamp: now}, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.handleUserJoined(ctx, events.UserJoinedEvent{RoomID: "general", UserID: "c1", Timestamp: now}, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.handleMessagePosted(ctx, events.MessagePostedEvent{RoomID: "general", Length: 2, Timestamp: now}, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.handleUserLeft(ctx, events.UserLeftEvent{RoomID: "general", Reason: events.LeaveReasonDisconnect, Timestamp: now}, nil); err != nil {
		t.Fatal(err)
	}

	data, err := m.handleGetActivity(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.RoomsCreated != 1 || summary.TotalJoins != 1 || summary.TotalMessages != 1 || summary.Disconnects != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestModule_GetRoomActivity(t *testing.T) {
	m := NewModule(&mockLogger{})
	ctx := context.Background()
	m.store.RecordMessage("general", 4, time.Now())

	tests := []struct {
		roomID    string
		wantFound bool
		wantMsgs  int64
	}{
		{"general", true, 1},
		{"missing", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.roomID, func(t *testing.T) {
			req, err := json.Marshal(RoomActivityRequest{RoomID: tt.roomID})
			if err != nil {
				t.Fatal(err)
			}
			data, err := m.handleGetRoomActivity(ctx, &mono.Msg{Data: req})
			if err != nil {
				t.Fatal(err)
			}
			var resp RoomActivityResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Found != tt.wantFound {
				t.Errorf("Expected found=%v, got %v", tt.wantFound, resp.Found)
			}
			if resp.Room.Messages != tt.wantMsgs {
				t.Errorf("Expected %d messages, got %d", tt.wantMsgs, resp.Room.Messages)
			}
		})
	}

	if _, err := m.handleGetRoomActivity(ctx, &mono.Msg{Data: []byte("not json")}); err == nil {
		t.Error("Expected error for malformed request")
	}
}
