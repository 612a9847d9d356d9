package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/example/room-relay/domain/chat"
	"github.com/example/room-relay/modules/activity"
	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/chat"
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

type mockChatPort struct {
	rooms    map[string]domain.RoomSummary
	messages map[string][]domain.Message
	users    map[string][]domain.Member
	err      error
	limit    int
}

func (p *mockChatPort) ListRooms(_ context.Context) ([]domain.RoomSummary, error) {
	if p.err != nil {
		return nil, p.err
	}
	rooms := make([]domain.RoomSummary, 0, len(p.rooms))
	for _, r := range p.rooms {
		rooms = append(rooms, r)
	}
	return rooms, nil
}

func (p *mockChatPort) GetRoom(_ context.Context, roomID string) (domain.RoomSummary, error) {
	room, ok := p.rooms[roomID]
	if !ok {
		return domain.RoomSummary{}, fmt.Errorf("%w: %s", chat.ErrRoomNotFound, roomID)
	}
	return room, nil
}

func (p *mockChatPort) GetHistory(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	p.limit = limit
	if _, ok := p.rooms[roomID]; !ok {
		return nil, fmt.Errorf("%w: %s", chat.ErrRoomNotFound, roomID)
	}
	return p.messages[roomID], nil
}

func (p *mockChatPort) GetPresence(_ context.Context, roomID string) ([]domain.Member, error) {
	if _, ok := p.rooms[roomID]; !ok {
		return nil, fmt.Errorf("%w: %s", chat.ErrRoomNotFound, roomID)
	}
	return p.users[roomID], nil
}

type mockActivityPort struct {
	summary activity.Summary
}

func (p *mockActivityPort) GetSummary(_ context.Context) (activity.Summary, error) {
	return p.summary, nil
}

func (p *mockActivityPort) GetRoomActivity(_ context.Context, roomID string) (activity.RoomActivity, error) {
	for _, r := range p.summary.Rooms {
		if r.RoomID == roomID {
			return r, nil
		}
	}
	return activity.RoomActivity{}, fmt.Errorf("%w: %s", activity.ErrNoActivity, roomID)
}

type stubRelay struct {
	connections int
}

func (r *stubRelay) Connect(_ context.Context, _ string) error { return nil }
func (r *stubRelay) Dispatch(_ context.Context, _ string, _ chat.Inbound) error {
	return nil
}
func (r *stubRelay) Disconnect(_ context.Context, _, _ string) error { return nil }
func (r *stubRelay) ConnectionCount() int                            { return r.connections }

func newTestApp(t *testing.T, port *mockChatPort) *fiber.App {
	t.Helper()
	logger := &mockLogger{}
	m := NewModule(Config{}, logger)
	m.chatAdapter = port
	m.activityAdapter = &mockActivityPort{summary: activity.Summary{
		TotalMessages: 3,
		Rooms:         []activity.RoomActivity{{RoomID: "general", Messages: 3, Joins: 1}},
	}}
	m.SetHub(broadcast.NewHub(8, logger))
	m.SetRelay(&stubRelay{connections: 2})
	return m.newApp()
}

func samplePort() *mockChatPort {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &mockChatPort{
		rooms: map[string]domain.RoomSummary{
			"general": {ID: "general", Name: "general", CreatedAt: now, Members: 1, Messages: 1},
		},
		messages: map[string][]domain.Message{
			"general": {{ID: "msg_1_abcdefghi", Text: "hi", Username: "alice", UserID: "c1", RoomID: "general", Timestamp: now}},
		},
		users: map[string][]domain.Member{
			"general": {{ID: "c1", Username: "alice"}},
		},
	}
}

func get(t *testing.T, app *fiber.App, path string, out any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, samplePort())

	var health HealthResponse
	status := get(t, app, "/health", &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Connections)
	assert.False(t, health.Timestamp.IsZero())
}

func TestRooms(t *testing.T) {
	app := newTestApp(t, samplePort())

	var list RoomListResponse
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/rooms", &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "general", list.Rooms[0].ID)

	var room domain.RoomSummary
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/rooms/general", &room))
	assert.Equal(t, 1, room.Messages)

	var users UsersResponse
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/rooms/general/users", &users))
	assert.Equal(t, []domain.Member{{ID: "c1", Username: "alice"}}, users.Users)
}

func TestRooms_NotFound(t *testing.T) {
	app := newTestApp(t, samplePort())

	for _, path := range []string{
		"/api/v1/rooms/missing",
		"/api/v1/rooms/missing/history",
		"/api/v1/rooms/missing/users",
	} {
		var errResp ErrorResponse
		assert.Equal(t, http.StatusNotFound, get(t, app, path, &errResp), path)
		assert.Equal(t, "not_found", errResp.Error)
	}
}

func TestRooms_ListFailure(t *testing.T) {
	port := samplePort()
	port.err = errors.New("bus down")
	app := newTestApp(t, port)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusInternalServerError, get(t, app, "/api/v1/rooms", &errResp))
	assert.Equal(t, "server_error", errResp.Error)
}

func TestHistory_Limit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		status    int
		wantLimit int
	}{
		{name: "default", query: "", status: http.StatusOK, wantLimit: 0},
		{name: "explicit", query: "?limit=10", status: http.StatusOK, wantLimit: 10},
		{name: "zero", query: "?limit=0", status: http.StatusBadRequest},
		{name: "non-numeric", query: "?limit=ten", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := samplePort()
			port.limit = -1
			app := newTestApp(t, port)

			var history HistoryResponse
			var out any = &history
			if tt.status != http.StatusOK {
				out = &ErrorResponse{}
			}
			require.Equal(t, tt.status, get(t, app, "/api/v1/rooms/general/history"+tt.query, out))
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.wantLimit, port.limit)
				assert.Len(t, history.Messages, 1)
				assert.Equal(t, "general", history.RoomID)
			}
		})
	}
}

func TestActivity(t *testing.T) {
	app := newTestApp(t, samplePort())

	var summary activity.Summary
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/activity", &summary))
	assert.Equal(t, int64(3), summary.TotalMessages)
}

func TestRoomActivity(t *testing.T) {
	app := newTestApp(t, samplePort())

	var room activity.RoomActivity
	require.Equal(t, http.StatusOK, get(t, app, "/api/v1/rooms/general/activity", &room))
	assert.Equal(t, int64(3), room.Messages)
	assert.Equal(t, int64(1), room.Joins)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, get(t, app, "/api/v1/rooms/quiet/activity", &errResp))
	assert.Equal(t, "not_found", errResp.Error)
}

func TestWebSocketRoute_RequiresUpgrade(t *testing.T) {
	app := newTestApp(t, samplePort())

	var errResp ErrorResponse
	assert.Equal(t, fiber.StatusUpgradeRequired, get(t, app, "/ws", &errResp))
	assert.Equal(t, "upgrade_required", errResp.Error)
}

func TestStart_MissingDependencies(t *testing.T) {
	m := NewModule(Config{Port: "0"}, &mockLogger{})
	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
	assert.NoError(t, m.Stop(context.Background()))
}
