package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/room-relay/modules/activity"
	"github.com/example/room-relay/modules/chat"
	"github.com/example/room-relay/modules/wsserver"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	wsserver.NewHandlers(m.relay, m.hub, m.cfg.WebSocket, m.logger).Mount(app)

	api := app.Group("/api/v1")

	api.Get("/rooms", m.listRooms)
	api.Get("/rooms/:id", m.getRoom)
	api.Get("/rooms/:id/history", m.getHistory)
	api.Get("/rooms/:id/users", m.getUsers)
	api.Get("/rooms/:id/activity", m.getRoomActivity)

	api.Get("/activity", m.getActivity)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Connections: m.relay.ConnectionCount(),
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext())
	if err != nil {
		return m.roomError(err)
	}
	return c.JSON(RoomListResponse{
		Rooms: rooms,
		Count: len(rooms),
	})
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	room, err := m.chatAdapter.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return m.roomError(err)
	}
	return c.JSON(room)
}

// getHistory handles GET /api/v1/rooms/:id/history.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")

	// Zero selects the relay's default; larger values are capped there.
	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	messages, err := m.chatAdapter.GetHistory(c.UserContext(), roomID, limit)
	if err != nil {
		return m.roomError(err)
	}
	return c.JSON(HistoryResponse{
		RoomID:   roomID,
		Messages: messages,
	})
}

// getUsers handles GET /api/v1/rooms/:id/users.
func (m *APIModule) getUsers(c *fiber.Ctx) error {
	roomID := c.Params("id")
	users, err := m.chatAdapter.GetPresence(c.UserContext(), roomID)
	if err != nil {
		return m.roomError(err)
	}
	return c.JSON(UsersResponse{
		RoomID: roomID,
		Users:  users,
	})
}

// getActivity handles GET /api/v1/activity.
func (m *APIModule) getActivity(c *fiber.Ctx) error {
	summary, err := m.activityAdapter.GetSummary(c.UserContext())
	if err != nil {
		m.logger.Error("Activity query failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to get activity")
	}
	return c.JSON(summary)
}

// getRoomActivity handles GET /api/v1/rooms/:id/activity.
func (m *APIModule) getRoomActivity(c *fiber.Ctx) error {
	room, err := m.activityAdapter.GetRoomActivity(c.UserContext(), c.Params("id"))
	if errors.Is(err, activity.ErrNoActivity) {
		return fiber.NewError(fiber.StatusNotFound, "No activity for room")
	}
	if err != nil {
		m.logger.Error("Activity query failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to get activity")
	}
	return c.JSON(room)
}

func (m *APIModule) roomError(err error) error {
	if errors.Is(err, chat.ErrRoomNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Room not found")
	}
	m.logger.Error("Chat query failed", "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "Failed to query rooms")
}
