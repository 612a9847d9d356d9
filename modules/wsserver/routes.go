package wsserver

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Mount registers the WebSocket endpoint at /ws on router.
func (h *Handlers) Mount(router fiber.Router) {
	router.Use("/ws", upgradeRequired)
	router.Get("/ws", websocket.New(h.HandleWebSocket, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))
}

// upgradeRequired rejects plain HTTP requests to the WebSocket endpoint.
func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
