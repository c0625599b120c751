package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
)

// Views checks stream ownership and returns the encoded current snapshot of a
// view so a renderer has something to draw before the next change.
type Views interface {
	Owns(viewID, userID string) bool
	SnapshotJSON(viewID string) ([]byte, bool)
}

// RegisterRoutes mounts GET /ws/:viewID. With views set, only the view's
// owner may subscribe.
func RegisterRoutes(r fiber.Router, hub *Hub, views Views, authMiddleware fiber.Handler) {
	r.Get("/ws/:viewID", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if views != nil {
			userID, _ := c.Locals("user_id").(string)
			if !views.Owns(c.Params("viewID"), userID) {
				return fiber.NewError(fiber.StatusNotFound, "view not found")
			}
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		viewID := c.Params("viewID")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		if views != nil {
			if snap, ok := views.SnapshotJSON(viewID); ok {
				if err := c.WriteMessage(websocket.TextMessage, snap); err != nil {
					return
				}
			}
		}

		client := hub.Register(viewID)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// closes Send, which ends the writer
		hub.Unregister(client)
		<-done
	}))
}
