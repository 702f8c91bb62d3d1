package realtime

import (
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UpgradeRequired rejects plain HTTP requests on websocket routes.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// TicketStream upgrades the connection and joins it to the ticket's room.
// The connection receives every message published to the room from the
// moment it joins; reconnecting clients simply re-subscribe and fetch missed
// history over the message list endpoint.
func TicketStream(hub *Hub, logger *zap.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close() //nolint:errcheck

		number, err := strconv.ParseInt(conn.Params("number"), 10, 64)
		if err != nil || number <= 0 {
			return
		}

		room := RoomForTicket(number)
		sub := hub.Subscribe(room)
		defer hub.Unsubscribe(sub)

		logger.Debug("viewer joined", zap.String("room", room))

		// Reader goroutine notices client disconnects; inbound frames carry
		// no meaning on this channel and are discarded.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case payload, ok := <-sub.C:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}
