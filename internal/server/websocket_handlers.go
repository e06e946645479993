package server

import (
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"parley/internal/protocol"
)

// UpgradeGate refuses non-WebSocket requests and admissions with a missing,
// empty, or reserved name before the upgrade completes. The session manager
// repeats the name validation after the upgrade for defense in depth.
func (s *Server) UpgradeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		name := c.Query("name")
		if name == "" || name == protocol.GeneralChat {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing or reserved name parameter",
			})
		}

		c.Locals("username", name)
		return c.Next()
	}
}

// WebSocketChatHandler admits the upgraded connection into the session
// engine and runs its pumps. The handler goroutine doubles as the read
// pump, exactly one writer goroutine serves the send buffer.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		name, _ := conn.Locals("username").(string)
		if name == "" {
			_ = conn.Close()
			return
		}

		client, err := s.sessions.OnOpen(conn, name, remoteIP(conn))
		if err != nil {
			// OnOpen already sent the diagnostic and closed the connection.
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func remoteIP(conn *websocket.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
