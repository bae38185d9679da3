package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerStatusFeedRoutes() {
	s.echo.GET("/ws/status", s.handleStatusFeed)
}

// handleStatusFeed upgrades to WebSocket and hands the connection to the status hub.
// The read loop only exists to notice the client going away.
func (s *Server) handleStatusFeed(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Status feed upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.WarnContext(c.Request().Context(), "Status client rejected", "error", err)
		return nil
	}
	defer s.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
