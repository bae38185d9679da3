package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/radiocast/internal/broadcast"
	"github.com/pscheid92/radiocast/internal/metrics"
)

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/stream", s.handleStream)
}

// handleStream registers the caller as a listener and relays the program until the client
// disconnects or falls too far behind. Listeners may join while nothing is playing.
func (s *Server) handleStream(c echo.Context) error {
	ctx := c.Request().Context()
	res := c.Response()

	res.Header().Set(echo.HeaderContentType, "audio/mpeg")
	res.Header().Set(echo.HeaderCacheControl, "no-cache, no-store")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	sink := broadcast.NewChannelSink(s.config.ListenerBufferChunks)
	id := s.registry.Add(sink)
	defer s.registry.Remove(id)

	started := time.Now()
	slog.InfoContext(ctx, "Listener connected", "listener_id", id.String(), "remote", c.RealIP())

	err := sink.Stream(ctx, res, res.Flush)

	duration := time.Since(started)
	metrics.ListenerConnectionDuration.Observe(duration.Seconds())
	if err != nil {
		slog.InfoContext(ctx, "Listener dropped", "listener_id", id.String(), "duration", duration, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "Listener disconnected", "listener_id", id.String(), "duration", duration)
	return nil
}
