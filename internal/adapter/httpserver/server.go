package httpserver

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/radiocast/internal/app"
	"github.com/pscheid92/radiocast/internal/broadcast"
	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/platform/config"
)

type commandService interface {
	Execute(ctx context.Context, text string) (app.Result, error)
	Status() domain.PlaybackState
	Effects(ctx context.Context) ([]string, error)
}

type statusHub interface {
	Register(conn *gorillaws.Conn) error
	Unregister(conn *gorillaws.Conn)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	commands     commandService
	registry     *broadcast.Registry
	hub          statusHub
	static       fs.FS
	upgrader     gorillaws.Upgrader
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires the HTTP surface. static must contain home/index.html and
// controller/index.html at its root.
func NewServer(cfg *config.Config, commands commandService, registry *broadcast.Registry, hub statusHub, static fs.FS, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		commands:     commands,
		registry:     registry,
		hub:          hub,
		static:       static,
		upgrader:     gorillaws.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
