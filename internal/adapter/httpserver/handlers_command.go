package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/radiocast/internal/app"
	"github.com/pscheid92/radiocast/internal/domain"
	apperrors "github.com/pscheid92/radiocast/internal/platform/errors"
)

const maxCommandLength = 256

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Result  string               `json:"result"`
	Command app.Kind             `json:"command"`
	State   domain.PlaybackState `json:"state"`
}

func (s *Server) registerCommandRoutes() {
	limiter := newRateLimiter(s.config.CommandRateLimit, s.config.CommandRateBurst)
	s.echo.POST("/controller", s.handleCommand, limiter)
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.GET("/api/effects", s.handleEffects)
}

func (s *Server) handleCommand(c echo.Context) error {
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if len(req.Command) > maxCommandLength {
		return apperrors.ValidationError("command too long").WithContext("max_length", maxCommandLength)
	}

	result, err := s.commands.Execute(c.Request().Context(), req.Command)
	if err != nil {
		return fmt.Errorf("command %q: %w", req.Command, err)
	}

	if err := c.JSON(http.StatusOK, commandResponse{Result: "ok", Command: result.Command, State: result.State}); err != nil {
		return fmt.Errorf("failed to write command response: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.commands.Status()); err != nil {
		return fmt.Errorf("failed to write status response: %w", err)
	}
	return nil
}

func (s *Server) handleEffects(c echo.Context) error {
	names, err := s.commands.Effects(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list effects", err)
	}

	if err := c.JSON(http.StatusOK, map[string][]string{"effects": names}); err != nil {
		return fmt.Errorf("failed to write effects response: %w", err)
	}
	return nil
}
