package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/metrics"
)

// Kind names the action a command text was dispatched to.
type Kind string

const (
	KindStart   Kind = "start"
	KindStop    Kind = "stop"
	KindOverlay Kind = "overlay"
)

// Player is the playback surface the controller drives.
type Player interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Overlay(ctx context.Context, effect string) error
	State() domain.PlaybackState
}

// Catalog lists the files available for overlay.
type Catalog interface {
	List(ctx context.Context) ([]string, error)
}

// Result describes an executed command and the playback state after it.
type Result struct {
	Command Kind                 `json:"command"`
	Effect  string               `json:"effect,omitempty"`
	State   domain.PlaybackState `json:"state"`
}

// Commands maps controller button texts to playback operations.
type Commands struct {
	player  Player
	effects Catalog
}

func NewCommands(player Player, effects Catalog) *Commands {
	return &Commands{player: player, effects: effects}
}

// Execute dispatches text: anything containing "start" starts playback, anything containing
// "stop" stops it, and any other text is taken as an effect name to overlay.
func (c *Commands) Execute(ctx context.Context, text string) (Result, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		metrics.CommandsTotal.WithLabelValues("unknown", "rejected").Inc()
		return Result{}, domain.ErrUnknownCommand
	}

	var (
		result = Result{Command: kindOf(normalized)}
		err    error
	)
	switch result.Command {
	case KindStart:
		err = c.player.Start(ctx)
	case KindStop:
		err = c.player.Stop(ctx)
	default:
		result.Effect = normalized
		err = c.player.Overlay(ctx, normalized)
	}

	metrics.CommandsTotal.WithLabelValues(string(result.Command), outcome(err)).Inc()
	if err != nil {
		slog.WarnContext(ctx, "Command failed", "command", result.Command, "text", text, "error", err)
		return Result{}, err
	}

	result.State = c.player.State()
	slog.InfoContext(ctx, "Command executed", "command", result.Command, "state", result.State.State)
	return result, nil
}

// Status returns the current playback state.
func (c *Commands) Status() domain.PlaybackState {
	return c.player.State()
}

// Effects returns the names of all overlayable effects in name order.
func (c *Commands) Effects(ctx context.Context) ([]string, error) {
	paths, err := c.effects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list effects: %w", err)
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names, nil
}

func kindOf(normalized string) Kind {
	switch {
	case strings.Contains(normalized, "start"):
		return KindStart
	case strings.Contains(normalized, "stop"):
		return KindStop
	default:
		return KindOverlay
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEffectNotFound), errors.Is(err, domain.ErrSourceNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyPlaying), errors.Is(err, domain.ErrNotPlaying), errors.Is(err, domain.ErrPlaybackStopped):
		return "conflict"
	default:
		return "error"
	}
}
