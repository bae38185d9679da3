package httpserver

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/platform/correlation"
	apperrors "github.com/pscheid92/radiocast/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		c.Response().Header().Set(correlation.Header, id)
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// classifyDomainError maps playback sentinels onto HTTP error categories.
func classifyDomainError(err error) *apperrors.Error {
	switch {
	case errors.Is(err, domain.ErrEffectNotFound):
		return apperrors.Wrap(apperrors.TypeNotFound, "effect not found", err)
	case errors.Is(err, domain.ErrSourceNotFound):
		return apperrors.Wrap(apperrors.TypeNotFound, "program source not found", err)
	case errors.Is(err, domain.ErrAlreadyPlaying):
		return apperrors.Wrap(apperrors.TypeConflict, "already playing", err)
	case errors.Is(err, domain.ErrNotPlaying):
		return apperrors.Wrap(apperrors.TypeConflict, "nothing is playing", err)
	case errors.Is(err, domain.ErrPlaybackStopped):
		return apperrors.Wrap(apperrors.TypeConflict, "playback was stopped", err)
	case errors.Is(err, domain.ErrUnknownCommand):
		return apperrors.Wrap(apperrors.TypeValidation, "unknown command", err)
	case errors.Is(err, domain.ErrSubprocessSpawn):
		return apperrors.Wrap(apperrors.TypeExternal, "audio tool unavailable", err)
	case errors.Is(err, domain.ErrSubprocessFailed):
		return apperrors.Wrap(apperrors.TypeExternal, "audio processing failed", err)
	default:
		return nil
	}
}
