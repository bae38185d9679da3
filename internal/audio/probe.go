package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/metrics"
	"github.com/pscheid92/radiocast/internal/platform/retry"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// FallbackBitrate is used whenever probing fails.
const FallbackBitrate = 128000

const (
	breakerFailureThreshold = 5
	breakerOpenDuration     = 30 * time.Second
	spawnAttempts           = 3
	spawnBackoff            = 50 * time.Millisecond

	// Probed bitrates must pace at least one byte per second.
	minBitrate = 8
	maxBitrate = math.MaxInt32
)

// Prober determines bitrates through an AudioProber and never fails.
type Prober struct {
	gateway  domain.AudioProber
	breaker  *gobreaker.CircuitBreaker
	retry    retry.Policy
	group    singleflight.Group
	fallback int
}

var _ domain.BitrateProber = (*Prober)(nil)

// NewProber creates a prober. fallback <= 0 selects FallbackBitrate.
func NewProber(gateway domain.AudioProber, fallback int) *Prober {
	if fallback <= 0 {
		fallback = FallbackBitrate
	}
	return &Prober{
		gateway:  gateway,
		breaker:  newBreaker(breakerFailureThreshold, breakerOpenDuration),
		retry:    retry.Policy{MaxAttempts: spawnAttempts, InitialBackoff: spawnBackoff},
		fallback: fallback,
	}
}

func newBreaker(threshold uint32, openFor time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bitrate_probe",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Fallback returns the bitrate used when probing fails.
func (p *Prober) Fallback() int {
	return p.fallback
}

// Probe returns the bitrate of path in bits per second, or the fallback bitrate.
// Concurrent probes of the same path share one subprocess.
func (p *Prober) Probe(ctx context.Context, path string) int {
	v, _, _ := p.group.Do(path, func() (any, error) {
		return p.probe(ctx, path), nil
	})
	return v.(int)
}

func (p *Prober) probe(ctx context.Context, path string) int {
	result, err := p.breaker.Execute(func() (any, error) {
		// A failed spawn can be transient; anything sox itself reports is not.
		token, err := retry.Do(ctx, p.retry, retry.OnlyIf(domain.ErrSubprocessSpawn), func() (string, error) {
			return p.gateway.ProbeBitrate(ctx, path)
		})
		if err != nil {
			return nil, err
		}
		bitrate, err := ParseBitrate(token)
		if err != nil {
			return nil, err
		}
		return bitrate, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BitrateProbesTotal.WithLabelValues("short_circuit").Inc()
		slog.WarnContext(ctx, "Bitrate probe skipped, using fallback", "source", path, "fallback", p.fallback, "reason", err)
		return p.fallback
	case err != nil:
		metrics.BitrateProbesTotal.WithLabelValues("fallback").Inc()
		slog.WarnContext(ctx, "Bitrate probe failed, using fallback", "source", path, "fallback", p.fallback, "error", err)
		return p.fallback
	}

	bitrate := result.(int)
	metrics.BitrateProbesTotal.WithLabelValues("ok").Inc()
	slog.DebugContext(ctx, "Bitrate probed", "source", path, "bitrate", bitrate)
	return bitrate
}

// ParseBitrate parses a bitrate token as printed by `sox --i -B`.
// A trailing k multiplies by 1000 and a trailing M by 1000000; "128k" is 128000.
func ParseBitrate(token string) (int, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return 0, errors.New("empty bitrate")
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1e3
		s = s[:len(s)-1]
	case 'M':
		multiplier = 1e6
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bitrate %q: %w", token, err)
	}

	bits := math.Round(value * multiplier)
	if math.IsNaN(bits) || bits < minBitrate || bits > maxBitrate {
		return 0, fmt.Errorf("invalid bitrate %q: must be between %d and %d", token, minBitrate, maxBitrate)
	}
	return int(bits), nil
}
