package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/radiocast/internal/broadcast"
	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/metrics"
	"github.com/pscheid92/radiocast/internal/throttle"
)

const (
	bitsPerByte        = 8
	defaultStopTimeout = 5 * time.Second
)

// errNoMixOutput is returned when the mixer ends without producing any audio.
var errNoMixOutput = errors.New("mixer produced no output")

// Config holds the playback settings.
type Config struct {
	// DefaultSource is the query resolved against the sources directory on Start.
	DefaultSource string
	Levels        domain.MixLevels
	ChunkSize     int
	// StopTimeout bounds how long Stop waits for the pump to drain.
	StopTimeout time.Duration
}

// pipeline is one source -> limiter -> broadcaster link driven by a pump goroutine.
type pipeline struct {
	limiter *throttle.Reader
	// closers are released when the pump exits, unless the source was detached.
	closers  []io.Closer
	detached bool
	done     chan struct{}
}

// Session is the playback state machine. Exactly one exists per process.
type Session struct {
	cfg         Config
	sources     domain.FileResolver
	effects     domain.FileResolver
	prober      domain.BitrateProber
	mixer       domain.Mixer
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock

	// ctx outlives individual commands; mixer subprocesses run on it.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      domain.State
	generation uint64
	source     string
	bitrate    int
	effect     string
	current    *pipeline

	// seq numbers snapshots; delivered is the newest one handed to observers.
	seq uint64

	observersMu sync.Mutex
	observers   []func(domain.PlaybackState)
	delivered   uint64
}

// snapshot is a state taken under mu, tagged with its transition number.
type snapshot struct {
	seq   uint64
	state domain.PlaybackState
}

func NewSession(cfg Config, sources, effects domain.FileResolver, prober domain.BitrateProber, mixer domain.Mixer, broadcaster *broadcast.Broadcaster, clock clockwork.Clock) *Session {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = throttle.DefaultChunkSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:         cfg,
		sources:     sources,
		effects:     effects,
		prober:      prober,
		mixer:       mixer,
		broadcaster: broadcaster,
		clock:       clock,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.setStateLocked(domain.StateIdle)
	return s
}

// Subscribe registers fn to receive a snapshot after state transitions. Snapshots arrive in
// transition order; one superseded before delivery is skipped. fn runs on the goroutine that
// made the transition and must not block.
func (s *Session) Subscribe(fn func(domain.PlaybackState)) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns a snapshot of the playback state.
func (s *Session) State() domain.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() domain.PlaybackState {
	state := domain.PlaybackState{
		State:     s.state,
		Bitrate:   s.bitrate,
		Effect:    s.effect,
		Listeners: s.broadcaster.Registry().Len(),
	}
	if s.source != "" {
		state.Source = filepath.Base(s.source)
	}
	if state.Bitrate > 0 {
		state.BytesPerSecond = state.Bitrate / bitsPerByte
	}
	return state
}

// Start probes the default source and begins broadcasting it.
// It fails with ErrAlreadyPlaying while a pipeline exists or is being built.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Active() {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: state is %s", domain.ErrAlreadyPlaying, state)
	}
	previous := s.state
	s.generation++
	gen := s.generation
	s.setStateLocked(domain.StateStarting)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	path, bitrate, src, err := s.prepare(ctx)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		if src != nil {
			_ = src.Close()
		}
		slog.InfoContext(ctx, "Start abandoned, playback was stopped meanwhile")
		return domain.ErrPlaybackStopped
	}
	if err != nil {
		s.setStateLocked(previous)
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return err
	}

	s.source = path
	s.bitrate = bitrate
	s.effect = ""
	s.attachLocked(gen, src, []io.Closer{src}, false)
	s.setStateLocked(domain.StatePlaying)
	snap = s.snapshotLocked()
	s.mu.Unlock()

	metrics.PlaybackBitrate.Set(float64(bitrate))
	slog.InfoContext(ctx, "Playback started", "source", path, "bitrate", bitrate, "bytes_per_second", bitrate/bitsPerByte)
	s.notify(snap)
	return nil
}

func (s *Session) prepare(ctx context.Context) (string, int, io.ReadCloser, error) {
	path, err := s.sources.Resolve(ctx, s.cfg.DefaultSource)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to resolve program source: %w", err)
	}

	bitrate := s.prober.Probe(ctx, path)

	f, err := os.Open(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to open program source: %w", err)
	}
	return path, bitrate, f, nil
}

// Stop ends the active pipeline and waits for the pump to drain, so no bytes reach any
// listener after it returns. Registered listeners stay registered. Stop is a no-op unless a
// pipeline exists or is being built.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	p := s.current
	s.current = nil
	s.effect = ""
	s.setStateLocked(domain.StateStopped)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if p != nil {
		p.limiter.End()
		s.waitPump(ctx, p)
	}

	slog.InfoContext(ctx, "Playback stopped")
	s.notify(snap)
	return nil
}

func (s *Session) waitPump(ctx context.Context, p *pipeline) {
	timer := s.clock.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Stopped waiting for pump", "error", ctx.Err())
	case <-timer.Chan():
		// The pump is stuck in a source read; closing the source unblocks it.
		slog.WarnContext(ctx, "Pump did not drain in time, closing source", "timeout", s.cfg.StopTimeout)
		closeAll(p.closers)
	}
}

// Overlay mixes the effect matching name into the live program. The current source is
// detached, piped through the mixer and re-attached at the current bitrate once the mixer has
// produced its first chunk. ErrEffectNotFound leaves the playback untouched. A mixer that
// fails to start or ends before producing output re-attaches the original source and
// returns the error.
func (s *Session) Overlay(ctx context.Context, name string) error {
	path, err := s.effects.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrEffectNotFound) {
			metrics.OverlaysTotal.WithLabelValues("not_found").Inc()
		}
		return err
	}

	s.mu.Lock()
	if s.state != domain.StatePlaying || s.current == nil {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: state is %s", domain.ErrNotPlaying, state)
	}
	gen := s.generation
	p := s.current
	s.current = nil
	p.detached = true
	s.setStateLocked(domain.StateOverlaying)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	p.limiter.Pause()
	src := p.limiter.Detach()
	<-p.done

	var program io.Reader
	mixed, mixErr := s.mixer.Mix(s.ctx, src, path, s.cfg.Levels)
	if mixErr == nil {
		if program, mixErr = primeMix(mixed, s.cfg.ChunkSize); mixErr != nil {
			_ = mixed.Close()
			mixed = nil
		}
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		if mixed != nil {
			_ = mixed.Close()
		}
		closeAll(p.closers)
		metrics.OverlaysTotal.WithLabelValues("aborted").Inc()
		slog.InfoContext(ctx, "Overlay abandoned, playback was stopped meanwhile", "effect", name)
		return domain.ErrPlaybackStopped
	}

	if mixErr != nil {
		s.attachLocked(gen, src, p.closers, true)
		s.setStateLocked(domain.StatePlaying)
		snap = s.snapshotLocked()
		s.mu.Unlock()
		metrics.OverlaysTotal.WithLabelValues("failed").Inc()
		slog.ErrorContext(ctx, "Overlay failed, resuming program", "effect", path, "error", mixErr)
		s.notify(snap)
		return fmt.Errorf("failed to mix effect %q: %w", name, mixErr)
	}

	s.effect = filepath.Base(path)
	closers := append([]io.Closer{mixed}, p.closers...)
	s.attachLocked(gen, program, closers, true)
	s.setStateLocked(domain.StatePlaying)
	snap = s.snapshotLocked()
	s.mu.Unlock()

	metrics.OverlaysTotal.WithLabelValues("mixed").Inc()
	slog.InfoContext(ctx, "Effect overlaid", "effect", path, "bitrate", snap.state.Bitrate)
	s.notify(snap)
	return nil
}

// primeMix waits for the first chunk of mixed audio and returns a reader that replays it
// ahead of the rest of the stream. Any read error, or an end without output, fails the mix.
func primeMix(mixed io.Reader, size int) (io.Reader, error) {
	buf := make([]byte, size)
	for {
		n, err := mixed.Read(buf)
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			return nil, err
		case n > 0 && err == nil:
			return io.MultiReader(bytes.NewReader(buf[:n]), mixed), nil
		case n > 0:
			return bytes.NewReader(buf[:n]), nil
		case err != nil:
			return nil, errNoMixOutput
		}
	}
}

// Close stops playback and kills any mixer still running.
func (s *Session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopTimeout)
	defer cancel()
	_ = s.Stop(ctx)
	s.cancel()
}

// attachLocked paces src at the current bitrate and starts a pump for it. A resumed
// pipeline starts with an empty token bucket so the swap does not burst. Must be called
// with mu held.
func (s *Session) attachLocked(gen uint64, src io.Reader, closers []io.Closer, resumed bool) {
	p := &pipeline{
		limiter: throttle.New(src, s.bitrate/bitsPerByte, s.cfg.ChunkSize, s.clock),
		closers: closers,
		done:    make(chan struct{}),
	}
	if resumed {
		p.limiter.Drain()
	}
	s.current = p
	go s.pump(gen, p)
}

func (s *Session) pump(gen uint64, p *pipeline) {
	defer close(p.done)

	err := s.broadcaster.Run(s.ctx, p.limiter)

	var snap snapshot
	s.mu.Lock()
	ended := s.current == p && s.generation == gen
	if ended {
		s.current = nil
		s.effect = ""
		s.setStateLocked(domain.StateStopped)
		snap = s.snapshotLocked()
	}
	detached := p.detached
	s.mu.Unlock()

	if !detached {
		closeAll(p.closers)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Program source failed", "error", err)
	}
	if ended {
		slog.Info("Program ended")
		s.notify(snap)
	}
}

// setStateLocked records a transition. Must be called with mu held (or before the session
// is shared).
func (s *Session) setStateLocked(state domain.State) {
	s.state = state
	metrics.PlaybackTransitionsTotal.WithLabelValues(string(state)).Inc()
	for _, st := range domain.States {
		value := 0.0
		if st == state {
			value = 1
		}
		metrics.PlaybackState.WithLabelValues(string(st)).Set(value)
	}
}

// snapshotLocked captures the state for observers. Must be called with mu held.
func (s *Session) snapshotLocked() snapshot {
	s.seq++
	return snapshot{seq: s.seq, state: s.stateLocked()}
}

// notify hands snap to the observers unless a newer snapshot was delivered already.
func (s *Session) notify(snap snapshot) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	if snap.seq <= s.delivered {
		return
	}
	s.delivered = snap.seq
	for _, fn := range s.observers {
		fn(snap.state)
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
