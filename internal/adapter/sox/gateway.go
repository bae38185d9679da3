package sox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBinary = "sox"
	defaultFormat = "mp3"

	// Mixer stderr is only kept for diagnostics.
	maxStderrBytes = 4096
)

// CommandFunc builds the command for one subprocess invocation.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Error describes a failed sox invocation.
type Error struct {
	Op     string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("sox %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("sox %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == domain.ErrSubprocessFailed }

// Gateway runs sox subprocesses.
type Gateway struct {
	binary  string
	format  string
	command CommandFunc
}

type Option func(*Gateway)

// WithBinary overrides the sox executable.
func WithBinary(binary string) Option {
	return func(g *Gateway) { g.binary = binary }
}

// WithFormat overrides the audio type passed with -t for every input and output.
func WithFormat(format string) Option {
	return func(g *Gateway) { g.format = format }
}

// WithCommandFunc replaces exec.CommandContext, mainly for tests.
func WithCommandFunc(fn CommandFunc) Option {
	return func(g *Gateway) { g.command = fn }
}

func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		binary:  defaultBinary,
		format:  defaultFormat,
		command: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Binary returns the configured sox executable.
func (g *Gateway) Binary() string {
	return g.binary
}

// ProbeBitrate runs `sox --i -B <path>` and returns the trimmed token from stdout.
// Any output on stderr is treated as a failure, as is a non-zero exit.
func (g *Gateway) ProbeBitrate(ctx context.Context, path string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.SubprocessDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	}()

	cmd := g.command(ctx, g.binary, "--i", "-B", path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", g.fail("probe", "", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", g.fail("probe", "", err)
	}

	if err := cmd.Start(); err != nil {
		return "", g.fail("probe", "", fmt.Errorf("%w: %w", domain.ErrSubprocessSpawn, err))
	}

	// Both pipes are drained concurrently so a chatty stderr cannot fill its buffer and stall sox.
	var outBuf, errBuf bytes.Buffer
	var group errgroup.Group
	group.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	group.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	readErr := group.Wait()
	waitErr := cmd.Wait()

	errText := strings.TrimSpace(errBuf.String())
	switch {
	case readErr != nil:
		return "", g.fail("probe", errText, readErr)
	case waitErr != nil:
		return "", g.fail("probe", errText, waitErr)
	case errText != "":
		return "", g.fail("probe", errText, errors.New("error output"))
	}

	return strings.TrimSpace(outBuf.String()), nil
}

// Mix starts `sox -t fmt -v p -m - -t fmt -v s <clip> -t fmt -` with primary on stdin.
// The returned stream yields the merged audio. Closing it releases the stdout pipe; the
// subprocess then exits on its own once it notices the closed pipe.
func (g *Gateway) Mix(ctx context.Context, primary io.Reader, secondaryPath string, levels domain.MixLevels) (io.ReadCloser, error) {
	args := []string{
		"-t", g.format, "-v", formatLevel(levels.Primary), "-m", "-",
		"-t", g.format, "-v", formatLevel(levels.Secondary), secondaryPath,
		"-t", g.format, "-",
	}
	cmd := g.command(ctx, g.binary, args...)
	cmd.Stdin = primary

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, g.fail("mix", "", err)
	}
	stderr := &limitedBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, g.fail("mix", "", fmt.Errorf("%w: %w", domain.ErrSubprocessSpawn, err))
	}

	slog.DebugContext(ctx, "Mixer started", "effect", secondaryPath, "pid", cmd.Process.Pid)

	return &mixStream{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		effect: secondaryPath,
		start:  time.Now(),
	}, nil
}

func (g *Gateway) fail(op, stderr string, err error) error {
	metrics.SubprocessFailuresTotal.WithLabelValues(op).Inc()
	return &Error{Op: op, Stderr: stderr, Err: err}
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type mixStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *limitedBuffer
	effect string
	start  time.Time

	waitOnce sync.Once
	waitErr  error
}

func (m *mixStream) Read(p []byte) (int, error) {
	n, err := m.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if waitErr := m.wait(); waitErr != nil {
			return n, &Error{Op: "mix", Stderr: m.stderr.String(), Err: waitErr}
		}
	}
	return n, err
}

func (m *mixStream) Close() error {
	err := m.stdout.Close()
	go func() { _ = m.wait() }()
	return err
}

func (m *mixStream) wait() error {
	m.waitOnce.Do(func() {
		m.waitErr = m.cmd.Wait()
		metrics.SubprocessDuration.WithLabelValues("mix").Observe(time.Since(m.start).Seconds())
		if m.waitErr != nil {
			metrics.SubprocessFailuresTotal.WithLabelValues("mix").Inc()
			slog.Debug("Mixer exited", "effect", m.effect, "error", m.waitErr, "stderr", m.stderr.String())
		}
	})
	return m.waitErr
}

// limitedBuffer keeps the first limit bytes written to it and discards the rest.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
