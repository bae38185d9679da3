package sox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSox re-executes the test binary as TestHelperProcess, which plays the part of sox.
func fakeSox(t *testing.T, env ...string) CommandFunc {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		cmd.Env = append(cmd.Env, env...)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[2:] // drop "--" and the binary name

	if len(args) > 0 && args[0] == "--i" {
		fmt.Fprint(os.Stdout, os.Getenv("FAKE_SOX_STDOUT"))
		fmt.Fprint(os.Stderr, os.Getenv("FAKE_SOX_STDERR"))
		if os.Getenv("FAKE_SOX_EXIT") == "1" {
			os.Exit(1)
		}
		return
	}

	// Mix: echo the argument vector, then the primary input.
	fmt.Fprintf(os.Stdout, "%s\n", strings.Join(args, " "))
	_, _ = io.Copy(os.Stdout, os.Stdin)
	if os.Getenv("FAKE_SOX_EXIT") == "1" {
		fmt.Fprint(os.Stderr, "mix failed")
		os.Exit(1)
	}
}

func TestProbeBitrate_ReturnsTrimmedToken(t *testing.T) {
	g := NewGateway(WithCommandFunc(fakeSox(t, "FAKE_SOX_STDOUT=128k\n")))

	token, err := g.ProbeBitrate(context.Background(), "song.mp3")

	require.NoError(t, err)
	assert.Equal(t, "128k", token)
}

func TestProbeBitrate_StderrIsFailure(t *testing.T) {
	g := NewGateway(WithCommandFunc(fakeSox(t, "FAKE_SOX_STDOUT=128k", "FAKE_SOX_STDERR=sox FAIL formats: can't open input file")))

	_, err := g.ProbeBitrate(context.Background(), "missing.mp3")

	require.Error(t, err)
	var soxErr *Error
	require.ErrorAs(t, err, &soxErr)
	assert.Equal(t, "probe", soxErr.Op)
	assert.Contains(t, soxErr.Stderr, "can't open input file")
}

func TestProbeBitrate_NonZeroExit(t *testing.T) {
	g := NewGateway(WithCommandFunc(fakeSox(t, "FAKE_SOX_EXIT=1")))

	_, err := g.ProbeBitrate(context.Background(), "song.mp3")

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrSubprocessSpawn))
	assert.ErrorIs(t, err, domain.ErrSubprocessFailed)
}

func TestProbeBitrate_SpawnFailure(t *testing.T) {
	g := NewGateway(WithBinary("/nonexistent/sox-binary"))

	_, err := g.ProbeBitrate(context.Background(), "song.mp3")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubprocessSpawn)
	assert.ErrorIs(t, err, domain.ErrSubprocessFailed)
}

func TestMix_StreamsMergedOutput(t *testing.T) {
	g := NewGateway(WithCommandFunc(fakeSox(t)))

	stream, err := g.Mix(context.Background(), strings.NewReader("PROGRAM"), "fx/applause.mp3", domain.MixLevels{Primary: 0.99, Secondary: 0.1})
	require.NoError(t, err)
	defer stream.Close()

	out, err := io.ReadAll(stream)
	require.NoError(t, err)

	assert.Equal(t, "-t mp3 -v 0.99 -m - -t mp3 -v 0.1 fx/applause.mp3 -t mp3 -\nPROGRAM", string(out))
}

func TestMix_UsesConfiguredFormat(t *testing.T) {
	g := NewGateway(WithCommandFunc(fakeSox(t)), WithFormat("ogg"))

	stream, err := g.Mix(context.Background(), strings.NewReader(""), "fx.ogg", domain.MixLevels{Primary: 1, Secondary: 0.5})
	require.NoError(t, err)
	defer stream.Close()

	out, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "-t ogg -v 1 -m - -t ogg -v 0.5 fx.ogg -t ogg -\n", string(out))
}

func TestMix_ExitFailureSurfacesOnRead(t *testing.T) {
	g := NewGateway(WithCommandFunc(fakeSox(t, "FAKE_SOX_EXIT=1")))

	stream, err := g.Mix(context.Background(), strings.NewReader("x"), "fx.mp3", domain.MixLevels{Primary: 1, Secondary: 1})
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)

	var soxErr *Error
	require.ErrorAs(t, err, &soxErr)
	assert.Equal(t, "mix", soxErr.Op)
	assert.Equal(t, "mix failed", soxErr.Stderr)
}

func TestMix_SpawnFailure(t *testing.T) {
	g := NewGateway(WithBinary("/nonexistent/sox-binary"))

	_, err := g.Mix(context.Background(), strings.NewReader("x"), "fx.mp3", domain.MixLevels{})

	assert.ErrorIs(t, err, domain.ErrSubprocessSpawn)
}

func TestLimitedBuffer_Truncates(t *testing.T) {
	b := &limitedBuffer{limit: 4}

	n, err := b.Write([]byte("abcdef"))

	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abcd", b.String())
}
