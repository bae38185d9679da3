package throttle

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readResult struct {
	n   int
	err error
}

func readAsync(r io.Reader, size int) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		n, err := r.Read(make([]byte, size))
		ch <- readResult{n: n, err: err}
	}()
	return ch
}

func blockUntilWaiters(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestReader_FirstChunkIsImmediate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := New(bytes.NewReader(make([]byte, 1000)), 1000, 100, clock)

	n, err := r.Read(make([]byte, 500))

	require.NoError(t, err)
	assert.Equal(t, 100, n, "reads are capped at the burst size")
}

func TestReader_PacesToBytesPerSecond(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := New(bytes.NewReader(make([]byte, 1000)), 1000, 100, clock)

	_, err := r.Read(make([]byte, 100))
	require.NoError(t, err)

	result := readAsync(r, 100)
	blockUntilWaiters(t, clock, 1)

	select {
	case <-result:
		t.Fatal("second chunk delivered before its tokens accrued")
	default:
	}

	clock.Advance(100 * time.Millisecond)

	select {
	case res := <-result:
		require.NoError(t, res.err)
		assert.Equal(t, 100, res.n)
	case <-time.After(time.Second):
		t.Fatal("read did not complete after the clock advanced")
	}
}

func TestReader_DrainedReaderWaitsForFirstChunk(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := New(bytes.NewReader(make([]byte, 1000)), 1000, 100, clock)
	r.Drain()

	result := readAsync(r, 100)
	blockUntilWaiters(t, clock, 1)

	select {
	case <-result:
		t.Fatal("drained reader delivered a burst")
	default:
	}

	clock.Advance(100 * time.Millisecond)

	select {
	case res := <-result:
		require.NoError(t, res.err)
		assert.Equal(t, 100, res.n)
	case <-time.After(time.Second):
		t.Fatal("read did not complete after the clock advanced")
	}
}

func TestReader_BurstNeverExceedsOneSecond(t *testing.T) {
	r := New(strings.NewReader("abcdef"), 4, 4096, clockwork.NewFakeClock())

	n, err := r.Read(make([]byte, 6))

	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestReader_EndUnblocksPendingRead(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := New(bytes.NewReader(make([]byte, 1000)), 1000, 100, clock)
	_, _ = r.Read(make([]byte, 100))

	result := readAsync(r, 100)
	blockUntilWaiters(t, clock, 1)

	r.End()

	res := <-result
	assert.Equal(t, 0, res.n)
	assert.ErrorIs(t, res.err, io.EOF)

	_, err := r.Read(make([]byte, 10))
	assert.ErrorIs(t, err, io.EOF)
	assert.NotPanics(t, r.End, "End is idempotent")
}

func TestReader_PauseBlocksUntilResume(t *testing.T) {
	r := New(strings.NewReader("hello"), 1000, 100, clockwork.NewFakeClock())
	r.Pause()

	result := readAsync(r, 5)

	select {
	case <-result:
		t.Fatal("read completed while paused")
	case <-time.After(20 * time.Millisecond):
	}

	r.Resume()

	res := <-result
	require.NoError(t, res.err)
	assert.Equal(t, 5, res.n)
}

func TestReader_EndWhilePaused(t *testing.T) {
	r := New(strings.NewReader("hello"), 1000, 100, clockwork.NewFakeClock())
	r.Pause()
	result := readAsync(r, 5)

	r.End()

	assert.ErrorIs(t, (<-result).err, io.EOF)
}

func TestReader_DetachReturnsSourceAtCurrentOffset(t *testing.T) {
	src := strings.NewReader("abcdefgh")
	r := New(src, 1000, 4, clockwork.NewFakeClock())

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	detached := r.Detach()

	rest, err := io.ReadAll(detached)
	require.NoError(t, err)
	assert.Equal(t, "efgh", string(rest))

	select {
	case <-r.Done():
	default:
		t.Fatal("detach must end the reader")
	}
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_SourceEOFPassesThrough(t *testing.T) {
	r := New(strings.NewReader("ab"), 1000, 100, clockwork.NewFakeClock())

	data, err := io.ReadAll(r)

	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestReader_RealClockRate(t *testing.T) {
	// 64 kbit/s is 8000 bytes per second.
	r := New(bytes.NewReader(make([]byte, 1<<20)), 64000/8, DefaultChunkSize, clockwork.NewRealClock())
	t.Cleanup(r.End)

	var total atomic.Int64
	go func() {
		buf := make([]byte, DefaultChunkSize)
		for {
			n, err := r.Read(buf)
			total.Add(int64(n))
			if err != nil {
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)

	assert.LessOrEqual(t, total.Load(), int64(8000))
	assert.Positive(t, total.Load())
	assert.Equal(t, 8000, r.BytesPerSecond())
}
