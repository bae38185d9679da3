package broadcast

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects everything written to it.
type recordingSink struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	err  error
	done chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.buf.Write(p)
}

func (s *recordingSink) Done() <-chan struct{} { return s.done }

func (s *recordingSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestBroadcast_EveryListenerReceivesSameBytesInOrder(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, 3)

	sinks := []*recordingSink{newRecordingSink(), newRecordingSink(), newRecordingSink()}
	for _, s := range sinks {
		registry.Add(s)
	}

	payload := "the quick brown fox jumps over the lazy dog"
	require.NoError(t, b.Run(context.Background(), strings.NewReader(payload)))

	for _, s := range sinks {
		assert.Equal(t, payload, s.String())
	}
}

func TestBroadcast_ClosedListenerIsPrunedWithoutWrite(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, 0)

	live := newRecordingSink()
	closed := newRecordingSink()
	close(closed.done)
	registry.Add(live)
	closedID := registry.Add(closed)

	delivered := b.Broadcast([]byte("chunk"))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, "chunk", live.String())
	assert.Empty(t, closed.String())
	assert.False(t, registry.Has(closedID))
}

func TestBroadcast_WriteFailureIsIsolated(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, 0)

	broken := newRecordingSink()
	broken.err = errors.New("connection reset by peer")
	healthy := newRecordingSink()
	brokenID := registry.Add(broken)
	healthyID := registry.Add(healthy)

	delivered := b.Broadcast([]byte("one"))
	b.Broadcast([]byte("two"))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, "onetwo", healthy.String())
	assert.False(t, registry.Has(brokenID))
	assert.True(t, registry.Has(healthyID))
}

func TestBroadcast_ListenerJoiningMidStreamGetsOnlyLaterChunks(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, 0)

	early := newRecordingSink()
	registry.Add(early)
	b.Broadcast([]byte("a"))

	late := newRecordingSink()
	registry.Add(late)
	b.Broadcast([]byte("b"))

	assert.Equal(t, "ab", early.String())
	assert.Equal(t, "b", late.String())
}

func TestBroadcast_ChunkIsCopied(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, 0)
	sink := NewChannelSink(4)
	registry.Add(sink)

	chunk := []byte("abc")
	b.Broadcast(chunk)
	chunk[0] = 'X'

	assert.Equal(t, "abc", string(<-sink.sendCh))
}

func TestBroadcast_NoListeners(t *testing.T) {
	b := NewBroadcaster(NewRegistry(), 0)

	assert.Equal(t, 0, b.Broadcast([]byte("nobody")))
	assert.Equal(t, 0, b.Broadcast(nil))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestRun_ReturnsSourceError(t *testing.T) {
	b := NewBroadcaster(NewRegistry(), 0)

	err := b.Run(context.Background(), failingReader{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	b := NewBroadcaster(NewRegistry(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Run(ctx, io.MultiReader(strings.NewReader("data")))

	assert.ErrorIs(t, err, context.Canceled)
}
