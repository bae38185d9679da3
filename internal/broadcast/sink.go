package broadcast

import (
	"context"
	"errors"
	"io"
	"sync"
)

const defaultSinkBuffer = 64

var (
	ErrSinkClosed   = errors.New("listener sink closed")
	ErrSlowListener = errors.New("listener buffer full")
)

// ChannelSink buffers chunks for one listener. Write never blocks: a full buffer is reported
// as ErrSlowListener so the broadcaster can drop the listener instead of stalling everyone.
type ChannelSink struct {
	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ Sink = (*ChannelSink)(nil)

// NewChannelSink creates a sink buffering up to size chunks; size <= 0 selects 64.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = defaultSinkBuffer
	}
	return &ChannelSink{
		sendCh: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Write queues p. p must not be modified afterwards.
func (s *ChannelSink) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrSinkClosed
	default:
	}

	select {
	case s.sendCh <- p:
		return len(p), nil
	case <-s.done:
		return 0, ErrSinkClosed
	default:
		return 0, ErrSlowListener
	}
}

func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

// Close marks the sink as ended. Safe to call more than once.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Stream writes queued chunks to w in order until ctx is done, the sink is closed or a write
// fails. flush, if set, runs after every chunk. The sink is closed on return.
func (s *ChannelSink) Stream(ctx context.Context, w io.Writer, flush func()) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case chunk := <-s.sendCh:
			if _, err := w.Write(chunk); err != nil {
				return err
			}
			if flush != nil {
				flush()
			}
		}
	}
}
