package broadcast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pscheid92/radiocast/internal/metrics"
)

const defaultChunkSize = 4096

// Broadcaster replicates a byte stream to every registered listener.
type Broadcaster struct {
	registry  *Registry
	chunkSize int
}

// NewBroadcaster creates a broadcaster over registry. chunkSize <= 0 selects 4096 bytes.
func NewBroadcaster(registry *Registry, chunkSize int) *Broadcaster {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Broadcaster{registry: registry, chunkSize: chunkSize}
}

// Registry returns the listener registry the broadcaster fans out to.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Run reads src until EOF and broadcasts every chunk. It returns nil on EOF.
func (b *Broadcaster) Run(ctx context.Context, src io.Reader) error {
	buf := make([]byte, b.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := src.Read(buf)
		if n > 0 {
			metrics.BroadcastBytesTotal.Add(float64(n))
			b.Broadcast(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read program source: %w", err)
		}
	}
}

// Broadcast hands chunk to every live listener and returns how many accepted it.
// Listeners that are done or fail to accept the chunk are removed (and closed, if they can
// be); the failure is not propagated.
func (b *Broadcaster) Broadcast(chunk []byte) int {
	if len(chunk) == 0 {
		return 0
	}
	start := time.Now()

	// One copy shared read-only by every sink.
	data := bytes.Clone(chunk)

	delivered := 0
	for _, client := range b.registry.Snapshot() {
		select {
		case <-client.Sink.Done():
			b.registry.Remove(client.ID)
			metrics.ListenerEvictionsTotal.WithLabelValues("closed").Inc()
			continue
		default:
		}

		if _, err := client.Sink.Write(data); err != nil {
			b.registry.Remove(client.ID)
			if closer, ok := client.Sink.(interface{ Close() }); ok {
				closer.Close()
			}
			metrics.ListenerEvictionsTotal.WithLabelValues(evictionReason(err)).Inc()
			slog.Debug("Dropping listener after failed write", "listener_id", client.ID.String(), "error", err)
			continue
		}
		delivered++
	}

	metrics.BroadcastChunksTotal.Inc()
	metrics.BroadcastFanoutDuration.Observe(time.Since(start).Seconds())
	return delivered
}

func evictionReason(err error) string {
	switch {
	case errors.Is(err, ErrSlowListener):
		return "slow"
	case errors.Is(err, ErrSinkClosed):
		return "closed"
	default:
		return "write_error"
	}
}
