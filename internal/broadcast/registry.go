package broadcast

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/radiocast/internal/metrics"
)

// Sink is a listener's output channel. Done is closed once the listener is gone.
type Sink interface {
	io.Writer
	Done() <-chan struct{}
}

// Client is one registered listener.
type Client struct {
	ID   uuid.UUID
	Sink Sink
}

// Registry tracks active listeners.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]Sink
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[uuid.UUID]Sink)}
}

// Add registers sink under a fresh id. It never blocks on I/O and never fails.
func (r *Registry) Add(sink Sink) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	for r.clients[id] != nil {
		id = uuid.New()
	}
	r.clients[id] = sink

	metrics.ListenersCurrent.Set(float64(len(r.clients)))
	metrics.ListenerConnectionsTotal.Inc()
	slog.Debug("Listener registered", "listener_id", id.String(), "total_listeners", len(r.clients))
	return id
}

// Remove deregisters id. Unknown ids are ignored.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		return
	}
	delete(r.clients, id)

	metrics.ListenersCurrent.Set(float64(len(r.clients)))
	slog.Debug("Listener removed", "listener_id", id.String(), "remaining_listeners", len(r.clients))
}

// Has reports whether id is registered.
func (r *Registry) Has(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns the registered listeners at this instant. It is advisory: entries may be
// removed concurrently, so callers re-check liveness before writing.
func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Client, 0, len(r.clients))
	for id, sink := range r.clients {
		clients = append(clients, Client{ID: id, Sink: sink})
	}
	return clients
}

// CloseAll deregisters every listener and closes the sinks that support it. Used on shutdown
// so listener handlers return.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sink := range r.clients {
		if closer, ok := sink.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(r.clients, id)
	}
	metrics.ListenersCurrent.Set(0)
}
