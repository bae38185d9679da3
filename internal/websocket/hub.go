package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/radiocast/internal/domain"
	"github.com/pscheid92/radiocast/internal/metrics"
)

const (
	defaultMaxClients = 100
	sendBufferSize    = 16
	writeTimeout      = 5 * time.Second
)

var ErrHubStopped = errors.New("status hub stopped")

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	data []byte
}

func (cmdPublish) hubCmd() {}

type cmdGetClientCount struct {
	replyCh chan int
}

func (cmdGetClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// statusMessage is the frame every status client receives.
type statusMessage struct {
	Type  string               `json:"type"`
	State domain.PlaybackState `json:"state"`
}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Hub pushes playback state changes to connected status clients. All client bookkeeping
// happens on the hub goroutine.
type Hub struct {
	cmdCh      chan hubCmd
	stopped    chan struct{}
	stopOnce   sync.Once
	clients    map[*websocket.Conn]*clientWriter
	latest     []byte
	maxClients int
}

func NewHub(maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	hub := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[*websocket.Conn]*clientWriter),
		maxClients: maxClients,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	defer close(h.stopped)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdPublish:
			h.handlePublish(c)
		case cmdGetClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting status client", "max_clients", h.maxClients)
		_ = c.conn.Close()
		c.errCh <- fmt.Errorf("max status clients (%d) reached", h.maxClients)
		return
	}

	cw := newClientWriter(c.conn)
	h.clients[c.conn] = cw
	if h.latest != nil {
		cw.sendCh <- h.latest
	}
	metrics.StatusClientsCurrent.Set(float64(len(h.clients)))
	slog.Debug("Status client registered", "clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.StatusClientsCurrent.Set(float64(len(h.clients)))
	slog.Debug("Status client unregistered", "clients", len(h.clients))
}

func (h *Hub) handlePublish(c cmdPublish) {
	h.latest = c.data

	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Info("Disconnecting slow status client")
		metrics.StatusSlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.StatusClientsCurrent.Set(0)
}

// send hands cmd to the hub goroutine unless the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

// --- Public API ---

// Register adds conn to the feed. The client immediately receives the latest state.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.send(cmdRegister{conn: conn, errCh: errCh}) {
		_ = conn.Close()
		return ErrHubStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.stopped:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.send(cmdUnregister{conn: conn})
}

// Publish fans state out to every client. It never blocks on a slow client.
func (h *Hub) Publish(state domain.PlaybackState) {
	data, err := json.Marshal(statusMessage{Type: "state", State: state})
	if err != nil {
		slog.Error("Failed to marshal status message", "error", err)
		return
	}
	h.send(cmdPublish{data: data})
}

func (h *Hub) GetClientCount() int {
	replyCh := make(chan int, 1)
	if !h.send(cmdGetClientCount{replyCh: replyCh}) {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.stopped:
		return 0
	}
}

// Stop closes every client and waits for the hub goroutine to exit. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.send(cmdStop{})
	})
	<-h.stopped
}
