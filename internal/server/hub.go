// Package server tracks live connections for the SensorHub WebSocket system
// via the Hub type, the registry every broadcast and private message reads.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/sensorhub/internal/metrics"
)

// Connection is a registered client as seen by the hub and dispatcher.
type Connection interface {
	// Send enqueues data without blocking and reports whether it was accepted.
	Send(data []byte) bool
	// Open reports whether the connection can still accept data.
	Open() bool
	Close() error
}

// Hub is the connection registry. It maps generated identifiers to open
// connections and hands out consistent snapshots for fan-out.
type Hub struct {
	mutex   sync.RWMutex
	conns   map[string]Connection
	newID   func() string
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewHub creates an empty registry. A nil m gets a private, unexported set of metrics.
func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Hub{
		conns:   make(map[string]Connection),
		newID:   uuid.NewString,
		metrics: m,
	}
}

// Register stores conn under a freshly generated identifier and returns it.
func (h *Hub) Register(conn Connection) string {
	return h.RegisterWith(conn, nil)
}

// RegisterWith is Register with a greeting. greet runs under the registry
// lock, before any snapshot can include conn, so what it sends to conn is
// the first frame conn receives. greet must not call back into the hub.
func (h *Hub) RegisterWith(conn Connection, greet func(id string)) string {
	h.mutex.Lock()
	id := h.newID()
	for {
		if _, taken := h.conns[id]; !taken {
			break
		}
		id = h.newID()
	}
	h.conns[id] = conn
	if greet != nil {
		greet(id)
	}
	count := len(h.conns)
	h.mutex.Unlock()

	h.metrics.ConnectionsActive.Set(float64(count))
	slog.Info("Client registered", "client_id", id, "clients", count)
	return id
}

// Lookup returns the connection registered under id.
func (h *Hub) Lookup(id string) (Connection, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	conn, ok := h.conns[id]
	return conn, ok
}

// Unregister removes id and reports whether it was present. Removing an
// absent id is a no-op.
func (h *Hub) Unregister(id string) bool {
	h.mutex.Lock()
	_, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	count := len(h.conns)
	h.mutex.Unlock()

	if ok {
		h.metrics.ConnectionsActive.Set(float64(count))
		slog.Info("Client unregistered", "client_id", id, "clients", count)
	}
	return ok
}

// AllOpen returns a snapshot of the registered connections that are still open.
func (h *Hub) AllOpen() []Connection {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	conns := make([]Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		if conn.Open() {
			conns = append(conns, conn)
		}
	}
	return conns
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.conns)
}

// Go runs fn in a goroutine that Shutdown waits for.
func (h *Hub) Go(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// shutdownClients closes every registered connection.
func (h *Hub) shutdownClients() {
	slog.Info("Shutting down all client connections...")

	h.mutex.RLock()
	conns := make([]Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Warn("Error closing client connection", "error", err)
		}
	}

	slog.Info("Closed client connections", "count", len(conns))
}

// Shutdown closes all connections and waits for goroutines started with Go
// to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	slog.Info("Initiating hub shutdown...")

	h.shutdownClients()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		slog.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
