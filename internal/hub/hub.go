package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
	"github.com/dev-starline/thecalcify/internal/registry"
)

// Snapshotter assembles the cached state delivered on join. Implemented
// by the app service; kept as an interface here so hub tests can stub it.
type Snapshotter interface {
	AccessSnapshot(ctx context.Context, username string) (domain.AccessSnapshot, error)
	DeviceAccessSnapshot(ctx context.Context, username, deviceID string) (domain.AccessSnapshot, error)
	ClientList(ctx context.Context) (domain.ClientList, error)
	SymbolList(ctx context.Context, username string) ([]domain.SymbolEntry, error)
	LastTick(ctx context.Context, symbol string) (domain.Tick, error)
	RatesSnapshot(ctx context.Context, username string) ([]domain.Tick, error)
}

// Hub owns the live connections of this instance. Group membership lives
// in the injected GroupRegistry, identity addressing in the injected
// ConnectionDirectory; the hub wires both to actual sockets.
type Hub struct {
	registry  *registry.GroupRegistry
	directory *registry.ConnectionDirectory
	resolver  domain.GroupResolver
	app       Snapshotter
	clock     clockwork.Clock

	mu       sync.RWMutex
	conns    map[string]*clientWriter
	maxConns int
}

func New(reg *registry.GroupRegistry, dir *registry.ConnectionDirectory, resolver domain.GroupResolver, app Snapshotter, clock clockwork.Clock, maxConns int) *Hub {
	return &Hub{
		registry:  reg,
		directory: dir,
		resolver:  resolver,
		app:       app,
		clock:     clock,
		conns:     make(map[string]*clientWriter),
		maxConns:  maxConns,
	}
}

// Register adopts an upgraded connection, assigns it an id and delivers
// the connect acknowledgement.
func (h *Hub) Register(conn *websocket.Conn) (string, error) {
	connID := uuid.NewString()
	cw := newClientWriter(conn, h.clock)

	h.mu.Lock()
	if len(h.conns) >= h.maxConns {
		h.mu.Unlock()
		cw.stopGraceful("server at connection capacity")
		return "", fmt.Errorf("max connections (%d) reached", h.maxConns)
	}
	h.conns[connID] = cw
	total := len(h.conns)
	h.mu.Unlock()

	metrics.HubConnectedClients.Set(float64(total))
	slog.Debug("Client connected", "conn_id", connID, "total_clients", total)

	h.sendTo(connID, domain.Envelope{Event: domain.EventUserConnected, Data: connID})
	return connID, nil
}

// Unregister tears a connection down: group cleanup, directory cleanup,
// writer stop, disconnect notice to the remaining clients.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	cw, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)
	total := len(h.conns)
	h.mu.Unlock()

	left := h.registry.LeaveAll(connID)
	h.directory.RemoveByConnection(connID)
	cw.stop()

	metrics.HubConnectedClients.Set(float64(total))
	slog.Debug("Client disconnected", "conn_id", connID, "groups_left", len(left), "total_clients", total)

	h.broadcastAll(domain.Envelope{Event: domain.EventUserDisconnected, Data: connID})
}

// Stop closes every live connection. Used on shutdown.
func (h *Hub) Stop() {
	h.mu.Lock()
	writers := make([]*clientWriter, 0, len(h.conns))
	for _, cw := range h.conns {
		writers = append(writers, cw)
	}
	h.conns = make(map[string]*clientWriter)
	h.mu.Unlock()

	for _, cw := range writers {
		cw.stopGraceful("server shutting down")
	}
	metrics.HubConnectedClients.Set(0)
	slog.Info("Hub stopped", "closed_connections", len(writers))
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SendToGroup delivers a compressed tick payload to every current member
// of a group. Implements the dispatcher's transport contract. A slow or
// failed member is evicted; the rest of the group still receives.
func (h *Hub) SendToGroup(group string, compressed []byte) {
	frame, err := json.Marshal(domain.Envelope{Event: domain.EventExcelRate, Data: compressed})
	if err != nil {
		slog.Error("Failed to frame group payload", "group", group, "error", err)
		return
	}
	h.deliverToGroup(group, frame)
}

// PublishToGroup delivers a plain JSON event to a group's members.
func (h *Hub) PublishToGroup(group string, env domain.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to frame group event", "group", group, "event", env.Event, "error", err)
		return
	}
	h.deliverToGroup(group, frame)
}

func (h *Hub) deliverToGroup(group string, frame []byte) {
	members := h.registry.Members(group)
	if len(members) == 0 {
		return
	}

	var slow []string
	h.mu.RLock()
	for _, connID := range members {
		cw, ok := h.conns[connID]
		if !ok {
			continue
		}
		if !cw.trySend(frame) {
			slow = append(slow, connID)
		}
	}
	h.mu.RUnlock()

	for _, connID := range slow {
		metrics.HubSlowClientsEvicted.Inc()
		slog.Warn("Evicting slow client", "conn_id", connID, "group", group)
		h.Unregister(connID)
	}
}

// SendToConnection delivers an event to one connection.
func (h *Hub) SendToConnection(connID string, env domain.Envelope) {
	h.sendTo(connID, env)
}

// SendToUser delivers an event to the identity's current connection, if
// any. Returns false when the identity is not connected to this instance.
func (h *Hub) SendToUser(username string, env domain.Envelope) bool {
	connID, ok := h.directory.Lookup(username)
	if !ok {
		return false
	}
	h.sendTo(connID, env)
	return true
}

func (h *Hub) sendTo(connID string, env domain.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to frame event", "event", env.Event, "error", err)
		return
	}

	h.mu.RLock()
	cw, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !cw.trySend(frame) {
		metrics.HubSlowClientsEvicted.Inc()
		h.Unregister(connID)
	}
}

func (h *Hub) broadcastAll(env domain.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cw := range h.conns {
		// best effort, a slow client is caught on the next group send
		_ = cw.trySend(frame)
	}
}
