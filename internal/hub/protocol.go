package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
	"github.com/dev-starline/thecalcify/internal/payload"
)

// Command is one inbound client message.
type Command struct {
	Action   string   `json:"action"`
	Room     string   `json:"room,omitempty"`
	DeviceID string   `json:"deviceId,omitempty"`
	User     string   `json:"user,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
}

const genericErrorNotice = "Something went wrong while processing your request."

// HandleCommand processes one inbound message from a connection. Every
// failure path degrades to an error notice on that connection; nothing a
// single client sends can take the hub down.
func (h *Hub) HandleCommand(ctx context.Context, connID string, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		slog.Warn("Unparseable client command", "conn_id", connID, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}

	switch cmd.Action {
	case "client":
		h.handleClientJoin(ctx, connID, cmd.Room)
	case "clientWithDevice":
		h.handleClientWithDevice(ctx, connID, cmd.Room, cmd.DeviceID)
	case "allClients":
		h.handleAllClients(ctx, connID)
	case "subscribeSymbols":
		h.handleSubscribeSymbols(ctx, connID, cmd.Symbols)
	case "subscribeUsers":
		h.handleSubscribeUsers(connID, cmd.User)
	case "lastTick":
		h.handleLastTick(ctx, connID, cmd.Symbols)
	case "rates":
		h.handleRates(ctx, connID, cmd.User)
	default:
		slog.Warn("Unknown client command", "conn_id", connID, "action", cmd.Action)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
	}
}

// JoinIdentity puts a freshly upgraded connection into its identity room
// before any command arrives. Used when the client announces itself via
// the connection URL.
func (h *Hub) JoinIdentity(ctx context.Context, connID, room string) {
	h.handleClientJoin(ctx, connID, room)
}

// handleClientJoin switches the connection into an identity room and
// delivers the join-time snapshot: entitlement summary plus the user's
// symbol list.
func (h *Hub) handleClientJoin(ctx context.Context, connID, room string) {
	room = strings.TrimSpace(room)
	if room == "" {
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}

	start := h.clock.Now()
	defer func() { metrics.HubSnapshotDuration.Observe(h.clock.Since(start).Seconds()) }()

	groupName := h.resolver.Room(room)
	h.registry.JoinRoom(connID, groupName)
	h.directory.Add(room, connID)

	snapshot, err := h.app.AccessSnapshot(ctx, room)
	if err != nil {
		slog.Error("Access snapshot failed", "conn_id", connID, "room", room, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}
	h.sendTo(connID, domain.Envelope{Event: domain.EventReceiveMessage, Data: snapshot})

	symbols, err := h.app.SymbolList(ctx, room)
	if err != nil {
		slog.Error("Symbol list lookup failed", "conn_id", connID, "room", room, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}
	h.sendTo(connID, domain.Envelope{Event: domain.EventUserListOfSymbol, Data: symbols})
}

// handleClientWithDevice joins a device-scoped room and delivers the
// snapshot narrowed to that device's access.
func (h *Hub) handleClientWithDevice(ctx context.Context, connID, room, deviceID string) {
	room = strings.TrimSpace(room)
	deviceID = strings.TrimSpace(deviceID)
	if room == "" || deviceID == "" {
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}

	start := h.clock.Now()
	defer func() { metrics.HubSnapshotDuration.Observe(h.clock.Since(start).Seconds()) }()

	h.registry.JoinRoom(connID, h.resolver.DeviceRoom(room, deviceID))

	snapshot, err := h.app.DeviceAccessSnapshot(ctx, room, deviceID)
	if err != nil {
		slog.Error("Device access snapshot failed", "conn_id", connID, "room", room, "device_id", deviceID, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}
	h.sendTo(connID, domain.Envelope{Event: domain.EventReceiveMessage, Data: snapshot})
}

// handleAllClients joins the dashboard room and delivers the current
// client list.
func (h *Hub) handleAllClients(ctx context.Context, connID string) {
	h.registry.JoinRoom(connID, h.resolver.Room(domain.AllClientsRoom))

	list, err := h.app.ClientList(ctx)
	if err != nil {
		slog.Error("Client list lookup failed", "conn_id", connID, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}
	h.sendTo(connID, domain.Envelope{Event: domain.EventReceiveAllClient, Data: list})
}

// handleSubscribeSymbols adds symbol-group subscriptions and delivers
// the cached snapshot for each symbol before any incremental push.
func (h *Hub) handleSubscribeSymbols(ctx context.Context, connID string, symbols []string) {
	for _, symbol := range symbols {
		symbol = domain.CanonicalSymbol(symbol)
		if symbol == "" {
			continue
		}
		h.registry.Join(connID, symbol)
		h.sendTickSnapshot(ctx, connID, symbol)
	}
}

// handleSubscribeUsers subscribes the connection to another identity's
// room for targeted notification delivery.
func (h *Hub) handleSubscribeUsers(connID, user string) {
	user = strings.TrimSpace(user)
	if user == "" {
		return
	}
	h.registry.Join(connID, h.resolver.Room(user))
}

// handleLastTick re-delivers the cached snapshot for a set of symbols
// without changing subscriptions.
func (h *Hub) handleLastTick(ctx context.Context, connID string, symbols []string) {
	for _, symbol := range symbols {
		symbol = domain.CanonicalSymbol(symbol)
		if symbol == "" {
			continue
		}
		h.sendTickSnapshot(ctx, connID, symbol)
	}
}

// handleRates delivers the caller's full rate view in one frame: the
// cached tick for every instrument the named user is subscribed to,
// placeholders included, compressed like a live push.
func (h *Hub) handleRates(ctx context.Context, connID, user string) {
	user = strings.TrimSpace(user)
	if user == "" {
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}

	start := h.clock.Now()
	defer func() { metrics.HubSnapshotDuration.Observe(h.clock.Since(start).Seconds()) }()

	rates, err := h.app.RatesSnapshot(ctx, user)
	if errors.Is(err, domain.ErrNoInstruments) {
		rates = []domain.Tick{}
	} else if err != nil {
		slog.Error("Rates snapshot failed", "conn_id", connID, "user", user, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}

	data, err := json.Marshal(rates)
	if err != nil {
		slog.Error("Failed to serialize rates snapshot", "user", user, "error", err)
		return
	}

	compressed, err := payload.Gzip(data)
	if err != nil {
		slog.Error("Failed to compress rates snapshot", "user", user, "error", err)
		return
	}
	h.sendTo(connID, domain.Envelope{Event: domain.EventExcelRate, Data: compressed})
}

// sendTickSnapshot pushes the cached tick (or the sentinel placeholder)
// for one symbol to one connection, compressed the same way live pushes
// are.
func (h *Hub) sendTickSnapshot(ctx context.Context, connID, symbol string) {
	tick, err := h.app.LastTick(ctx, symbol)
	if err != nil {
		slog.Error("Last tick lookup failed", "conn_id", connID, "symbol", symbol, "error", err)
		h.sendTo(connID, domain.Envelope{Event: domain.EventError, Data: genericErrorNotice})
		return
	}

	data, err := tick.Marshal()
	if err != nil {
		slog.Error("Failed to serialize snapshot tick", "symbol", symbol, "error", err)
		return
	}

	compressed, err := payload.Gzip(data)
	if err != nil {
		slog.Error("Failed to compress snapshot tick", "symbol", symbol, "error", err)
		return
	}
	h.sendTo(connID, domain.Envelope{Event: domain.EventExcelRate, Data: compressed})
}
