package domain

import "context"

// TickStore is the last-known-value cache: at most one Tick per symbol,
// last write wins. Shared across server instances and surviving restarts.
type TickStore interface {
	Set(ctx context.Context, tick Tick) error
	Get(ctx context.Context, symbol string) (Tick, bool, error)
	GetMany(ctx context.Context, symbols []string) (map[string]Tick, error)
	Delete(ctx context.Context, symbol string) error
}

// UserStore reads and writes the entitlement and subscription snapshots
// kept in the shared cache by the admin system.
type UserStore interface {
	UserDetails(ctx context.Context) ([]ClientAccess, error)
	SetUserDetails(ctx context.Context, details []ClientAccess) error
	UserInstruments(ctx context.Context, username string) ([]string, error)
}

// InstrumentResolver is the narrow boundary to the relational system
// owning client records and symbol-to-contract mapping. Implementations
// must tolerate being absent: a nil resolver degrades to pass-through
// display names and empty symbol lists, never to an error.
type InstrumentResolver interface {
	ClientID(ctx context.Context, username string) (int, error)
	SymbolList(ctx context.Context, clientID int) ([]SymbolEntry, error)
	MappedInstruments(ctx context.Context, clientID int, identifiers []string) ([]Instrument, error)
}

// GroupSender is the transport primitive the dispatcher consumes: deliver
// an already-compressed payload to every current member of a group.
// Implementations are fire-and-forget; per-connection failures are logged
// by the transport, not surfaced here.
type GroupSender interface {
	SendToGroup(group string, payload []byte)
}
