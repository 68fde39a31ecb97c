package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dev-starline/thecalcify/internal/domain"
)

// AccessSnapshot returns the join-time entitlement summary for an
// identity. A missing snapshot or unavailable cache yields an explicit
// "unknown identity" result, not an error: joins must always succeed.
func (s *Service) AccessSnapshot(ctx context.Context, username string) (domain.AccessSnapshot, error) {
	details, err := s.users.UserDetails(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoUserDetails) {
			slog.Warn("User details unavailable, degrading snapshot", "username", username, "error", err)
		}
		return domain.AccessSnapshot{Status: false, Data: []domain.ClientAccess{}}, nil
	}

	matched := make([]domain.ClientAccess, 0, 1)
	for _, d := range details {
		if d.Username == username {
			matched = append(matched, d)
		}
	}
	return domain.AccessSnapshot{Status: len(matched) > 0, Data: matched}, nil
}

// DeviceAccessSnapshot narrows the entitlement summary to one device.
func (s *Service) DeviceAccessSnapshot(ctx context.Context, username, deviceID string) (domain.AccessSnapshot, error) {
	snapshot, err := s.AccessSnapshot(ctx, username)
	if err != nil {
		return domain.AccessSnapshot{}, err
	}
	for i, d := range snapshot.Data {
		snapshot.Data[i] = d.ForDevice(deviceID)
	}
	return snapshot, nil
}

// ClientList returns the id/username list for the dashboard room.
func (s *Service) ClientList(ctx context.Context) (domain.ClientList, error) {
	details, err := s.users.UserDetails(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoUserDetails) {
			slog.Warn("User details unavailable, degrading client list", "error", err)
		}
		return domain.ClientList{Status: false, Data: []domain.ClientListEntry{}}, nil
	}

	entries := make([]domain.ClientListEntry, 0, len(details))
	for _, d := range details {
		entries = append(entries, domain.ClientListEntry{ID: d.ID, Username: d.Username})
	}
	return domain.ClientList{Status: true, Data: entries}, nil
}

// SymbolList returns the ordered identifier/contract list for a user's
// room join. Without an instrument resolver the list is empty.
func (s *Service) SymbolList(ctx context.Context, username string) ([]domain.SymbolEntry, error) {
	if s.instruments == nil {
		return []domain.SymbolEntry{}, nil
	}

	clientID, err := s.instruments.ClientID(ctx, username)
	if errors.Is(err, domain.ErrClientNotFound) {
		return []domain.SymbolEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.instruments.SymbolList(ctx, clientID)
}

// LastTick returns the cached tick for a symbol, or the sentinel
// placeholder when the symbol has never ticked or the cache is
// unreachable. Snapshot-on-join never errors toward the client.
func (s *Service) LastTick(ctx context.Context, symbol string) (domain.Tick, error) {
	tick, ok, err := s.ticks.Get(ctx, symbol)
	if err != nil {
		slog.Warn("Tick cache read failed, sending placeholder", "symbol", symbol, "error", err)
		return domain.PlaceholderTick(domain.CanonicalSymbol(symbol), ""), nil
	}
	if !ok {
		return domain.PlaceholderTick(domain.CanonicalSymbol(symbol), ""), nil
	}
	return tick, nil
}

// RatesSnapshot assembles the full rate view for a user: every
// subscribed symbol's cached tick with its display name resolved, plus
// placeholder records for mapped instruments that have never ticked.
func (s *Service) RatesSnapshot(ctx context.Context, username string) ([]domain.Tick, error) {
	identifiers, err := s.users.UserInstruments(ctx, username)
	if err != nil {
		return nil, err
	}

	ticks, err := s.ticks.GetMany(ctx, identifiers)
	if err != nil {
		return nil, err
	}

	names := s.displayNames(ctx, username, identifiers)

	result := make([]domain.Tick, 0, len(identifiers))
	for _, id := range identifiers {
		key := domain.CanonicalSymbol(id)
		tick, ok := ticks[key]
		if !ok {
			result = append(result, domain.PlaceholderTick(key, names[key]))
			continue
		}
		if name, found := names[key]; found && name != "" {
			tick.DisplayName = name
		}
		result = append(result, tick)
	}
	return result, nil
}

// displayNames resolves identifier to contract display name through the
// instrument boundary. Best effort: lookup failure leaves names as the
// feed sent them.
func (s *Service) displayNames(ctx context.Context, username string, identifiers []string) map[string]string {
	names := make(map[string]string)
	if s.instruments == nil {
		return names
	}

	clientID, err := s.instruments.ClientID(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrClientNotFound) {
			slog.Warn("Client lookup failed, keeping feed display names", "username", username, "error", err)
		}
		return names
	}

	mapped, err := s.instruments.MappedInstruments(ctx, clientID, identifiers)
	if err != nil {
		slog.Warn("Instrument mapping lookup failed, keeping feed display names", "username", username, "error", err)
		return names
	}
	for _, inst := range mapped {
		names[domain.CanonicalSymbol(inst.Identifier)] = inst.Contract
	}
	return names
}

// ActiveUsers returns the entitlement snapshot rows, optionally filtered
// to one username.
func (s *Service) ActiveUsers(ctx context.Context, username string) ([]domain.ClientAccess, error) {
	details, err := s.users.UserDetails(ctx)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return details, nil
	}
	for _, d := range details {
		if d.Username == username {
			return []domain.ClientAccess{d}, nil
		}
	}
	return []domain.ClientAccess{}, nil
}
