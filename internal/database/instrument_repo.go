package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dev-starline/thecalcify/internal/domain"
)

// InstrumentRepo reads client records and symbol-to-contract mappings
// from the admin database. It satisfies domain.InstrumentResolver.
type InstrumentRepo struct {
	pool *pgxpool.Pool
}

func NewInstrumentRepo(pool *pgxpool.Pool) *InstrumentRepo {
	return &InstrumentRepo{pool: pool}
}

// ClientID resolves a username to its client record id.
func (r *InstrumentRepo) ClientID(ctx context.Context, username string) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM clients WHERE username = $1 AND is_active`, username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrClientNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve client %q: %w", username, err)
	}
	return id, nil
}

// SymbolList returns the client's mapped instruments in display order.
func (r *InstrumentRepo) SymbolList(ctx context.Context, clientID int) ([]domain.SymbolEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.identifier, i.contract
		   FROM client_instruments ci
		   JOIN instruments i ON i.id = ci.instrument_id
		  WHERE ci.client_id = $1
		  ORDER BY ci.position, i.identifier`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols for client %d: %w", clientID, err)
	}
	defer rows.Close()

	entries := make([]domain.SymbolEntry, 0)
	for rows.Next() {
		var e domain.SymbolEntry
		if err := rows.Scan(&e.Identifier, &e.Contract); err != nil {
			return nil, fmt.Errorf("failed to scan symbol row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol rows: %w", err)
	}
	return entries, nil
}

// MappedInstruments returns the identifier-to-contract mapping for the
// given identifiers, restricted to the client's own instruments.
func (r *InstrumentRepo) MappedInstruments(ctx context.Context, clientID int, identifiers []string) ([]domain.Instrument, error) {
	if len(identifiers) == 0 {
		return []domain.Instrument{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT i.identifier, i.contract
		   FROM client_instruments ci
		   JOIN instruments i ON i.id = ci.instrument_id
		  WHERE ci.client_id = $1
		    AND upper(i.identifier) = ANY($2)`, clientID, canonical(identifiers))
	if err != nil {
		return nil, fmt.Errorf("failed to map instruments for client %d: %w", clientID, err)
	}
	defer rows.Close()

	mapped := make([]domain.Instrument, 0, len(identifiers))
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Identifier, &inst.Contract); err != nil {
			return nil, fmt.Errorf("failed to scan instrument row: %w", err)
		}
		mapped = append(mapped, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instrument rows: %w", err)
	}
	return mapped, nil
}

func canonical(identifiers []string) []string {
	out := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		out = append(out, domain.CanonicalSymbol(id))
	}
	return out
}
