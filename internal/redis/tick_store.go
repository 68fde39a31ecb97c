package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dev-starline/thecalcify/internal/domain"
)

// TickStore holds the latest tick per symbol: one TTL-less key per
// symbol, overwritten in place on every ingest (last write wins).
type TickStore struct {
	rdb *goredis.Client
}

func NewTickStore(client *Client) *TickStore {
	return &TickStore{rdb: client.rdb}
}

// Set overwrites the cached tick for the tick's symbol.
func (s *TickStore) Set(ctx context.Context, tick domain.Tick) error {
	data, err := tick.Marshal()
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, tick.Symbol(), data, 0).Err(); err != nil {
		return fmt.Errorf("cache tick %q: %w", tick.Symbol(), err)
	}
	return nil
}

// Get returns the cached tick for a symbol. The second return value is
// false when the symbol has never ticked.
func (s *TickStore) Get(ctx context.Context, symbol string) (domain.Tick, bool, error) {
	raw, err := s.rdb.Get(ctx, domain.CanonicalSymbol(symbol)).Result()
	if err == goredis.Nil {
		return domain.Tick{}, false, nil
	}
	if err != nil {
		return domain.Tick{}, false, fmt.Errorf("read tick %q: %w", symbol, err)
	}

	var tick domain.Tick
	if err := json.Unmarshal([]byte(raw), &tick); err != nil {
		return domain.Tick{}, false, fmt.Errorf("decode cached tick %q: %w", symbol, err)
	}
	return tick, true, nil
}

// GetMany fetches cached ticks for a set of symbols with one MGET.
// Missing or undecodable values are simply absent from the result.
func (s *TickStore) GetMany(ctx context.Context, symbols []string) (map[string]domain.Tick, error) {
	if len(symbols) == 0 {
		return map[string]domain.Tick{}, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = domain.CanonicalSymbol(sym)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read ticks: %w", err)
	}

	ticks := make(map[string]domain.Tick, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var tick domain.Tick
		if err := json.Unmarshal([]byte(raw), &tick); err != nil {
			continue
		}
		ticks[keys[i]] = tick
	}
	return ticks, nil
}

// Delete removes a symbol from the cache. Used when a self-maintained
// instrument is unpublished.
func (s *TickStore) Delete(ctx context.Context, symbol string) error {
	if err := s.rdb.Del(ctx, domain.CanonicalSymbol(symbol)).Err(); err != nil {
		return fmt.Errorf("delete tick %q: %w", symbol, err)
	}
	return nil
}
