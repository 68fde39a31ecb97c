package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dev-starline/thecalcify/internal/domain"
)

const userInstrumentKeyPrefix = "userInstrument:"

// UserStore reads and writes the entitlement and subscription snapshots
// shared with the admin system. All keys except the tick keys are
// prefixed per deployment so environments can share one Redis.
type UserStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewUserStore(client *Client, prefix string) *UserStore {
	return &UserStore{rdb: client.rdb, prefix: prefix}
}

func (s *UserStore) userDetailsKey() string {
	return s.prefix + "_UserDetails"
}

func (s *UserStore) userInstrumentKey(username string) string {
	return s.prefix + "_" + userInstrumentKeyPrefix + username
}

// UserDetails returns the entitlement snapshot for every client.
func (s *UserStore) UserDetails(ctx context.Context) ([]domain.ClientAccess, error) {
	raw, err := s.rdb.Get(ctx, s.userDetailsKey()).Result()
	if err == goredis.Nil {
		return nil, domain.ErrNoUserDetails
	}
	if err != nil {
		return nil, fmt.Errorf("read user details: %w", err)
	}

	var details []domain.ClientAccess
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, fmt.Errorf("decode user details: %w", err)
	}
	return details, nil
}

// SetUserDetails replaces the entitlement snapshot.
func (s *UserStore) SetUserDetails(ctx context.Context, details []domain.ClientAccess) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal user details: %w", err)
	}
	if err := s.rdb.Set(ctx, s.userDetailsKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("write user details: %w", err)
	}
	return nil
}

// UserInstruments resolves the symbols a user is subscribed to. The
// value is a one-entry map keyed by username, mirroring the snapshot
// format written by the admin system.
func (s *UserStore) UserInstruments(ctx context.Context, username string) ([]string, error) {
	raw, err := s.rdb.Get(ctx, s.userInstrumentKey(username)).Result()
	if err == goredis.Nil {
		return nil, domain.ErrNoInstruments
	}
	if err != nil {
		return nil, fmt.Errorf("read user instruments for %q: %w", username, err)
	}

	var userMap map[string][]string
	if err := json.Unmarshal([]byte(raw), &userMap); err != nil {
		return nil, fmt.Errorf("decode user instruments for %q: %w", username, err)
	}

	identifiers, ok := userMap[username]
	if !ok || len(identifiers) == 0 {
		return nil, domain.ErrNoInstruments
	}
	return identifiers, nil
}
