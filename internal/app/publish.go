package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dev-starline/thecalcify/internal/domain"
)

// PushUserDetails re-delivers the current entitlement snapshot: the
// client list to the dashboard room and the per-user summary to the
// user's identity room. Called after the admin system refreshes the
// snapshot.
func (s *Service) PushUserDetails(ctx context.Context, username string) error {
	list, err := s.ClientList(ctx)
	if err != nil {
		return fmt.Errorf("push user details: %w", err)
	}
	s.pusher.PublishToGroup(s.resolver.Room(domain.AllClientsRoom), domain.Envelope{
		Event: domain.EventReceiveAllClient,
		Data:  list,
	})

	if username == "" {
		return nil
	}

	snapshot, err := s.AccessSnapshot(ctx, username)
	if err != nil {
		return fmt.Errorf("push user details for %q: %w", username, err)
	}
	s.pusher.PublishToGroup(s.resolver.Room(username), domain.Envelope{
		Event: domain.EventReceiveMessage,
		Data:  snapshot,
	})
	return nil
}

// NotifyNews fans a news payload out to the identity room of every
// active client in the list. Delivery is per-room; one unreachable room
// never affects the others.
func (s *Service) NotifyNews(clients []domain.ClientAccess, news any) {
	for _, c := range clients {
		if !c.IsActive {
			continue
		}
		s.pusher.PublishToGroup(s.resolver.Room(c.Username), domain.Envelope{
			Event: domain.EventReceiveNews,
			Data:  news,
		})
	}
}

// UpsertSelfTick stores a self-maintained instrument value and feeds it
// into the live delivery pipeline like any feed tick.
func (s *Service) UpsertSelfTick(ctx context.Context, tick domain.Tick) error {
	tick.Source = domain.SourceSelf
	if err := s.ticks.Set(ctx, tick); err != nil {
		return fmt.Errorf("upsert self tick: %w", err)
	}

	data, err := tick.Marshal()
	if err != nil {
		return err
	}
	if s.queue != nil {
		s.queue.Enqueue(tick.Symbol(), data)
	}
	return nil
}

// RemoveSelfTick removes a self-maintained instrument from the cache.
func (s *Service) RemoveSelfTick(ctx context.Context, symbol string) error {
	if err := s.ticks.Delete(ctx, symbol); err != nil {
		return fmt.Errorf("remove self tick: %w", err)
	}
	slog.Info("Self-maintained symbol removed", "symbol", domain.CanonicalSymbol(symbol))
	return nil
}
