package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-starline/thecalcify/internal/domain"
)

func setupTestClient(t *testing.T) *Client {
	t.Helper()

	srv := miniredis.RunT(t)
	client, err := NewClient("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func goldTick() domain.Tick {
	return domain.Tick{
		Identifier: "GOLD",
		Bid:        "1925.3",
		Ask:        "1925.8",
		LTP:        "1925.5",
		High:       "1930.0",
		Low:        "1920.1",
		Open:       "1922.4",
		Close:      "1921.9",
		Timestamp:  "2026-08-28 10:15:03",
		Source:     domain.SourceFeed,
	}
}

func TestTickStore_SetAndGet(t *testing.T) {
	store := NewTickStore(setupTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, goldTick()))

	tick, ok, err := store.Get(ctx, "GOLD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1925.5", tick.LTP)
	assert.Equal(t, "GOLD", tick.Identifier)
}

func TestTickStore_Get_CaseInsensitive(t *testing.T) {
	store := NewTickStore(setupTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, goldTick()))

	_, ok, err := store.Get(ctx, "gold")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTickStore_Get_NeverTicked(t *testing.T) {
	store := NewTickStore(setupTestClient(t))

	_, ok, err := store.Get(context.Background(), "SILVER")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTickStore_LastWriteWins(t *testing.T) {
	store := NewTickStore(setupTestClient(t))
	ctx := context.Background()

	for i, ltp := range []string{"1925.5", "1926.0", "1926.7"} {
		tick := goldTick()
		tick.LTP = ltp
		require.NoError(t, store.Set(ctx, tick), "write %d", i)
	}

	tick, ok, err := store.Get(ctx, "GOLD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1926.7", tick.LTP)
}

func TestTickStore_GetMany(t *testing.T) {
	store := NewTickStore(setupTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, goldTick()))
	silver := goldTick()
	silver.Identifier = "SILVER"
	silver.LTP = "23.1"
	require.NoError(t, store.Set(ctx, silver))

	ticks, err := store.GetMany(ctx, []string{"GOLD", "SILVER", "COPPER"})
	require.NoError(t, err)
	assert.Len(t, ticks, 2)
	assert.Equal(t, "1925.5", ticks["GOLD"].LTP)
	assert.Equal(t, "23.1", ticks["SILVER"].LTP)
	assert.NotContains(t, ticks, "COPPER")
}

func TestTickStore_GetMany_Empty(t *testing.T) {
	store := NewTickStore(setupTestClient(t))

	ticks, err := store.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestTickStore_Delete(t *testing.T) {
	store := NewTickStore(setupTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, goldTick()))
	require.NoError(t, store.Delete(ctx, "GOLD"))

	_, ok, err := store.Get(ctx, "GOLD")
	require.NoError(t, err)
	assert.False(t, ok)
}
