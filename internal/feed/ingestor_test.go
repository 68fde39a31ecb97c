package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/queue"
	redisstore "github.com/dev-starline/thecalcify/internal/redis"
)

func setupIngestor(t *testing.T) (*miniredis.Miniredis, *redisstore.TickStore, *queue.DeliveryQueue) {
	t.Helper()

	srv := miniredis.RunT(t)
	client, err := redisstore.NewClient("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewTickStore(client)
	q := queue.New(16)
	t.Cleanup(q.Close)

	ing := NewIngestor(client.Underlying(), "excel", store, q)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ing.Start(ctx)

	// Give the subscription time to establish
	waitForSubscriber(t, client.Underlying(), "excel")

	return srv, store, q
}

func waitForSubscriber(t *testing.T, rdb *goredis.Client, channel string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		counts, err := rdb.PubSubNumSub(context.Background(), channel).Result()
		if err == nil && counts[channel] > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("feed subscription never established")
}

func dequeueWithTimeout(t *testing.T, q *queue.DeliveryQueue) queue.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	entry, err := q.Dequeue(ctx)
	require.NoError(t, err)
	return entry
}

func TestIngestor_TickWrittenAndEnqueued(t *testing.T) {
	srv, store, q := setupIngestor(t)

	srv.Publish("excel", `{"i":"GOLD","b":"1925.3","a":"1925.8","ltp":"1925.5"}`)

	entry := dequeueWithTimeout(t, q)
	assert.Equal(t, "GOLD", entry.Group)

	var tick domain.Tick
	require.NoError(t, json.Unmarshal(entry.Payload, &tick))
	assert.Equal(t, "1925.5", tick.LTP)

	cached, ok, err := store.Get(context.Background(), "GOLD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1925.3", cached.Bid)
}

func TestIngestor_MalformedMessageDoesNotStopIngestion(t *testing.T) {
	srv, _, q := setupIngestor(t)

	srv.Publish("excel", `{not json`)
	srv.Publish("excel", `{"b":"1.0"}`) // missing identifier
	srv.Publish("excel", `{"i":"SILVER","ltp":"23.1"}`)

	entry := dequeueWithTimeout(t, q)
	assert.Equal(t, "SILVER", entry.Group)
	assert.Equal(t, 0, q.Len())
}

func TestIngestor_MultipleSymbolsFanIntoSeparateGroups(t *testing.T) {
	srv, store, q := setupIngestor(t)

	srv.Publish("excel", `{"i":"GOLD","ltp":"1925.5"}`)
	srv.Publish("excel", `{"i":"SILVER","ltp":"23.1"}`)

	groups := map[string]bool{}
	for n := 0; n < 2; n++ {
		entry := dequeueWithTimeout(t, q)
		groups[entry.Group] = true
	}
	assert.True(t, groups["GOLD"])
	assert.True(t, groups["SILVER"])

	require.Eventually(t, func() bool {
		_, ok, err := store.Get(context.Background(), "SILVER")
		return err == nil && ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIngestor_SymbolKeyIsCanonical(t *testing.T) {
	srv, store, q := setupIngestor(t)

	srv.Publish("excel", `{"i":" gold ","ltp":"1925.5"}`)

	entry := dequeueWithTimeout(t, q)
	assert.Equal(t, "GOLD", entry.Group)

	_, ok, err := store.Get(context.Background(), "GOLD")
	require.NoError(t, err)
	assert.True(t, ok)
}
