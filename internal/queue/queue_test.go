package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
)

func TestQueue_FIFOAcrossGroups(t *testing.T) {
	q := New(10)
	q.Enqueue("GOLD", []byte("g1"))
	q.Enqueue("SILVER", []byte("s1"))

	ctx := context.Background()
	e1, err := q.Dequeue(ctx)
	require.NoError(t, err)
	e2, err := q.Dequeue(ctx)
	require.NoError(t, err)

	assert.Equal(t, "GOLD", e1.Group)
	assert.Equal(t, "SILVER", e2.Group)
}

func TestQueue_CoalescesSameGroup(t *testing.T) {
	q := New(10)
	q.Enqueue("GOLD", []byte("stale"))
	q.Enqueue("SILVER", []byte("s1"))
	q.Enqueue("GOLD", []byte("fresh"))

	ctx := context.Background()
	e1, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// GOLD keeps its original position but carries the fresher payload
	assert.Equal(t, "GOLD", e1.Group)
	assert.Equal(t, []byte("fresh"), e1.Payload)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DoesNotDropOtherSymbols(t *testing.T) {
	q := New(10)
	for n := 0; n < 100; n++ {
		q.Enqueue("GOLD", []byte("hot"))
	}
	q.Enqueue("SILVER", []byte("rare"))

	// A high-frequency symbol must not starve a quiet one
	assert.Equal(t, 2, q.Len())
}

func TestQueue_EvictsOldestAtCapacity(t *testing.T) {
	q := New(2)
	q.Enqueue("A", []byte("a"))
	q.Enqueue("B", []byte("b"))
	q.Enqueue("C", []byte("c"))

	ctx := context.Background()
	e1, err := q.Dequeue(ctx)
	require.NoError(t, err)
	e2, err := q.Dequeue(ctx)
	require.NoError(t, err)

	assert.Equal(t, "B", e1.Group)
	assert.Equal(t, "C", e2.Group)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CountsCoalesceAndEvictionSeparately(t *testing.T) {
	coalescedBefore := testutil.ToFloat64(metrics.QueueCoalescedTotal)
	evictedBefore := testutil.ToFloat64(metrics.QueueEvictedTotal)

	q := New(2)
	q.Enqueue("A", []byte("stale"))
	q.Enqueue("A", []byte("fresh")) // same group, replaces in place
	q.Enqueue("B", []byte("b"))
	q.Enqueue("C", []byte("c")) // at capacity, oldest group A is dropped

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueueCoalescedTotal)-coalescedBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueueEvictedTotal)-evictedBefore)
}

func TestQueue_ProducerNeverBlocks(t *testing.T) {
	q := New(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			q.Enqueue("SYM", []byte{byte(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on a full queue")
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(10)

	got := make(chan Entry, 1)
	go func() {
		e, err := q.Dequeue(context.Background())
		if err == nil {
			got <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue("GOLD", []byte("g"))

	select {
	case e := <-got:
		assert.Equal(t, "GOLD", e.Group)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never woke up")
	}
}

func TestQueue_DequeueContextCancelled(t *testing.T) {
	q := New(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_CloseDrainsThenErrors(t *testing.T) {
	q := New(10)
	q.Enqueue("GOLD", []byte("g"))
	q.Close()

	ctx := context.Background()
	e, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "GOLD", e.Group)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}

func TestQueue_EnqueueAfterCloseIgnored(t *testing.T) {
	q := New(10)
	q.Close()
	q.Enqueue("GOLD", []byte("g"))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New(100)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Enqueue(string(rune('A'+p)), []byte{byte(i)})
			}
		}(p)
	}
	wg.Wait()

	// One pending entry per group, holding that group's last payload
	assert.Equal(t, 8, q.Len())
	for n := 0; n < 8; n++ {
		e, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(999 % 256)}, e.Payload)
	}
}
