package events

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ids ...string) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	products := make([]*models.Product, len(ids))
	for i, id := range ids {
		products[i] = &models.Product{ProductID: id, Title: id}
	}
	require.NoError(t, store.CreateProducts(context.Background(), products))
	return store
}

func runConsumer(t *testing.T, c *Consumer) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	return done
}

func TestConsumer_AppliesCounters(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "P1", "P2")
	q := NewQueue(64)
	c, err := NewConsumer(q, store, 4)
	require.NoError(t, err)
	done := runConsumer(t, c)

	publish := func(typ models.EventType, id string, n int) {
		for i := 0; i < n; i++ {
			_, err := q.Publish(ctx, &models.Event{Type: typ, ProductID: id})
			require.NoError(t, err)
		}
	}
	publish(models.EventClick, "P1", 10)
	publish(models.EventAddToCart, "P1", 3)
	publish(models.EventPurchase, "P1", 2)
	publish(models.EventClick, "P2", 1)
	_, err = q.Publish(ctx, &models.Event{Type: models.EventSearch, Query: "red shoes"})
	require.NoError(t, err)

	q.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain")
	}
	c.Close()

	p1, err := store.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Click: 10, AddToCart: 3, Purchase: 2}, p1.Counters())
	p2, err := store.GetProduct(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p2.ClickCount)

	n, err := store.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
	assert.Equal(t, int64(17), c.Applied())
	assert.Zero(t, c.Dropped())
}

func TestConsumer_UnknownProductDropped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "P1")
	q := NewQueue(8)
	c, err := NewConsumer(q, store, 2)
	require.NoError(t, err)
	done := runConsumer(t, c)

	for _, id := range []string{"GHOST", "P1"} {
		_, err := q.Publish(ctx, &models.Event{Type: models.EventPurchase, ProductID: id})
		require.NoError(t, err)
	}
	q.Close()
	require.NoError(t, <-done)
	c.Close()

	assert.Equal(t, int64(1), c.Applied())
	assert.Equal(t, int64(1), c.Dropped())
	n, err := store.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "dropped event leaves no trace")
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	store := newStore(t)
	c, err := NewConsumer(NewQueue(1), store, 1)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestConsumer_ConcurrentPublishers(t *testing.T) {
	ctx := context.Background()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i)
	}
	store := newStore(t, ids...)
	q := NewQueue(16)
	c, err := NewConsumer(q, store, 4)
	require.NoError(t, err)
	done := runConsumer(t, c)

	errs := make(chan error, len(ids))
	for _, id := range ids {
		go func() {
			for i := 0; i < 20; i++ {
				if _, err := q.Publish(ctx, &models.Event{Type: models.EventClick, ProductID: id}); err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}()
	}
	for range ids {
		require.NoError(t, <-errs)
	}
	q.Close()
	require.NoError(t, <-done)
	c.Close()

	counters, err := store.AllCounters(ctx)
	require.NoError(t, err)
	for _, cnt := range counters {
		assert.Equal(t, int64(20), cnt.Click)
	}
}
