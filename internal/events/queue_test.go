package events

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		ev   *models.Event
		want error
	}{
		{"click", &models.Event{Type: models.EventClick, ProductID: "P1"}, nil},
		{"search without product", &models.Event{Type: models.EventSearch, Query: "shoes"}, nil},
		{"purchase without product", &models.Event{Type: models.EventPurchase}, ErrProductIDRequired},
		{"add_to_cart without product", &models.Event{Type: models.EventAddToCart}, ErrProductIDRequired},
		{"unknown type", &models.Event{Type: "bounce", ProductID: "P1"}, ErrUnknownEventType},
		{"nil", nil, ErrUnknownEventType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ev)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQueue_PublishStamps(t *testing.T) {
	q := NewQueue(4)
	in := &models.Event{Type: models.EventClick, ProductID: "P1"}
	ev, err := q.Publish(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	assert.Empty(t, in.ID, "caller's event is not mutated")
	assert.Equal(t, 1, q.Len())

	got := <-q.Events()
	assert.Equal(t, ev.ID, got.ID)

	other, err := q.Publish(context.Background(), &models.Event{Type: models.EventClick, ProductID: "P1"})
	require.NoError(t, err)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestQueue_PublishRejectsInvalid(t *testing.T) {
	q := NewQueue(1)
	_, err := q.Publish(context.Background(), &models.Event{Type: models.EventPurchase})
	assert.ErrorIs(t, err, ErrProductIDRequired)
	assert.Zero(t, q.Len())
}

func TestQueue_FullQueueHonoursContext(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()
	_, err := q.Publish(ctx, &models.Event{Type: models.EventSearch, Query: "a"})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = q.Publish(short, &models.Event{Type: models.EventSearch, Query: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()
	_, err := q.Publish(ctx, &models.Event{Type: models.EventSearch, Query: "a"})
	require.NoError(t, err)
	q.Close()
	q.Close()

	_, err = q.Publish(ctx, &models.Event{Type: models.EventSearch, Query: "b"})
	assert.ErrorIs(t, err, ErrQueueClosed)

	ev, ok := <-q.Events()
	require.True(t, ok, "buffered event survives close")
	assert.Equal(t, "a", ev.Query)
	_, ok = <-q.Events()
	assert.False(t, ok)
}

func TestQueue_CloseUnblocksPublisher(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()
	_, err := q.Publish(ctx, &models.Event{Type: models.EventSearch, Query: "a"})
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := q.Publish(ctx, &models.Event{Type: models.EventSearch, Query: "b"})
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher still blocked after close")
	}
}
