// Package events captures shopper behavior and folds it into product counters.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shelfrank/internal/models"
)

var (
	// ErrProductIDRequired is returned for click, add_to_cart and purchase events without a product.
	ErrProductIDRequired = errors.New("product_id is required")
	// ErrUnknownEventType is returned for event types outside the supported set.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrQueueClosed is returned when publishing after Close.
	ErrQueueClosed = errors.New("event queue closed")
)

// DefaultBufferSize is used when NewQueue is given a non-positive size.
const DefaultBufferSize = 1024

// Validate checks ev's type and product reference.
func Validate(ev *models.Event) error {
	if ev == nil || !ev.Type.Valid() {
		var t models.EventType
		if ev != nil {
			t = ev.Type
		}
		return fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	if ev.Type.RequiresProduct() && ev.ProductID == "" {
		return fmt.Errorf("%w for %s events", ErrProductIDRequired, ev.Type)
	}
	return nil
}

// Stamp returns a copy of ev with an ID and a UTC timestamp filled in when missing.
func Stamp(ev *models.Event) *models.Event {
	stamped := *ev
	if stamped.ID == "" {
		stamped.ID = uuid.New().String()
	}
	if stamped.Timestamp.IsZero() {
		stamped.Timestamp = time.Now().UTC()
	}
	return &stamped
}

// Queue is a bounded in-process event stream. Publish blocks while the buffer is full.
type Queue struct {
	ch   chan *models.Event
	done chan struct{}
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding up to size pending events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Queue{
		ch:   make(chan *models.Event, size),
		done: make(chan struct{}),
	}
}

// Publish validates ev, stamps it with an ID and a UTC timestamp when missing, and
// enqueues it. The stamped event is returned.
func (q *Queue) Publish(ctx context.Context, ev *models.Event) (*models.Event, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}
	stamped := Stamp(ev)

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	select {
	case q.ch <- stamped:
		return stamped, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events is the receive side of the queue. It is closed after Close once
// every accepted event has been delivered.
func (q *Queue) Events() <-chan *models.Event {
	return q.ch
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting events. Buffered events stay readable from Events.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}
