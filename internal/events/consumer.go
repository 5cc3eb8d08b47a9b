package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Consumer applies queued events to the store on a worker pool.
type Consumer struct {
	queue  *Queue
	store  storage.ProductStore
	pool   *ants.Pool
	logger *zap.Logger

	wg        sync.WaitGroup
	applied   atomic.Int64
	dropped   atomic.Int64
	closeOnce sync.Once
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithLogger sets the logger for the consumer.
func WithLogger(logger *zap.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer creates a consumer with a pool of workers goroutines.
func NewConsumer(queue *Queue, store storage.ProductStore, workers int, opts ...ConsumerOption) (*Consumer, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create event worker pool: %w", err)
	}
	c := &Consumer{
		queue:  queue,
		store:  store,
		pool:   pool,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run dispatches events until the queue is closed and drained, or ctx is cancelled.
// It returns once every dispatched event has been applied.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.wg.Wait()
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.queue.Events():
			if !ok {
				return nil
			}
			c.wg.Add(1)
			if err := c.pool.Submit(func() {
				defer c.wg.Done()
				c.apply(work, ev)
			}); err != nil {
				c.wg.Done()
				c.dropped.Add(1)
				c.logger.Error("event dropped, worker pool unavailable",
					zap.String("event_id", ev.ID), zap.Error(err))
			}
		}
	}
}

func (c *Consumer) apply(ctx context.Context, ev *models.Event) {
	err := c.store.ApplyEvent(ctx, ev)
	switch {
	case err == nil:
		c.applied.Add(1)
		c.logger.Debug("event applied",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("product_id", ev.ProductID),
		)
	case errors.Is(err, storage.ErrProductNotFound):
		c.dropped.Add(1)
		c.logger.Warn("event for unknown product dropped",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("product_id", ev.ProductID),
		)
	default:
		c.dropped.Add(1)
		c.logger.Error("apply event failed", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// Applied returns how many events reached the store.
func (c *Consumer) Applied() int64 { return c.applied.Load() }

// Dropped returns how many events were discarded.
func (c *Consumer) Dropped() int64 { return c.dropped.Load() }

// Close waits for in-flight events and releases the worker pool.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		c.wg.Wait()
		c.pool.Release()
	})
}
