package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/duel/internal/adapters/mq/queue"
	"github.com/okian/duel/internal/adapters/mq/worker"
	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/pkg/logger"
)

// WriteBehind wraps a Persister so SaveResult only enqueues; a worker pool
// drains the queue into the wrapped Persister. A full queue rejects the
// write, which makes the store reject the vote.
//
// Row versioning makes out-of-order writes from concurrent workers safe.
// The workers outlive cancellation of the constructor's context; only Close
// stops them, after the queue is drained.
type WriteBehind struct {
	inner   Persister
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cancel  context.CancelFunc
	dropped atomic.Int64
	log     logger.Logger
}

// WriteBehindOption configures NewWriteBehind.
type WriteBehindOption func(*writeBehindConfig)

type writeBehindConfig struct {
	capacity int
	workers  int
	retries  int
	backoff  time.Duration
	log      logger.Logger
}

// WithQueueSize bounds the number of pending writes.
func WithQueueSize(n int) WriteBehindOption {
	return func(c *writeBehindConfig) { c.capacity = n }
}

// WithWorkers sets the number of draining workers.
func WithWorkers(n int) WriteBehindOption {
	return func(c *writeBehindConfig) { c.workers = n }
}

// WithRetry sets the per-write retry budget.
func WithRetry(retries int, backoff time.Duration) WriteBehindOption {
	return func(c *writeBehindConfig) {
		c.retries = retries
		c.backoff = backoff
	}
}

// WithWriteBehindLogger sets the logger.
func WithWriteBehindLogger(l logger.Logger) WriteBehindOption {
	return func(c *writeBehindConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// NewWriteBehind starts the worker pool; call Close to drain and stop it.
func NewWriteBehind(ctx context.Context, inner Persister, opts ...WriteBehindOption) *WriteBehind {
	cfg := writeBehindConfig{capacity: 10_000, workers: 2, retries: 3, backoff: 50 * time.Millisecond, log: logger.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &WriteBehind{
		inner:  inner,
		queue:  queue.NewInMemoryQueue(queue.WithCapacity(cfg.capacity)),
		cancel: cancel,
		log:    cfg.log,
	}
	w.pool = worker.NewPool(cfg.workers, w.queue, inner,
		worker.WithRetries(cfg.retries),
		worker.WithBackoff(cfg.backoff),
		worker.WithLogger(cfg.log.Named("persist")),
		worker.WithOnDrop(func(queue.Job, error) { w.dropped.Add(1) }),
	)
	w.pool.Start(runCtx)
	return w
}

// LoadAll implements Persister.
func (w *WriteBehind) LoadAll(ctx context.Context) ([]model.Item, error) {
	return w.inner.LoadAll(ctx)
}

// EnsureItems implements Persister synchronously; it only runs at startup.
func (w *WriteBehind) EnsureItems(ctx context.Context, items []model.Item) error {
	return w.inner.EnsureItems(ctx, items)
}

// SaveResult implements Persister by enqueueing.
func (w *WriteBehind) SaveResult(ctx context.Context, res model.Result) error {
	if err := w.queue.Enqueue(ctx, res); err != nil {
		switch {
		case errors.Is(err, queue.ErrFull):
			return ErrQueueFull
		case errors.Is(err, queue.ErrClosed):
			return ErrClosed
		default:
			return fmt.Errorf("write-behind enqueue: %w", err)
		}
	}
	return nil
}

// Pending returns the number of queued writes.
func (w *WriteBehind) Pending(ctx context.Context) int {
	return w.queue.Len(ctx)
}

// Dropped returns the number of writes given up after retries.
func (w *WriteBehind) Dropped() int64 {
	return w.dropped.Load()
}

// Close drains the queue, stops the workers and closes the wrapped Persister.
// Writes given up after retries are reported as ErrWritesDropped.
func (w *WriteBehind) Close() error {
	ctx := context.Background()
	err := w.pool.Shutdown(ctx)
	w.cancel()
	if n := w.dropped.Load(); n > 0 && err == nil {
		err = fmt.Errorf("%w: %d", ErrWritesDropped, n)
	}
	if cerr := w.inner.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		w.log.Error(ctx, "write-behind close", logger.Error(err))
	}
	return err
}
