// Package worker drains the write-behind queue into durable storage.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/duel/internal/adapters/mq/queue"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetries      = 3
	defaultBackoff      = 50 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
)

// Writer persists one applied vote.
type Writer interface {
	SaveResult(ctx context.Context, res queue.Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker consumes jobs and writes them through a Writer.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	writer  Writer
	name    string
	retries int
	backoff time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	onDrop func(queue.Job, error)
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, w Writer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:    q,
		writer:   w,
		name:     "worker",
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Default().Named("worker"),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.name != "worker" {
		wk.logger = wk.logger.Named(wk.name)
	}
	return wk
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "dropping result after retries",
					logger.String("winner", j.Winner.ID),
					logger.String("loser", j.Loser.ID),
					logger.Error(err),
				)
				if w.onDrop != nil {
					w.onDrop(j, err)
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process writes one job, retrying with exponential backoff.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	delay := w.backoff
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = w.writer.SaveResult(ctx, j); err == nil {
			metrics.RecordPersistWrite()
			return nil
		}
		metrics.RecordPersistError("write_behind")
		w.logger.Warn(ctx, "write-behind attempt failed",
			logger.Int("attempt", attempt+1), logger.Error(err))
	}
	metrics.RecordErrorByComponent("worker", "persist_dropped")
	return err
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. opts apply to every worker.
func NewPool(workerCount int, q Queue, w Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Default().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, w, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, wk := range p.workers {
		go wk.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, wk := range p.workers {
		select {
		case <-wk.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
