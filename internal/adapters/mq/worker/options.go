// Package worker drains the write-behind queue into durable storage.
package worker

import (
	"time"

	"github.com/okian/duel/internal/adapters/mq/queue"
	"github.com/okian/duel/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetries sets how many times a failed write is retried before it is dropped.
func WithRetries(n int) Option {
	return func(w *InMemoryWorker) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithBackoff sets the base delay between retries; it doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

// WithOnDrop registers fn to be called for every job given up after retries.
func WithOnDrop(fn func(queue.Job, error)) Option {
	return func(w *InMemoryWorker) { w.onDrop = fn }
}
