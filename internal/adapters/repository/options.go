package repository

import (
	"time"

	"github.com/okian/duel/internal/domain/rating"
	"github.com/okian/duel/pkg/logger"
)

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithRater sets the rating update rule. Defaults to Elo with K=32.
func WithRater(r rating.Rater) Option {
	return func(s *TreapStore) {
		if r != nil {
			s.rater = r
		}
	}
}

// WithLockStripes sets the number of per-item lock stripes.
func WithLockStripes(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.stripes = n
		}
	}
}

// WithPersister makes every ApplyResult write through p before it commits in memory.
func WithPersister(p Persister) Option {
	return func(s *TreapStore) {
		s.persister = p
	}
}

// WithClock overrides the timestamp source for results.
func WithClock(now func() time.Time) Option {
	return func(s *TreapStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *TreapStore) {
		if l != nil {
			s.log = l
		}
	}
}
