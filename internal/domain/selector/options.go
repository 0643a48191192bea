package selector

import (
	"math/rand"
	"time"
)

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithSeed makes selection reproducible. Zero keeps the time-based seed.
func WithSeed(seed int64) Option {
	return func(s *Selector) {
		if seed != 0 {
			s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // selection fairness, not security
		}
	}
}

// WithScanThreshold sets the item count up to which selection scans every item exactly.
func WithScanThreshold(n int) Option {
	return func(s *Selector) {
		if n >= 0 {
			s.scanThreshold = n
		}
	}
}

// WithProximity sets the rating gap treated as equally close and the decay
// length of partner weights beyond it.
func WithProximity(threshold, scale float64) Option {
	return func(s *Selector) {
		if threshold >= 0 {
			s.threshold = threshold
		}
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithWindow sets the rank half-width searched for a partner and the number
// of rejection-sampling attempts before falling back to the nearest rank.
func WithWindow(window, attempts int) Option {
	return func(s *Selector) {
		if window > 0 {
			s.window = window
		}
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithClock overrides the IssuedAt source.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		if now != nil {
			s.now = now
		}
	}
}
