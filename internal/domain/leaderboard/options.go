package leaderboard

import (
	"time"

	"github.com/okian/duel/pkg/logger"
)

// Refresh policies.
const (
	// Eager rebuilds before Invalidate returns; reads are exact.
	Eager = "eager"
	// Interval marks the view dirty and rebuilds on a ticker; reads lag by at most the interval.
	Interval = "interval"
)

// Option applies a configuration option to the View.
type Option func(*View)

// WithPolicy selects Eager or Interval refresh.
func WithPolicy(policy string) Option {
	return func(v *View) {
		if policy == Eager || policy == Interval {
			v.policy = policy
		}
	}
}

// WithStaleness sets the rebuild interval for the Interval policy.
func WithStaleness(d time.Duration) Option {
	return func(v *View) {
		if d > 0 {
			v.staleness = d
		}
	}
}

// WithLogger sets the view logger.
func WithLogger(l logger.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.log = l
		}
	}
}
