// Package rating computes Elo updates for pairwise outcomes.
//
// The same K applies to every item; there is no per-item decay.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/duel/internal/domain/model"
)

// Default rating configuration constants.
const (
	DefaultKFactor = 32.0
	eloScale       = 400.0
)

// Rater turns a (winner, loser) pair into updated snapshots.
type Rater interface {
	// Apply returns the updated winner and loser plus the rating points exchanged.
	Apply(winner, loser model.Item) (model.Item, model.Item, float64, error)
}

// Elo implements Rater with the logistic expectation model.
type Elo struct {
	k float64
}

// New creates an Elo calculator with configuration options.
func New(opts ...Option) *Elo {
	e := &Elo{k: DefaultKFactor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// K returns the configured K-factor.
func (e *Elo) K() float64 { return e.k }

// Expected returns the probability that a player rated ra beats one rated rb.
func Expected(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rb-ra)/eloScale))
}

// Delta returns the points a winner rated rw takes from a loser rated rl.
func (e *Elo) Delta(rw, rl float64) float64 {
	return e.k * (1 - Expected(rw, rl))
}

// Apply implements Rater. Counters move with the rating: both comparisons,
// the winner's wins and the loser's losses are incremented.
func (e *Elo) Apply(winner, loser model.Item) (model.Item, model.Item, float64, error) {
	if winner.ID == loser.ID {
		return winner, loser, 0, ErrSameItem
	}
	if !finite(winner.Rating) || !finite(loser.Rating) {
		return winner, loser, 0, fmt.Errorf("rating.apply %s vs %s: %w", winner.ID, loser.ID, ErrInvalidRating)
	}

	d := e.Delta(winner.Rating, loser.Rating)

	winner.Rating += d
	winner.Comparisons++
	winner.Wins++

	loser.Rating -= d
	loser.Comparisons++
	loser.Losses++

	return winner, loser, d, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
