// Package selector picks the next pair of items to show a voter.
//
// The first item favours items with few comparisons (exploration); its
// partner favours items with a similar rating (informative outcomes).
package selector

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/pkg/metrics"
)

// Default selection parameters.
const (
	DefaultScanThreshold = 512
	DefaultThreshold     = 100.0
	DefaultScale         = 200.0
	DefaultWindow        = 50
	DefaultAttempts      = 16
)

// Viewer exposes a consistent read view of the ranked items.
type Viewer interface {
	View(fn func(model.RankedView))
}

// Selector implements pair selection. It is safe for concurrent use.
type Selector struct {
	src Viewer

	mu  sync.Mutex
	rng *rand.Rand

	scanThreshold int
	threshold     float64
	scale         float64
	window        int
	attempts      int
	now           func() time.Time
}

// New creates a Selector reading from src.
func New(src Viewer, opts ...Option) *Selector {
	s := &Selector{
		src:           src,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // selection fairness, not security
		scanThreshold: DefaultScanThreshold,
		threshold:     DefaultThreshold,
		scale:         DefaultScale,
		window:        DefaultWindow,
		attempts:      DefaultAttempts,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Proximity is the unnormalised partner weight for a rating gap d: 1 up to
// the threshold, then exponential decay with the configured scale.
func (s *Selector) Proximity(d float64) float64 {
	d = math.Abs(d)
	if d <= s.threshold {
		return 1
	}
	return math.Exp(-(d - s.threshold) / s.scale)
}

// ExplorationWeight is the unnormalised first-item weight for an item with
// the given exploration bucket: 2^-bucket.
func ExplorationWeight(bucket int) float64 {
	return math.Ldexp(1, -bucket)
}

// SelectPair returns a fresh pairing for sessionID. When previous is not nil
// and at least three items exist, the same unordered pair is never returned
// again back to back.
func (s *Selector) SelectPair(_ context.Context, sessionID string, previous *model.Pairing) (model.Pairing, error) {
	start := time.Now()
	defer func() { metrics.RecordSelectionLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	var (
		a, b model.Item
		err  error
	)
	s.src.View(func(v model.RankedView) {
		n := v.Len()
		if n < 2 {
			err = ErrInsufficientItems
			return
		}
		forbid := func(x, y model.Item) bool { return false }
		if previous != nil && n >= 3 {
			prev := *previous
			forbid = func(x, y model.Item) bool { return prev.Same(x.ID, y.ID) }
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if n <= s.scanThreshold {
			a, b = s.scan(v, forbid)
		} else {
			a, b = s.sample(v, forbid)
		}
	})
	if err != nil {
		return model.Pairing{}, err
	}

	metrics.RecordPairIssued()
	return model.Pairing{SessionID: sessionID, A: a, B: b, IssuedAt: s.now()}, nil
}

// scan draws both items exactly over every item. Caller holds mu.
func (s *Selector) scan(v model.RankedView, forbid func(x, y model.Item) bool) (model.Item, model.Item) {
	items := make([]model.Item, 0, v.Len())
	v.Each(func(_ int, it model.Item) bool {
		items = append(items, it)
		return true
	})

	weights := make([]float64, len(items))
	for i, it := range items {
		weights[i] = ExplorationWeight(model.ExplorationBucket(it.Comparisons))
	}
	ai := s.pickWeighted(weights)
	a := items[ai]

	nearest, nearestGap := -1, math.Inf(1)
	for i, it := range items {
		weights[i] = 0
		if i == ai || forbid(a, it) {
			continue
		}
		gap := math.Abs(a.Rating - it.Rating)
		weights[i] = s.Proximity(gap)
		if gap < nearestGap {
			nearest, nearestGap = i, gap
		}
	}
	if bi := s.pickWeighted(weights); bi >= 0 {
		return a, items[bi]
	}
	// every weight underflowed
	metrics.RecordSelectionFallback()
	return a, items[nearest]
}

// sample draws the first item from the exploration buckets and its partner by
// rejection sampling inside a rank window. Caller holds mu.
func (s *Selector) sample(v model.RankedView, forbid func(x, y model.Item) bool) (model.Item, model.Item) {
	a := s.pickExplorer(v)
	r, _ := v.RankOf(a.ID)
	n := v.Len()

	lo, hi := max(0, r-s.window), min(n-1, r+s.window)
	span := hi - lo // candidates in the window besides a
	for attempt := 0; attempt < s.attempts && span > 0; attempt++ {
		k := lo + s.rng.Intn(span)
		if k >= r {
			k++
		}
		c, ok := v.At(k)
		if !ok || forbid(a, c) {
			continue
		}
		if s.rng.Float64() < s.Proximity(a.Rating-c.Rating) {
			return a, c
		}
	}

	metrics.RecordSelectionFallback()
	for d := 1; d < n; d++ {
		for _, k := range [2]int{r - d, r + d} {
			if k < 0 || k >= n {
				continue
			}
			if c, ok := v.At(k); ok && !forbid(a, c) {
				return a, c
			}
		}
	}
	// not reached: forbid excludes at most one partner and only when n >= 3
	c, _ := v.At((r + 1) % n)
	return a, c
}

// pickExplorer chooses a bucket with probability proportional to
// size*2^-bucket, then an item uniformly inside it.
func (s *Selector) pickExplorer(v model.RankedView) model.Item {
	sizes := v.BucketSizes()
	weights := make([]float64, len(sizes))
	for b, size := range sizes {
		weights[b] = float64(size) * ExplorationWeight(b)
	}
	b := s.pickWeighted(weights)
	it, _ := v.BucketAt(b, s.rng.Intn(sizes[b]))
	return it
}

// pickWeighted returns an index drawn proportionally to weights, or -1 when
// every weight is zero.
func (s *Selector) pickWeighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	x := s.rng.Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		if x < w {
			return i
		}
		x -= w
	}
	return last
}
