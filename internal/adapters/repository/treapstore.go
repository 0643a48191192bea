package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/internal/domain/rating"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

const defaultLockStripes = 256

// TreapStore is the in-memory Store. mu guards the ordered index (treap,
// id and text maps, exploration buckets); the striped locks serialize
// read-modify-write per item so votes on disjoint pairs run in parallel and
// only meet for the short index commit.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byID    map[string]model.Item
	byText  map[string]string
	buckets *explorationBuckets

	stripes   int
	locks     *stripedLocks
	rater     rating.Rater
	persister Persister
	now       func() time.Time
	log       logger.Logger

	hooksMu sync.RWMutex
	hooks   []func(model.Result)
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:    make(map[string]model.Item),
		byText:  make(map[string]string),
		buckets: newExplorationBuckets(),
		stripes: defaultLockStripes,
		rater:   rating.New(),
		now:     time.Now,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = newStripedLocks(s.stripes)
	return s
}

// Seed implements Store.Seed.
func (s *TreapStore) Seed(ctx context.Context, items []model.Item) (int, error) {
	for _, it := range items {
		if err := validItem(it); err != nil {
			return 0, err
		}
	}

	added := 0
	for _, it := range items {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		unlock := s.locks.lockOne(it.ID)
		s.mu.Lock()
		if _, ok := s.byID[it.ID]; !ok {
			s.put(it)
			added++
		}
		s.mu.Unlock()
		unlock()
	}

	n := s.Count(ctx)
	metrics.UpdateItemsTotal(n)
	s.log.Debug(ctx, "store seeded", logger.Int("added", added), logger.Int("items", n))
	return added, nil
}

func validItem(it model.Item) error {
	switch {
	case it.ID == "" || strings.TrimSpace(it.Text) == "":
		return fmt.Errorf("%w: empty id or text", ErrInvalidItem)
	case math.IsNaN(it.Rating) || math.IsInf(it.Rating, 0):
		return fmt.Errorf("%w: %s: rating %v", ErrInvalidItem, it.ID, it.Rating)
	case !it.Consistent():
		return fmt.Errorf("%w: %s: comparisons %d != wins %d + losses %d",
			ErrInvalidItem, it.ID, it.Comparisons, it.Wins, it.Losses)
	}
	return nil
}

// put inserts a new item into every index. Caller holds mu.
func (s *TreapStore) put(it model.Item) {
	s.byID[it.ID] = it
	s.byText[it.Text] = it.ID
	s.root = insert(s.root, it.ID, it.Rating)
	s.buckets.add(it.ID, it.Comparisons)
}

// replace swaps old for updated in the treap and buckets. Caller holds mu.
func (s *TreapStore) replace(old, updated model.Item) {
	s.root = deleteNode(s.root, old.ID, old.Rating)
	s.root = insert(s.root, updated.ID, updated.Rating)
	s.byID[updated.ID] = updated
	s.buckets.move(updated.ID, updated.Comparisons)
}

// Get implements Store.Get.
func (s *TreapStore) Get(_ context.Context, id string) (model.Item, error) {
	s.mu.RLock()
	it, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return it, nil
}

// ByText implements Store.ByText.
func (s *TreapStore) ByText(_ context.Context, text string) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byText[strings.TrimSpace(text)]
	if !ok {
		return model.Item{}, fmt.Errorf("%w: text %q", ErrNotFound, text)
	}
	return s.byID[id], nil
}

// ListAll implements Store.ListAll.
func (s *TreapStore) ListAll(_ context.Context) []model.Item {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, len(s.byID))
	walk(s.root, 0, func(n *node) bool {
		out = append(out, s.byID[n.id])
		return true
	})
	return out
}

// Page implements Store.Page.
func (s *TreapStore) Page(_ context.Context, offset, limit int) ([]model.Item, error) {
	if offset < 0 || limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, min(limit, len(s.byID)))
	walk(s.root, offset, func(n *node) bool {
		out = append(out, s.byID[n.id])
		return len(out) < limit
	})
	return out, nil
}

// Rank implements Store.Rank.
func (s *TreapStore) Rank(_ context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rankOf(s.root, it.ID, it.Rating) + 1, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ApplyResult implements Store.ApplyResult with O(log n) expected time.
//
// The durable write happens first, under the stripe locks of both items but
// outside mu. If it fails nothing in memory has changed. Change hooks run
// after every lock is released.
func (s *TreapStore) ApplyResult(ctx context.Context, winnerID, loserID string) (model.Result, error) {
	if winnerID == loserID {
		return model.Result{}, ErrSameItem
	}
	start := time.Now()
	defer func() { metrics.RecordStoreApplyLatency(msSince(start)) }()

	res, err := s.apply(ctx, winnerID, loserID)
	if err != nil {
		return model.Result{}, err
	}
	s.notify(res)
	return res, nil
}

func (s *TreapStore) apply(ctx context.Context, winnerID, loserID string) (model.Result, error) {
	unlock := s.locks.lockPair(winnerID, loserID)
	defer unlock()

	s.mu.RLock()
	w, okW := s.byID[winnerID]
	l, okL := s.byID[loserID]
	s.mu.RUnlock()
	if !okW {
		return model.Result{}, fmt.Errorf("%w: %s", ErrNotFound, winnerID)
	}
	if !okL {
		return model.Result{}, fmt.Errorf("%w: %s", ErrNotFound, loserID)
	}

	nw, nl, delta, err := s.rater.Apply(w, l)
	if err != nil {
		return model.Result{}, err
	}
	res := model.Result{Winner: nw, Loser: nl, Delta: delta, TS: s.now()}

	if s.persister != nil {
		if err := ctx.Err(); err != nil {
			return model.Result{}, err
		}
		if err := s.persister.SaveResult(ctx, res); err != nil {
			metrics.RecordPersistError("save_result")
			s.log.Error(ctx, "persist result failed",
				logger.String("winner", winnerID), logger.String("loser", loserID), logger.Error(err))
			return model.Result{}, fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	s.mu.Lock()
	s.replace(w, nw)
	s.replace(l, nl)
	s.mu.Unlock()
	return res, nil
}

// OnChange implements Store.OnChange.
func (s *TreapStore) OnChange(fn func(model.Result)) {
	if fn == nil {
		return
	}
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

func (s *TreapStore) notify(res model.Result) {
	s.hooksMu.RLock()
	hooks := s.hooks
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(res)
	}
}

// View implements Store.View. fn must not call back into the store.
func (s *TreapStore) View(fn func(Index)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(readIndex{s: s})
}

// readIndex is the Index handed to View callbacks; mu is read-held.
type readIndex struct {
	s *TreapStore
}

func (r readIndex) Len() int { return len(r.s.byID) }

func (r readIndex) At(rank int) (model.Item, bool) {
	n := selectRank(r.s.root, rank)
	if n == nil {
		return model.Item{}, false
	}
	return r.s.byID[n.id], true
}

func (r readIndex) RankOf(id string) (int, bool) {
	it, ok := r.s.byID[id]
	if !ok {
		return 0, false
	}
	return rankOf(r.s.root, it.ID, it.Rating), true
}

func (r readIndex) Item(id string) (model.Item, bool) {
	it, ok := r.s.byID[id]
	return it, ok
}

func (r readIndex) BucketSizes() []int { return r.s.buckets.sizes() }

func (r readIndex) BucketAt(bucket, i int) (model.Item, bool) {
	id, ok := r.s.buckets.at(bucket, i)
	if !ok {
		return model.Item{}, false
	}
	return r.s.byID[id], true
}

func (r readIndex) Each(fn func(rank int, it model.Item) bool) {
	rank := 0
	walk(r.s.root, 0, func(n *node) bool {
		ok := fn(rank, r.s.byID[n.id])
		rank++
		return ok
	})
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
