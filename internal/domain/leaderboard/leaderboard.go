// Package leaderboard serves ranked, paginated snapshots of the rating store.
//
// Snapshots are immutable and published through an atomic pointer, so reads
// never take the store's locks.
package leaderboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/internal/domain/types"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

// Source lists items in canonical order.
type Source interface {
	ListAll(ctx context.Context) []model.Item
}

// Snapshot is one immutable ranking.
type Snapshot struct {
	Version uint64
	BuiltAt time.Time
	Entries []types.Entry
	byID    map[string]int
}

// Len returns the number of ranked items.
func (s *Snapshot) Len() int { return len(s.Entries) }

// Page returns up to limit entries starting at offset. The returned slice
// shares the snapshot's backing array and must not be modified.
func (s *Snapshot) Page(limit, offset int) ([]types.Entry, error) {
	if limit < 1 || offset < 0 {
		return nil, ErrInvalidLimit
	}
	if offset >= len(s.Entries) {
		return []types.Entry{}, nil
	}
	end := min(offset+limit, len(s.Entries))
	return s.Entries[offset:end], nil
}

// Lookup returns the entry for id.
func (s *Snapshot) Lookup(id string) (types.Entry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return types.Entry{}, false
	}
	return s.Entries[i], true
}

// View caches the leaderboard and keeps it fresh according to its policy.
type View struct {
	src       Source
	policy    string
	staleness time.Duration
	log       logger.Logger

	current atomic.Pointer[Snapshot]
	dirty   atomic.Bool
	version atomic.Uint64
	buildMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[uint64]func(*Snapshot)
	nextID uint64

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a View over src and builds the first snapshot.
func New(ctx context.Context, src Source, opts ...Option) *View {
	v := &View{
		src:       src,
		policy:    Eager,
		staleness: time.Second,
		log:       logger.Default(),
		subs:      make(map[uint64]func(*Snapshot)),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.current.Store(v.build(ctx))
	return v
}

// Policy returns the configured refresh policy.
func (v *View) Policy() string { return v.policy }

// Start runs the background refresher for the Interval policy. It is a no-op
// for Eager.
func (v *View) Start(ctx context.Context) {
	if v.policy != Interval {
		return
	}
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ticker := time.NewTicker(v.staleness)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.stop:
				return
			case <-ticker.C:
				v.refreshIfDirty(ctx)
			}
		}
	}()
}

// Stop halts the background refresher.
func (v *View) Stop() {
	v.stopOnce.Do(func() { close(v.stop) })
	v.wg.Wait()
}

// Invalidate records that the store changed. Call it after the change is
// committed: under Eager the published snapshot includes it on return.
func (v *View) Invalidate(ctx context.Context) {
	v.dirty.Store(true)
	if v.policy == Eager {
		v.refreshIfDirty(ctx)
	}
}

// Refresh rebuilds unconditionally.
func (v *View) Refresh(ctx context.Context) {
	v.dirty.Store(true)
	v.refreshIfDirty(ctx)
}

// refreshIfDirty rebuilds when a change is pending. A builder that finds the
// flag already cleared skips: whoever cleared it started reading the store
// after the change was committed.
func (v *View) refreshIfDirty(ctx context.Context) {
	v.buildMu.Lock()
	if !v.dirty.CompareAndSwap(true, false) {
		v.buildMu.Unlock()
		return
	}
	snap := v.build(ctx)
	v.current.Store(snap)
	v.buildMu.Unlock()

	v.notify(snap)
}

func (v *View) build(ctx context.Context) *Snapshot {
	start := time.Now()
	items := v.src.ListAll(ctx)
	entries := make([]types.Entry, len(items))
	byID := make(map[string]int, len(items))
	for i, it := range items {
		entries[i] = types.EntryFrom(0, it)
		byID[it.ID] = i
	}
	types.AssignDenseRanks(entries, 1)

	snap := &Snapshot{
		Version: v.version.Add(1),
		BuiltAt: time.Now(),
		Entries: entries,
		byID:    byID,
	}
	elapsed := time.Since(start)
	metrics.RecordLeaderboardRefresh()
	metrics.RecordLeaderboardBuildLatency(float64(elapsed.Microseconds()) / 1000)
	v.log.Debug(ctx, "leaderboard rebuilt",
		logger.Int("items", len(entries)), logger.Duration("took", elapsed), logger.Any("version", snap.Version))
	return snap
}

// Current returns the latest published snapshot.
func (v *View) Current() *Snapshot {
	return v.current.Load()
}

// Snapshot returns one page of the latest published snapshot.
func (v *View) Snapshot(limit, offset int) ([]types.Entry, error) {
	return v.Current().Page(limit, offset)
}

// Subscribe registers fn to receive every newly published snapshot. fn runs
// on the publishing goroutine and must not block. The returned func cancels
// the subscription.
func (v *View) Subscribe(fn func(*Snapshot)) func() {
	v.subsMu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.subsMu.Unlock()
	return func() {
		v.subsMu.Lock()
		delete(v.subs, id)
		v.subsMu.Unlock()
	}
}

func (v *View) notify(snap *Snapshot) {
	v.subsMu.RLock()
	defer v.subsMu.RUnlock()
	for _, fn := range v.subs {
		fn(snap)
	}
}
