// Package service wires the rating store, pair selector, vote processor and
// leaderboard view into the operations used by the gateway and HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/duel/internal/adapters/persistence"
	"github.com/okian/duel/internal/adapters/repository"
	"github.com/okian/duel/internal/config"
	"github.com/okian/duel/internal/corpus"
	"github.com/okian/duel/internal/domain/leaderboard"
	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/internal/domain/rating"
	"github.com/okian/duel/internal/domain/selector"
	"github.com/okian/duel/internal/domain/types"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

// Receipt is the outcome of SubmitVote. Next is the fresh pair issued to the
// session whether or not the vote was accepted; it is nil only when no pair
// could be selected.
type Receipt struct {
	Accepted bool
	Reason   string
	Result   model.Result
	Next     *model.Pairing
}

// Service implements the ranking engine operations.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	// Core components
	store     *repository.TreapStore
	selector  *selector.Selector
	board     *leaderboard.View
	persister persistence.Persister
	sessions  *sessions

	corpus      []model.Item
	corpusTexts []string

	started  atomic.Bool
	accepted atomic.Int64
	rejected atomic.Int64
	now      func() time.Time
	logger   logger.Logger
}

// New constructs a Service. A nil cfg uses config.New defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:      cfg,
		sessions: newSessions(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the corpus and persisted ratings and brings up every component.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}
	s.logger.Info(ctx, "starting ranking service...")

	items, err := s.loadCorpus(ctx)
	if err != nil {
		return err
	}

	opened := false
	if s.persister == nil {
		p, err := openStore(ctx, s.cfg, s.logger)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBootstrap, err)
		}
		s.persister = p
		opened = true
	}
	// abort releases a persister opened by this call.
	abort := func(err error) error {
		if opened {
			if cerr := s.persister.Close(); cerr != nil {
				s.logger.Warn(ctx, "close store after failed start", logger.Error(cerr))
			}
			s.persister = nil
		}
		return err
	}
	if err := s.persister.EnsureItems(ctx, items); err != nil {
		return abort(fmt.Errorf("%w: ensure corpus: %w", ErrBootstrap, err))
	}
	persisted, err := s.persister.LoadAll(ctx)
	if err != nil {
		return abort(fmt.Errorf("%w: load ratings: %w", ErrBootstrap, err))
	}

	s.store = repository.NewTreapStore(
		repository.WithRater(rating.New(rating.WithKFactor(s.cfg.KFactor))),
		repository.WithLockStripes(s.cfg.LockStripes),
		repository.WithPersister(s.persister),
		repository.WithClock(s.now),
		repository.WithLogger(s.logger.Named("store")),
	)
	seeded, err := s.store.Seed(ctx, persistence.Merge(items, persisted))
	if err != nil {
		s.store = nil
		return abort(fmt.Errorf("%w: seed: %w", ErrBootstrap, err))
	}

	s.selector = selector.New(s.store,
		selector.WithSeed(s.cfg.SelectorSeed),
		selector.WithScanThreshold(s.cfg.ScanThreshold),
		selector.WithProximity(s.cfg.ProximityThreshold, s.cfg.ProximityScale),
		selector.WithWindow(s.cfg.SelectionWindow, s.cfg.SelectionAttempts),
		selector.WithClock(s.now),
	)

	s.board = leaderboard.New(ctx, s.store,
		leaderboard.WithPolicy(s.cfg.LeaderboardRefresh),
		leaderboard.WithStaleness(s.cfg.LeaderboardStaleness),
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
	)
	s.store.OnChange(func(model.Result) {
		s.board.Invalidate(context.WithoutCancel(ctx))
	})
	s.board.Start(context.WithoutCancel(ctx))

	s.started.Store(true)
	metrics.UpdateItemsTotal(seeded)
	s.logger.Info(ctx, "ranking service started",
		logger.Int("items", seeded),
		logger.Int("persisted", len(persisted)),
		logger.String("leaderboardRefresh", s.board.Policy()),
		logger.String("driver", s.cfg.StoreDriver),
	)
	return nil
}

func (s *Service) loadCorpus(ctx context.Context) ([]model.Item, error) {
	if s.corpus != nil {
		return s.corpus, nil
	}
	if s.corpusTexts != nil {
		items := make([]model.Item, 0, len(s.corpusTexts))
		for _, txt := range s.corpusTexts {
			items = append(items, model.NewItem(txt, s.cfg.InitialRating))
		}
		return items, nil
	}
	items, err := corpus.Load(ctx, s.cfg.CorpusPath, s.cfg.InitialRating)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBootstrap, err)
	}
	return items, nil
}

// Stop halts background work and closes the durable store, draining any
// write-behind queue.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping ranking service...")
	s.started.Store(false)

	if s.board != nil {
		s.board.Stop()
	}
	if s.persister != nil {
		if err := s.persister.Close(); err != nil {
			s.logger.Error(ctx, "close store failed", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "ranking service stopped")
}

// Started reports whether the service accepts requests.
func (s *Service) Started() bool { return s.started.Load() }

// OpenSession registers a voter session. An empty id gets a random one.
func (s *Service) OpenSession(ctx context.Context, id string) (string, error) {
	if !s.started.Load() {
		return "", ErrNotStarted
	}
	if id == "" {
		id = uuid.NewString()
	}
	s.sessions.add(newSession(id, s.now(), s.cfg.VoteRatePerSec, s.cfg.VoteBurst))
	metrics.UpdateSessionsActive(s.sessions.len())
	s.logger.Debug(ctx, "session opened", logger.String("session", id))
	return id, nil
}

// CloseSession discards the session and its outstanding pairing. Ratings are
// not compensated.
func (s *Service) CloseSession(ctx context.Context, id string) {
	sess, ok := s.sessions.remove(id)
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.pairing = nil
	sess.last = nil
	sess.mu.Unlock()
	metrics.UpdateSessionsActive(s.sessions.len())
	s.logger.Debug(ctx, "session closed", logger.String("session", id))
}

// RequestPair issues a new pair to the session, superseding any outstanding one.
func (s *Service) RequestPair(ctx context.Context, sessionID string) (model.Pairing, error) {
	if !s.started.Load() {
		return model.Pairing{}, ErrNotStarted
	}
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return model.Pairing{}, ErrUnknownSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.issue(ctx, sess)
}

// issue selects and records a pair, avoiding the last one issued; sess.mu
// must be held.
func (s *Service) issue(ctx context.Context, sess *session) (model.Pairing, error) {
	p, err := s.selector.SelectPair(ctx, sess.id, sess.last)
	if err != nil {
		sess.pairing = nil
		return model.Pairing{}, err
	}
	sess.pairing = &p
	sess.last = &p
	return p, nil
}

// SubmitVote validates a vote against the session's outstanding pair and
// applies it. winner and loser may be item ids or exact phrase texts.
//
// Checks run in order: stale pair, self vote, unknown item, rate limit. A
// rejected vote leaves every rating unchanged. A fresh pair is issued either
// way and returned in the receipt.
func (s *Service) SubmitVote(ctx context.Context, sessionID, winner, loser string) (Receipt, error) {
	if !s.started.Load() {
		return Receipt{}, ErrNotStarted
	}
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		s.reject(ctx, sessionID, ErrUnknownSession)
		return Receipt{Reason: ReasonStalePair}, ErrUnknownSession
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := s.now()
	pairing := sess.outstanding(now, s.cfg.PairingTTL)
	res, err := s.vote(ctx, sess, pairing, now, winner, loser)

	receipt := Receipt{Accepted: err == nil, Reason: RejectReason(err), Result: res}
	if err == nil {
		sess.pairing = nil
		s.accepted.Add(1)
		metrics.RecordVoteAccepted()
	} else {
		s.reject(ctx, sessionID, err)
	}

	if next, perr := s.issue(ctx, sess); perr == nil {
		receipt.Next = &next
	} else {
		s.logger.Warn(ctx, "no pair after vote", logger.String("session", sessionID), logger.Error(perr))
	}
	return receipt, err
}

func (s *Service) vote(ctx context.Context, sess *session, pairing *model.Pairing, now time.Time, winner, loser string) (model.Result, error) {
	if pairing == nil {
		return model.Result{}, ErrStalePair
	}
	w := s.resolve(ctx, pairing, winner)
	l := s.resolve(ctx, pairing, loser)
	if !pairing.Contains(w) || !pairing.Contains(l) {
		return model.Result{}, ErrStalePair
	}
	if w == l {
		return model.Result{}, ErrSelfVote
	}
	if _, err := s.store.Get(ctx, w); err != nil {
		return model.Result{}, fmt.Errorf("%w: %s", ErrUnknownItem, w)
	}
	if _, err := s.store.Get(ctx, l); err != nil {
		return model.Result{}, fmt.Errorf("%w: %s", ErrUnknownItem, l)
	}
	if !sess.allow(now) {
		return model.Result{}, ErrRateLimited
	}

	res, err := s.store.ApplyResult(ctx, w, l)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Result{}, fmt.Errorf("%w: %w", ErrUnknownItem, err)
		}
		return model.Result{}, err
	}
	return res, nil
}

// resolve maps a vote reference to an item id. Ids of the pairing pass
// through; otherwise the reference is looked up as a phrase text.
func (s *Service) resolve(ctx context.Context, p *model.Pairing, ref string) string {
	if p.Contains(ref) {
		return ref
	}
	switch ref {
	case p.A.Text:
		return p.A.ID
	case p.B.Text:
		return p.B.ID
	}
	if it, err := s.store.ByText(ctx, ref); err == nil {
		return it.ID
	}
	return ref
}

func (s *Service) reject(ctx context.Context, sessionID string, err error) {
	reason := RejectReason(err)
	s.rejected.Add(1)
	metrics.RecordVoteRejected(reason)
	s.logger.Debug(ctx, "vote rejected",
		logger.String("session", sessionID), logger.String("reason", reason), logger.Error(err))
}

// Leaderboard returns one page of the ranking.
func (s *Service) Leaderboard(_ context.Context, limit, offset int) ([]types.Entry, error) {
	if !s.started.Load() {
		return nil, ErrNotStarted
	}
	return s.board.Snapshot(limit, offset)
}

// LeaderboardSnapshot returns the latest published ranking.
func (s *Service) LeaderboardSnapshot() (*leaderboard.Snapshot, error) {
	if !s.started.Load() {
		return nil, ErrNotStarted
	}
	return s.board.Current(), nil
}

// SubscribeLeaderboard registers fn for every newly published ranking.
func (s *Service) SubscribeLeaderboard(fn func(*leaderboard.Snapshot)) (func(), error) {
	if !s.started.Load() {
		return nil, ErrNotStarted
	}
	return s.board.Subscribe(fn), nil
}

// Item returns the current state of one item with its 1-based rank.
func (s *Service) Item(ctx context.Context, id string) (types.Entry, error) {
	if !s.started.Load() {
		return types.Entry{}, ErrNotStarted
	}
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return types.Entry{}, err
	}
	rank, err := s.store.Rank(ctx, id)
	if err != nil {
		return types.Entry{}, err
	}
	return types.EntryFrom(rank, it), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"started":            s.started.Load(),
		"storeDriver":        s.cfg.StoreDriver,
		"persistMode":        s.cfg.PersistMode,
		"leaderboardRefresh": s.cfg.LeaderboardRefresh,
		"votesAccepted":      s.accepted.Load(),
		"votesRejected":      s.rejected.Load(),
		"sessionsActive":     s.sessions.len(),
	}

	if s.started.Load() {
		ctx := context.Background()
		items := s.store.Count(ctx)
		stats["items"] = items
		snap := s.board.Current()
		stats["leaderboardVersion"] = snap.Version
		stats["leaderboardBuiltAt"] = snap.BuiltAt
		if wb, ok := s.persister.(*persistence.WriteBehind); ok {
			stats["pendingWrites"] = wb.Pending(ctx)
		}
		metrics.UpdateItemsTotal(items)
		metrics.UpdateSessionsActive(s.sessions.len())
	}
	return stats
}
