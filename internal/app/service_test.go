package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/duel/internal/adapters/persistence"
	"github.com/okian/duel/internal/adapters/repository"
	service "github.com/okian/duel/internal/app"
	"github.com/okian/duel/internal/config"
	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/internal/domain/selector"
	"github.com/okian/duel/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithLevel("error")); err != nil {
		panic(err)
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingPersister struct {
	*persistence.Memory
}

func (failingPersister) SaveResult(context.Context, model.Result) error {
	return errors.New("disk unplugged")
}

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.StoreDriver = config.DriverMemory
	cfg.SelectorSeed = 7
	return cfg
}

func started(cfg *config.Config, opts ...service.Option) *service.Service {
	svc := service.New(cfg, opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func ratingOf(svc *service.Service, text string) float64 {
	e, err := svc.Item(context.Background(), model.ItemID(text))
	So(err, ShouldBeNil)
	return e.Rating
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(memoryConfig(), service.WithCorpusTexts("a", "b", "c"))
		defer svc.Stop()

		Convey("Operations fail before Start", func() {
			_, err := svc.OpenSession(ctx, "")
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.Leaderboard(ctx, 10, 0)
			So(err, ShouldEqual, service.ErrNotStarted)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Start is idempotent and Stop ends service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Started(), ShouldBeTrue)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["items"], ShouldEqual, 3)

			svc.Stop()
			So(svc.Started(), ShouldBeFalse)
			_, err := svc.RequestPair(ctx, "x")
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})

	Convey("A missing corpus file fails bootstrap", t, func() {
		cfg := memoryConfig()
		cfg.CorpusPath = "/nonexistent/phrases.txt"
		svc := service.New(cfg)
		err := svc.Start(context.Background())
		So(errors.Is(err, service.ErrBootstrap), ShouldBeTrue)
	})

	Convey("An unknown driver fails bootstrap", t, func() {
		cfg := memoryConfig()
		cfg.StoreDriver = "tape"
		svc := service.New(cfg, service.WithCorpusTexts("a", "b"))
		err := svc.Start(context.Background())
		So(errors.Is(err, persistence.ErrUnknownDriver), ShouldBeTrue)
	})
}

func TestService_Votes(t *testing.T) {
	Convey("Given a started service with two phrases", t, func() {
		ctx := context.Background()
		svc := started(memoryConfig(), service.WithCorpusTexts("X", "Y"))
		defer svc.Stop()
		sid, err := svc.OpenSession(ctx, "")
		So(err, ShouldBeNil)
		So(sid, ShouldNotBeEmpty)

		Convey("A vote without a pair is stale and changes nothing", func() {
			r, err := svc.SubmitVote(ctx, sid, model.ItemID("X"), model.ItemID("Y"))
			So(errors.Is(err, service.ErrStalePair), ShouldBeTrue)
			So(r.Accepted, ShouldBeFalse)
			So(r.Reason, ShouldEqual, service.ReasonStalePair)
			So(r.Next, ShouldNotBeNil)
			So(ratingOf(svc, "X"), ShouldEqual, 1500)
			So(ratingOf(svc, "Y"), ShouldEqual, 1500)
		})

		Convey("X beats Y moves 16 points", func() {
			p, err := svc.RequestPair(ctx, sid)
			So(err, ShouldBeNil)
			So(p.A.ID, ShouldNotEqual, p.B.ID)

			r, err := svc.SubmitVote(ctx, sid, model.ItemID("X"), model.ItemID("Y"))
			So(err, ShouldBeNil)
			So(r.Accepted, ShouldBeTrue)
			So(r.Result.Winner.Rating, ShouldEqual, 1516)
			So(r.Result.Loser.Rating, ShouldEqual, 1484)
			So(r.Next, ShouldNotBeNil)

			board, err := svc.Leaderboard(ctx, 10, 0)
			So(err, ShouldBeNil)
			So(board[0].Text, ShouldEqual, "X")
			So(board[0].Rating, ShouldEqual, 1516)
			So(board[1].Rating, ShouldEqual, 1484)
		})

		Convey("Votes may reference phrase texts", func() {
			_, err := svc.RequestPair(ctx, sid)
			So(err, ShouldBeNil)
			r, err := svc.SubmitVote(ctx, sid, "Y", "X")
			So(err, ShouldBeNil)
			So(r.Result.Winner.Text, ShouldEqual, "Y")
			So(ratingOf(svc, "Y"), ShouldEqual, 1516)
		})

		Convey("A self vote is rejected with ratings unchanged", func() {
			_, err := svc.RequestPair(ctx, sid)
			So(err, ShouldBeNil)
			_, err = svc.SubmitVote(ctx, sid, model.ItemID("X"), model.ItemID("X"))
			So(errors.Is(err, service.ErrSelfVote), ShouldBeTrue)
			So(ratingOf(svc, "X"), ShouldEqual, 1500)
		})

		Convey("An unknown session is stale", func() {
			r, err := svc.SubmitVote(ctx, "ghost", model.ItemID("X"), model.ItemID("Y"))
			So(errors.Is(err, service.ErrUnknownSession), ShouldBeTrue)
			So(r.Reason, ShouldEqual, service.ReasonStalePair)
		})
	})

	Convey("Given three phrases", t, func() {
		ctx := context.Background()
		svc := started(memoryConfig(), service.WithCorpusTexts("a", "b", "c"))
		defer svc.Stop()
		sid, _ := svc.OpenSession(ctx, "s1")

		Convey("A consumed pair cannot be voted on twice", func() {
			p, err := svc.RequestPair(ctx, sid)
			So(err, ShouldBeNil)
			r, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
			So(err, ShouldBeNil)
			So(r.Next.Same(p.A.ID, p.B.ID), ShouldBeFalse)

			before := ratingOf(svc, p.A.Text)
			_, err = svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
			So(errors.Is(err, service.ErrStalePair), ShouldBeTrue)
			So(ratingOf(svc, p.A.Text), ShouldEqual, before)
		})

		Convey("A vote outside the outstanding pair is stale", func() {
			p, _ := svc.RequestPair(ctx, sid)
			var other string
			for _, txt := range []string{"a", "b", "c"} {
				if !p.Contains(model.ItemID(txt)) {
					other = model.ItemID(txt)
				}
			}
			_, err := svc.SubmitVote(ctx, sid, p.A.ID, other)
			So(errors.Is(err, service.ErrStalePair), ShouldBeTrue)
		})

		Convey("A new request supersedes the outstanding pair", func() {
			first, _ := svc.RequestPair(ctx, sid)
			second, err := svc.RequestPair(ctx, sid)
			So(err, ShouldBeNil)
			So(second.Same(first.A.ID, first.B.ID), ShouldBeFalse)
			_, err = svc.SubmitVote(ctx, sid, second.A.ID, second.B.ID)
			So(err, ShouldBeNil)
		})
	})

	Convey("A single phrase cannot form a pair", t, func() {
		ctx := context.Background()
		svc := started(memoryConfig(), service.WithCorpusTexts("only"))
		defer svc.Stop()
		sid, _ := svc.OpenSession(ctx, "")
		_, err := svc.RequestPair(ctx, sid)
		So(errors.Is(err, selector.ErrInsufficientItems), ShouldBeTrue)
	})
}

func TestService_Limits(t *testing.T) {
	Convey("Given a fixed clock", t, func() {
		ctx := context.Background()
		clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

		Convey("Expired pairs are stale", func() {
			cfg := memoryConfig()
			cfg.PairingTTL = time.Minute
			svc := started(cfg, service.WithCorpusTexts("a", "b", "c"), service.WithClock(clk.Now))
			defer svc.Stop()
			sid, _ := svc.OpenSession(ctx, "")

			p, _ := svc.RequestPair(ctx, sid)
			clk.Advance(2 * time.Minute)
			_, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
			So(errors.Is(err, service.ErrStalePair), ShouldBeTrue)
		})

		Convey("An expired pair is still not handed out again immediately", func() {
			cfg := memoryConfig()
			cfg.PairingTTL = time.Minute
			svc := started(cfg, service.WithCorpusTexts("a", "b", "c"), service.WithClock(clk.Now))
			defer svc.Stop()
			sid, _ := svc.OpenSession(ctx, "")

			prev, err := svc.RequestPair(ctx, sid)
			So(err, ShouldBeNil)
			repeats := 0
			for i := 0; i < 200; i++ {
				clk.Advance(2 * time.Minute)
				next, err := svc.RequestPair(ctx, sid)
				So(err, ShouldBeNil)
				if next.Same(prev.A.ID, prev.B.ID) {
					repeats++
				}
				prev = next
			}
			So(repeats, ShouldEqual, 0)
		})

		Convey("A stale vote after expiry gets a different pair", func() {
			cfg := memoryConfig()
			cfg.PairingTTL = time.Minute
			svc := started(cfg, service.WithCorpusTexts("a", "b", "c"), service.WithClock(clk.Now))
			defer svc.Stop()
			sid, _ := svc.OpenSession(ctx, "")

			for i := 0; i < 50; i++ {
				p, err := svc.RequestPair(ctx, sid)
				So(err, ShouldBeNil)
				clk.Advance(2 * time.Minute)
				r, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
				So(errors.Is(err, service.ErrStalePair), ShouldBeTrue)
				So(r.Next, ShouldNotBeNil)
				So(r.Next.Same(p.A.ID, p.B.ID), ShouldBeFalse)
			}
		})

		Convey("The per-session rate limit rejects bursts", func() {
			cfg := memoryConfig()
			cfg.VoteRatePerSec = 0.01
			cfg.VoteBurst = 1
			svc := started(cfg, service.WithCorpusTexts("a", "b", "c"), service.WithClock(clk.Now))
			defer svc.Stop()
			sid, _ := svc.OpenSession(ctx, "")

			p, _ := svc.RequestPair(ctx, sid)
			r, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
			So(err, ShouldBeNil)

			next := *r.Next
			before := ratingOf(svc, next.A.Text)
			r, err = svc.SubmitVote(ctx, sid, next.A.ID, next.B.ID)
			So(errors.Is(err, service.ErrRateLimited), ShouldBeTrue)
			So(r.Reason, ShouldEqual, service.ReasonRateLimited)
			So(ratingOf(svc, next.A.Text), ShouldEqual, before)
			So(svc.GetStats()["votesRejected"], ShouldEqual, int64(1))
		})
	})

	Convey("A failed durable write rejects the vote and leaves memory untouched", t, func() {
		ctx := context.Background()
		svc := started(memoryConfig(),
			service.WithCorpusTexts("a", "b"),
			service.WithPersister(failingPersister{persistence.NewMemory()}))
		defer svc.Stop()
		sid, _ := svc.OpenSession(ctx, "")
		p, _ := svc.RequestPair(ctx, sid)

		r, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
		So(errors.Is(err, repository.ErrPersist), ShouldBeTrue)
		So(r.Reason, ShouldEqual, service.ReasonUnavailable)
		So(ratingOf(svc, "a"), ShouldEqual, 1500)
		So(ratingOf(svc, "b"), ShouldEqual, 1500)
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Disconnect and reconnect keeps every applied vote", t, func() {
		ctx := context.Background()
		svc := started(memoryConfig(), service.WithCorpusTexts("p1", "p2", "p3", "p4"))
		defer svc.Stop()

		sid, _ := svc.OpenSession(ctx, "")
		p, _ := svc.RequestPair(ctx, sid)
		for i := 0; i < 5; i++ {
			r, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
			So(err, ShouldBeNil)
			p = *r.Next
		}
		svc.CloseSession(ctx, sid)
		So(svc.GetStats()["sessionsActive"], ShouldEqual, 0)

		_, err := svc.SubmitVote(ctx, sid, p.A.ID, p.B.ID)
		So(errors.Is(err, service.ErrUnknownSession), ShouldBeTrue)

		again, _ := svc.OpenSession(ctx, "")
		_, err = svc.SubmitVote(ctx, again, p.A.ID, p.B.ID)
		So(errors.Is(err, service.ErrStalePair), ShouldBeTrue)

		board, err := svc.Leaderboard(ctx, 10, 0)
		So(err, ShouldBeNil)
		total, comparisons := 0.0, 0
		for _, e := range board {
			total += e.Rating
			comparisons += e.Comparisons
			So(e.Comparisons, ShouldEqual, e.Wins+e.Losses)
		}
		So(comparisons, ShouldEqual, 10)
		So(math.Abs(total-4*1500), ShouldBeLessThan, 1e-6)
	})

	Convey("Concurrent sessions conserve rating mass", t, func() {
		ctx := context.Background()
		texts := make([]string, 12)
		for i := range texts {
			texts[i] = fmt.Sprintf("phrase-%02d", i)
		}
		svc := started(memoryConfig(), service.WithCorpusTexts(texts...))
		defer svc.Stop()

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sid, err := svc.OpenSession(ctx, "")
				if err != nil {
					errs <- err
					return
				}
				defer svc.CloseSession(ctx, sid)
				p, err := svc.RequestPair(ctx, sid)
				if err != nil {
					errs <- err
					return
				}
				for i := 0; i < 50; i++ {
					r, err := svc.SubmitVote(ctx, sid, p.B.ID, p.A.ID)
					if err != nil {
						errs <- err
						return
					}
					p = *r.Next
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			So(err, ShouldBeNil)
		}

		board, err := svc.Leaderboard(ctx, len(texts), 0)
		So(err, ShouldBeNil)
		total, comparisons := 0.0, 0
		for i, e := range board {
			total += e.Rating
			comparisons += e.Comparisons
			if i > 0 {
				So(e.Rating, ShouldBeLessThanOrEqualTo, board[i-1].Rating)
			}
		}
		So(comparisons, ShouldEqual, 2*8*50)
		So(math.Abs(total-float64(len(texts))*1500), ShouldBeLessThan, 1e-6)
		So(svc.GetStats()["votesAccepted"], ShouldEqual, int64(400))
	})
}

func TestRejectReason(t *testing.T) {
	Convey("Errors map to stable reasons", t, func() {
		So(service.RejectReason(nil), ShouldEqual, "")
		So(service.RejectReason(service.ErrStalePair), ShouldEqual, "stale_pair")
		So(service.RejectReason(fmt.Errorf("%w: id", service.ErrUnknownItem)), ShouldEqual, "unknown_item")
		So(service.RejectReason(service.ErrSelfVote), ShouldEqual, "self_vote")
		So(service.RejectReason(service.ErrRateLimited), ShouldEqual, "rate_limited")
		So(service.RejectReason(fmt.Errorf("%w: x", repository.ErrPersist)), ShouldEqual, "store_unavailable")
		So(service.RejectReason(errors.New("boom")), ShouldEqual, "internal")
	})
}
