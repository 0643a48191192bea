package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duel/pkg/logger"
)

const directoryPermission = 0o750

// Run executes a full simulation: health check, leaderboard snapshot,
// concurrent voting, second snapshot and verification. It assumes no other
// voters use the server meanwhile.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("voters", cfg.Voters),
		logger.Int("votesPerVoter", cfg.VotesPerVoter),
		logger.Float64("noise", cfg.Noise))

	client := newHTTPClient(cfg.Timeout)
	if err := client.checkHealth(ctx, cfg.BaseURL); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	before, err := client.leaderboard(ctx, cfg.BaseURL)
	if err != nil {
		return stats, fmt.Errorf("leaderboard before run: %w", err)
	}

	var verbose func(string, string)
	if cfg.Verbose {
		verbose = func(msg, reason string) { log.Info(ctx, msg, logger.String("reason", reason)) }
	}

	var wg sync.WaitGroup
	errs := make(chan error, cfg.Voters)
	for i := 0; i < cfg.Voters; i++ {
		v := &voter{
			id:      i,
			cfg:     cfg,
			rng:     rand.New(rand.NewPCG(cfg.Seed, uint64(i))), //nolint:gosec // vote noise
			stats:   stats,
			verbose: verbose,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := v.run(ctx); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		log.Warn(ctx, "voter failed", logger.Error(err))
	}

	stats.VotesAccepted = atomic.LoadInt64(&stats.VotesSent) - atomic.LoadInt64(&stats.VotesRejected)

	after, err := client.leaderboard(ctx, cfg.BaseURL)
	if err != nil {
		return stats, fmt.Errorf("leaderboard after run: %w", err)
	}
	stats.Items = len(after)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, log, stats, after)
	if cfg.ReportFile != "" {
		if err := saveReport(cfg.ReportFile, stats, after); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	if stats.Errors > 0 {
		return stats, fmt.Errorf("%d voters failed", stats.Errors)
	}
	if err := verify(before, after, stats.VotesAccepted); err != nil {
		return stats, err
	}
	log.Info(ctx, "simulation verified")
	return stats, nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, board []Entry) {
	var votesPerSecond float64
	if stats.Duration > 0 {
		votesPerSecond = float64(stats.VotesSent) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Any("votesSent", stats.VotesSent),
		logger.Any("votesAccepted", stats.VotesAccepted),
		logger.Any("votesRejected", stats.VotesRejected),
		logger.Any("pairsReceived", stats.PairsReceived),
		logger.Int("items", stats.Items),
		logger.Duration("duration", stats.Duration),
		logger.Float64("votesPerSecond", votesPerSecond))

	for i := 0; i < min(10, len(board)); i++ {
		e := board[i]
		log.Info(ctx, "top phrase",
			logger.Int("rank", e.Rank), logger.String("text", e.Text),
			logger.Float64("rating", e.Rating), logger.Int("comparisons", e.Comparisons))
	}
}

func saveReport(path string, stats *Stats, board []Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(struct {
		Stats       *Stats  `json:"stats"`
		Leaderboard []Entry `json:"leaderboard"`
	}{stats, board}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
