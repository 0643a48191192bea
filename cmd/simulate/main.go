package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/duel/internal/simulate"
	"github.com/okian/duel/pkg/logger"
)

// Default configuration constants.
const (
	defaultVotesPerVoter = 200
	defaultNoise         = 0.1
	defaultTimeout       = 10 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		voters    = flag.Int("voters", runtime.NumCPU()*2, "Number of concurrent websocket voters")
		votes     = flag.Int("votes", defaultVotesPerVoter, "Votes cast by each voter")
		noise     = flag.Float64("noise", defaultNoise, "Probability a vote goes against the shared preference")
		timeout   = flag.Duration("timeout", defaultTimeout, "Per-request and per-frame timeout")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for vote noise")
		report    = flag.String("report", "", "Optional JSON report file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every rejected vote")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	_, err := simulate.Run(ctx, &simulate.Config{
		BaseURL:       *baseURL,
		Voters:        *voters,
		VotesPerVoter: *votes,
		Noise:         *noise,
		Timeout:       *timeout,
		Seed:          *seed,
		ReportFile:    *report,
		Verbose:       *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
