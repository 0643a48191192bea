package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DUEL_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env in the working directory, exported into the process environment
//  3. file (YAML) if DUEL_CONFIG is set
//  4. env (prefix DUEL_)
func Load(_ context.Context) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// DUEL_PAIRING_TTL -> pairing_ttl (flat keys, underscores kept).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.KFactor <= 0:
		return fmt.Errorf("%w: k_factor must be positive", ErrInvalidConfig)
	case c.LockStripes <= 0:
		return fmt.Errorf("%w: lock_stripes must be positive", ErrInvalidConfig)
	case c.ProximityThreshold < 0 || c.ProximityScale <= 0:
		return fmt.Errorf("%w: proximity_threshold must be >= 0 and proximity_scale > 0", ErrInvalidConfig)
	case c.SelectionWindow <= 0 || c.SelectionAttempts <= 0:
		return fmt.Errorf("%w: selection_window and selection_attempts must be positive", ErrInvalidConfig)
	case c.VoteRatePerSec < 0:
		return fmt.Errorf("%w: vote_rate_per_sec must not be negative", ErrInvalidConfig)
	case c.VoteRatePerSec > 0 && c.VoteBurst <= 0:
		return fmt.Errorf("%w: vote_burst must be positive when rate limiting", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0 || c.BroadcastLimit < 0:
		return fmt.Errorf("%w: leaderboard limits must be positive", ErrInvalidConfig)
	}

	switch c.LeaderboardRefresh {
	case RefreshEager:
	case RefreshInterval:
		if c.LeaderboardStaleness <= 0 {
			return fmt.Errorf("%w: leaderboard_staleness must be positive in interval mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown leaderboard_refresh %q", ErrInvalidConfig, c.LeaderboardRefresh)
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.PersistMode {
	case PersistSync:
	case PersistAsync:
		if c.PersistQueueSize <= 0 || c.PersistWorkers <= 0 {
			return fmt.Errorf("%w: persist_queue_size and persist_workers must be positive in async mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown persist_mode %q", ErrInvalidConfig, c.PersistMode)
	}
	return nil
}
