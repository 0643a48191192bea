// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config with defaults; Load layers overrides on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"runtime"
	"time"
)

// Refresh policies for the leaderboard view.
const (
	RefreshEager    = "eager"
	RefreshInterval = "interval"
)

// Persistence modes.
const (
	PersistSync  = "sync"
	PersistAsync = "async"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CorpusPath points at the phrase file, one phrase per line.
	CorpusPath string `koanf:"corpus_path"`

	// InitialRating is assigned to phrases with no persisted state.
	InitialRating float64 `koanf:"initial_rating"`
	// KFactor is the Elo K applied to every vote.
	KFactor float64 `koanf:"k_factor"`
	// LockStripes sets the number of per-item lock stripes in the store.
	LockStripes int `koanf:"lock_stripes"`

	// ScanThreshold is the item count below which pair selection scans exactly.
	ScanThreshold int `koanf:"scan_threshold"`
	// ProximityThreshold is the rating gap treated as "close" for partner choice.
	ProximityThreshold float64 `koanf:"proximity_threshold"`
	// ProximityScale is the decay length beyond ProximityThreshold.
	ProximityScale float64 `koanf:"proximity_scale"`
	// SelectionWindow is the rank half-width searched for a partner.
	SelectionWindow int `koanf:"selection_window"`
	// SelectionAttempts bounds rejection sampling per partner draw.
	SelectionAttempts int `koanf:"selection_attempts"`
	// SelectorSeed makes pair selection reproducible when non-zero.
	SelectorSeed int64 `koanf:"selector_seed"`

	// PairingTTL expires outstanding pairings; zero disables expiry.
	PairingTTL time.Duration `koanf:"pairing_ttl"`
	// VoteRatePerSec limits votes per session; zero disables.
	VoteRatePerSec float64 `koanf:"vote_rate_per_sec"`
	// VoteBurst is the limiter burst.
	VoteBurst int `koanf:"vote_burst"`

	// LeaderboardRefresh is "eager" or "interval".
	LeaderboardRefresh string `koanf:"leaderboard_refresh"`
	// LeaderboardStaleness bounds snapshot age in interval mode.
	LeaderboardStaleness time.Duration `koanf:"leaderboard_staleness"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"leaderboard_max_limit"`
	// BroadcastLimit is the number of entries pushed to subscribers.
	BroadcastLimit int `koanf:"broadcast_limit"`

	// StoreDriver selects memory, sqlite or postgres persistence.
	StoreDriver string `koanf:"store_driver"`
	// StoreDSN is the sqlite path or postgres connection string.
	StoreDSN string `koanf:"store_dsn"`
	// PersistMode is "sync" (write before commit) or "async" (write-behind).
	PersistMode string `koanf:"persist_mode"`
	// PersistQueueSize bounds the write-behind queue.
	PersistQueueSize int `koanf:"persist_queue_size"`
	// PersistWorkers sets the number of write-behind workers.
	PersistWorkers int `koanf:"persist_workers"`

	// WSSendBuffer is the per-connection outbound message buffer.
	WSSendBuffer int `koanf:"ws_send_buffer"`
	// CORSOrigins lists allowed origins for the HTTP API.
	CORSOrigins []string `koanf:"cors_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		CorpusPath:           "phrases.txt",
		InitialRating:        1500,
		KFactor:              32,
		LockStripes:          256,
		ScanThreshold:        512,
		ProximityThreshold:   100,
		ProximityScale:       200,
		SelectionWindow:      50,
		SelectionAttempts:    16,
		SelectorSeed:         0,
		PairingTTL:           10 * time.Minute,
		VoteRatePerSec:       0,
		VoteBurst:            5,
		LeaderboardRefresh:   RefreshEager,
		LeaderboardStaleness: time.Second,
		MaxLeaderboardLimit:  500,
		BroadcastLimit:       200,
		StoreDriver:          DriverSQLite,
		StoreDSN:             "duel.db",
		PersistMode:          PersistSync,
		PersistQueueSize:     10_000,
		PersistWorkers:       runtime.NumCPU(),
		WSSendBuffer:         256,
		CORSOrigins:          []string{"*"},
	}
}
