package service

import (
	"context"
	"fmt"

	"github.com/okian/duel/internal/adapters/persistence"
	"github.com/okian/duel/internal/adapters/persistence/postgres"
	"github.com/okian/duel/internal/adapters/persistence/sqlite"
	"github.com/okian/duel/internal/config"
	"github.com/okian/duel/pkg/logger"
)

// openStore opens the configured durable store during Start.
var openStore = openPersister

// openPersister builds the durable store for cfg, wrapped in write-behind
// when persist_mode is async.
func openPersister(ctx context.Context, cfg *config.Config, log logger.Logger) (persistence.Persister, error) {
	var inner persistence.Persister
	switch cfg.StoreDriver {
	case config.DriverMemory:
		inner = persistence.NewMemory()
	case config.DriverSQLite:
		st, err := sqlite.New(cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.StoreDSN, err)
		}
		inner = st
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		inner = db
	default:
		return nil, fmt.Errorf("%w: %q", persistence.ErrUnknownDriver, cfg.StoreDriver)
	}

	log.Info(ctx, "store driver ready",
		logger.String("driver", cfg.StoreDriver), logger.String("mode", cfg.PersistMode))

	if cfg.PersistMode != config.PersistAsync {
		return inner, nil
	}
	return persistence.NewWriteBehind(ctx, inner,
		persistence.WithQueueSize(cfg.PersistQueueSize),
		persistence.WithWorkers(cfg.PersistWorkers),
		persistence.WithWriteBehindLogger(log.Named("writebehind")),
	), nil
}
