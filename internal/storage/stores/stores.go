// Package stores opens the configured storage backends.
package stores

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/config"
	"solana-portfolio-watch/internal/storage"
	chstore "solana-portfolio-watch/internal/storage/clickhouse"
	"solana-portfolio-watch/internal/storage/memory"
	"solana-portfolio-watch/internal/storage/migrations"
	pgstore "solana-portfolio-watch/internal/storage/postgres"
	"solana-portfolio-watch/internal/storage/xlsx"
)

// Closer releases a backend connection.
type Closer func()

func noop() {}

// OpenSnapshot opens the snapshot store selected by cfg.Kind.
// PostgreSQL migrations are applied before the store is returned.
func OpenSnapshot(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (storage.SnapshotStore, Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Kind {
	case config.StoreMemory:
		logger.Warn("using in-memory snapshot store, state is lost on exit")
		return memory.NewSnapshotStore(), noop, nil

	case config.StoreXLSX:
		store := xlsx.NewSnapshotStore(xlsx.Options{
			Path:   cfg.Path,
			Sheet:  cfg.Sheet,
			Logger: logger,
		})
		if err := store.Init(ctx); err != nil {
			return nil, nil, errors.Wrapf(err, "init workbook %s", cfg.Path)
		}
		logger.Info("snapshot store ready", zap.String("kind", cfg.Kind), zap.String("path", store.Path()))
		return store, noop, nil

	case config.StorePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to postgres")
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "postgres migrations")
		}
		logger.Info("snapshot store ready", zap.String("kind", cfg.Kind))
		return pgstore.NewSnapshotStore(pool), pool.Close, nil
	}

	return nil, nil, errors.Errorf("unknown store kind %q", cfg.Kind)
}

// OpenHistory opens the ClickHouse valuation history store.
// An empty dsn returns a nil store.
func OpenHistory(ctx context.Context, dsn string, logger *zap.Logger) (storage.ValuationHistoryStore, Closer, error) {
	if dsn == "" {
		return nil, noop, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "clickhouse migrations")
	}
	logger.Info("valuation history enabled")

	closer := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close clickhouse", zap.Error(err))
		}
	}
	return chstore.NewValuationHistoryStore(conn), closer, nil
}
