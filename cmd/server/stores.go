package main

import (
	"context"
	"database/sql"
	"log/slog"

	ipservice "renewals/internal/iprenewal/service"
	ipstore "renewals/internal/iprenewal/store"
	"renewals/internal/outbox"
	"renewals/internal/platform/config"
	"renewals/internal/platform/migrate"
	"renewals/internal/platform/postgres"
	transferservice "renewals/internal/transfer/service"
	transferstore "renewals/internal/transfer/store"
	vaptservice "renewals/internal/vaptrenewal/service"
	vaptstore "renewals/internal/vaptrenewal/store"
)

// stores bundles one backend per request family plus the shared outbox. Each
// request store also serves as its own transaction runner.
type stores struct {
	db       *sql.DB
	transfer interface {
		transferservice.Store
		transferservice.StoreTx
	}
	vapt interface {
		vaptservice.Store
		vaptservice.StoreTx
	}
	ip interface {
		ipservice.Store
		ipservice.StoreTx
	}
	outbox outbox.Store
}

// openStores selects Postgres when DATABASE_URL is set and the in-memory
// stores otherwise. The in-memory outbox only survives for the process
// lifetime.
func openStores(ctx context.Context, cfg config.DatabaseConfig, obMetrics *outbox.Metrics, logger *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			transfer: transferstore.NewInMemory(),
			vapt:     vaptstore.NewInMemory(),
			ip:       ipstore.NewInMemory(),
			outbox:   outbox.NewMemoryStore(outbox.WithStoreMetrics(obMetrics)),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := migrate.Up(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	return &stores{
		db:       db,
		transfer: transferstore.NewPostgres(db),
		vapt:     vaptstore.NewPostgres(db),
		ip:       ipstore.NewPostgres(db),
		outbox:   outbox.NewPostgresStore(db, outbox.WithStoreMetrics(obMetrics)),
	}, nil
}

func (s *stores) health(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
