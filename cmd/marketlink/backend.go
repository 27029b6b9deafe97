package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/marketlink/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/marketlink/internal/adapters/driven/redis"
	"github.com/custodia-labs/marketlink/internal/adapters/driven/secretbox"
	"github.com/custodia-labs/marketlink/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/marketlink/internal/adapters/driving/http"
	"github.com/custodia-labs/marketlink/internal/config"
	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// backend is the set of storage adapters chosen from configuration.
type backend struct {
	Store  driven.CredentialStore
	Ledger driven.StateLedger
	Lock   driven.DistributedLock
	Checks []http.HealthCheck

	// Descriptor names the chosen adapters for startup logging.
	Descriptor domain.BackendDescriptor

	closers []func() error
}

// Close releases every handle in reverse order of opening.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackend connects the credential store, the state ledger and the
// refresh lock. Redis, when configured, holds states and leases; otherwise
// the SQL database does, with lock files beside a SQLite database.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if err := cfg.RequireEncryptionKey(); err != nil {
		return nil, err
	}
	encryptor, err := secretbox.NewFromMasterKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	b := &backend{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig(cfg.DatabaseURL)
		pgCfg.MaxOpenConns = cfg.DBMaxOpenConns
		pgCfg.MaxIdleConns = cfg.DBMaxIdleConns
		db, err := postgres.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		b.Store = postgres.NewCredentialStore(db.DB, encryptor)
		b.Ledger = postgres.NewStateLedger(db.DB)
		b.Lock = postgres.NewAdvisoryLock(db)
		b.Checks = append(b.Checks, http.HealthCheck{Name: "postgres", Pinger: db})
		b.Descriptor = domain.NewBackendDescriptor(domain.BackendPostgres, domain.BackendPostgres, domain.BackendPostgres)

	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		lock, err := sqlite.NewFileLock(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.Store = sqlite.NewCredentialStore(db, encryptor)
		b.Ledger = sqlite.NewStateLedger(db)
		b.Lock = lock
		b.Checks = append(b.Checks, http.HealthCheck{Name: "sqlite", Pinger: db})
		b.Descriptor = domain.NewBackendDescriptor(domain.BackendSQLite, domain.BackendSQLite, domain.BackendFile)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid REDIS_URL: %w", domain.ErrConfiguration, err)
		}
		client := redis.NewClient(opts)
		b.closers = append(b.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("%w: failed to connect to redis: %w", domain.ErrStoreUnavailable, err)
		}

		lock := redisadapter.NewLock(client)
		b.Ledger = redisadapter.NewStateLedger(client)
		b.Lock = lock
		b.Checks = append(b.Checks, http.HealthCheck{Name: "redis", Pinger: lock})
		b.Descriptor.Ledger = domain.BackendRedis
		b.Descriptor.Lock = domain.BackendRedis
	}

	logger.Debug("storage backend ready",
		"store", b.Descriptor.Store,
		"ledger", b.Descriptor.Ledger,
		"lock", b.Descriptor.LockOrNone(),
	)
	ok = true
	return b, nil
}
