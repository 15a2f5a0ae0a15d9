// Package storage opens the configured backend and exposes its repositories.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/birthday-outbox/internal/config"
	"github.com/jnst/birthday-outbox/internal/repository"
	"github.com/jnst/birthday-outbox/internal/repository/sqlite"
)

// Storage bundles the repositories of one backend.
type Storage struct {
	Persons      repository.PersonRepository
	Outbox       repository.OutboxRepository
	Transactions repository.TransactionManager

	close func()
}

// Open connects to the backend selected by cfg.StorageDriver and ensures the schema exists.
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		return openPostgres(ctx, cfg.DatabaseURL)
	case config.StorageDriverSQLite:
		return openSQLite(cfg.DBFile)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageDriver, cfg.StorageDriver)
	}
}

// Close releases the backend connection.
func (s *Storage) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

func openPostgres(ctx context.Context, url string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Storage{
		Persons:      repository.NewPersonRepositoryImpl(pool),
		Outbox:       repository.NewOutboxRepositoryImpl(pool),
		Transactions: repository.NewTransactionManagerImpl(pool),
		close:        pool.Close,
	}, nil
}

func openSQLite(path string) (*Storage, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}

	return &Storage{
		Persons:      sqlite.NewPersonRepository(db),
		Outbox:       sqlite.NewOutboxRepository(db),
		Transactions: sqlite.NewTransactionManager(db),
		close:        func() { _ = db.Close() },
	}, nil
}
