// Package sqlite provides SQLite-backed implementations of the repository
// contracts. Instants are stored as UTC unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jnst/birthday-outbox/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS persons (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	birth_date TEXT NOT NULL,
	time_zone  TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id           TEXT PRIMARY KEY,
	person_id    TEXT NOT NULL,
	scheduled_at INTEGER NOT NULL,
	payload      TEXT NOT NULL,
	delivered_at INTEGER,
	created_at   INTEGER NOT NULL,
	UNIQUE (person_id, scheduled_at)
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending_due ON outbox (delivered_at, scheduled_at);
`

type txKey struct{}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the SQLite handle shared by the repositories.
type DB struct {
	sqlDB *sql.DB
}

// Open opens a SQLite database file and applies the schema.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}

	return db.sqlDB.Close()
}

func (db *DB) conn(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}

	return db.sqlDB
}

// TransactionManager implements repository.TransactionManager on SQLite.
type TransactionManager struct {
	db *DB
}

// NewTransactionManager creates a new TransactionManager implementation.
func NewTransactionManager(db *DB) repository.TransactionManager {
	return &TransactionManager{db: db}
}

// WithTransaction executes fn within a transaction bound to its context.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := tm.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rollbackErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
