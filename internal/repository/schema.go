package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS persons (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	birth_date TEXT NOT NULL,
	time_zone  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id           TEXT PRIMARY KEY,
	person_id    TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	payload      TEXT NOT NULL,
	delivered_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	CONSTRAINT outbox_person_scheduled_key UNIQUE (person_id, scheduled_at)
);

CREATE INDEX IF NOT EXISTS outbox_pending_due_idx
	ON outbox (scheduled_at)
	WHERE delivered_at IS NULL;
`

// Migrate creates the persons and outbox tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}
