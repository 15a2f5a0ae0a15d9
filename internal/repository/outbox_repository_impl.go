package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/birthday-outbox/internal/model"
)

const occurrenceColumns = `id, person_id, scheduled_at, payload, delivered_at, created_at`

// OutboxRepositoryImpl implements OutboxRepository using PostgreSQL.
type OutboxRepositoryImpl struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewOutboxRepositoryImpl creates a new OutboxRepository implementation.
func NewOutboxRepositoryImpl(pool *pgxpool.Pool) OutboxRepository {
	return &OutboxRepositoryImpl{pool: pool, now: time.Now}
}

// Register inserts a pending occurrence unless its key is already stored.
func (r *OutboxRepositoryImpl) Register(
	ctx context.Context, params *model.RegisterOccurrenceParams,
) (model.RegisterResult, error) {
	if params.PersonID == "" {
		return 0, model.ErrInvalidPersonID
	}

	var id string

	err := conn(ctx, r.pool).QueryRow(ctx, `
INSERT INTO outbox (id, person_id, scheduled_at, payload, delivered_at, created_at)
VALUES ($1, $2, $3, $4, NULL, $5)
ON CONFLICT (person_id, scheduled_at) DO NOTHING
RETURNING id`,
		uuid.NewString(),
		params.PersonID,
		model.StorageInstant(params.ScheduledAt),
		params.Payload,
		r.now().UTC(),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RegisterAlreadyExists, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to register occurrence: %w", err)
	}

	return model.RegisterCreated, nil
}

// ListDue retrieves pending occurrences whose scheduled instant has passed.
func (r *OutboxRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Occurrence, error) {
	if limit <= 0 {
		return nil, model.ErrInvalidLimit
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
SELECT `+occurrenceColumns+`
FROM outbox
WHERE delivered_at IS NULL AND scheduled_at <= $1
ORDER BY scheduled_at ASC, id ASC
LIMIT $2`,
		now.UTC(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due occurrences: %w", err)
	}

	return collectOccurrences(rows)
}

// MarkDelivered marks a pending occurrence as delivered.
func (r *OutboxRepositoryImpl) MarkDelivered(
	ctx context.Context, key model.OccurrenceKey, deliveredAt time.Time,
) (bool, error) {
	q := conn(ctx, r.pool)
	scheduledAt := model.StorageInstant(key.ScheduledAt)

	tag, err := q.Exec(ctx, `
UPDATE outbox
SET delivered_at = $3
WHERE person_id = $1 AND scheduled_at = $2 AND delivered_at IS NULL`,
		key.PersonID,
		scheduledAt,
		deliveredAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark occurrence delivered: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM outbox WHERE person_id = $1 AND scheduled_at = $2)`,
		key.PersonID,
		scheduledAt,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check occurrence: %w", err)
	}

	if !exists {
		return false, model.ErrOccurrenceNotFound
	}

	return false, nil
}

// ClearPendingFor deletes a person's undelivered occurrences.
func (r *OutboxRepositoryImpl) ClearPendingFor(ctx context.Context, personID string) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM outbox WHERE person_id = $1 AND delivered_at IS NULL`, personID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending occurrences: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteAllFor deletes all of a person's occurrences.
func (r *OutboxRepositoryImpl) DeleteAllFor(ctx context.Context, personID string) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM outbox WHERE person_id = $1`, personID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete occurrences: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListByPerson returns a person's occurrences, oldest first.
func (r *OutboxRepositoryImpl) ListByPerson(ctx context.Context, personID string) ([]*model.Occurrence, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
SELECT `+occurrenceColumns+`
FROM outbox
WHERE person_id = $1
ORDER BY scheduled_at ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}

	return collectOccurrences(rows)
}

func collectOccurrences(rows pgx.Rows) ([]*model.Occurrence, error) {
	defer rows.Close()

	var occurrences []*model.Occurrence

	for rows.Next() {
		var (
			o           model.Occurrence
			deliveredAt *time.Time
		)

		if err := rows.Scan(&o.ID, &o.PersonID, &o.ScheduledAt, &o.Payload, &deliveredAt, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}

		o.ScheduledAt = o.ScheduledAt.UTC()
		o.CreatedAt = o.CreatedAt.UTC()

		if deliveredAt != nil {
			utc := deliveredAt.UTC()
			o.DeliveredAt = &utc
		}

		occurrences = append(occurrences, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate occurrences: %w", err)
	}

	return occurrences, nil
}
