package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
)

const occurrenceColumns = `id, person_id, scheduled_at, payload, delivered_at, created_at`

// OutboxRepository implements repository.OutboxRepository on SQLite.
type OutboxRepository struct {
	db  *DB
	now func() time.Time
}

// NewOutboxRepository creates a new OutboxRepository implementation.
func NewOutboxRepository(db *DB) repository.OutboxRepository {
	return &OutboxRepository{db: db, now: time.Now}
}

// Register inserts a pending occurrence unless its key is already stored.
func (r *OutboxRepository) Register(
	ctx context.Context, params *model.RegisterOccurrenceParams,
) (model.RegisterResult, error) {
	if params.PersonID == "" {
		return 0, model.ErrInvalidPersonID
	}

	res, err := r.db.conn(ctx).ExecContext(ctx, `
INSERT INTO outbox (id, person_id, scheduled_at, payload, delivered_at, created_at)
VALUES (?, ?, ?, ?, NULL, ?)
ON CONFLICT (person_id, scheduled_at) DO NOTHING`,
		uuid.NewString(),
		params.PersonID,
		toMillis(params.ScheduledAt),
		params.Payload,
		toMillis(r.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("register occurrence: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("register occurrence: %w", err)
	}

	if n == 0 {
		return model.RegisterAlreadyExists, nil
	}

	return model.RegisterCreated, nil
}

// ListDue retrieves pending occurrences whose scheduled instant has passed.
func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Occurrence, error) {
	if limit <= 0 {
		return nil, model.ErrInvalidLimit
	}

	rows, err := r.db.conn(ctx).QueryContext(ctx, `
SELECT `+occurrenceColumns+`
FROM outbox
WHERE delivered_at IS NULL AND scheduled_at <= ?
ORDER BY scheduled_at ASC, id ASC
LIMIT ?`,
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due occurrences: %w", err)
	}

	return collectOccurrences(rows)
}

// MarkDelivered marks a pending occurrence as delivered.
func (r *OutboxRepository) MarkDelivered(
	ctx context.Context, key model.OccurrenceKey, deliveredAt time.Time,
) (bool, error) {
	q := r.db.conn(ctx)
	scheduledAt := toMillis(key.ScheduledAt)

	res, err := q.ExecContext(ctx, `
UPDATE outbox
SET delivered_at = ?
WHERE person_id = ? AND scheduled_at = ? AND delivered_at IS NULL`,
		toMillis(deliveredAt),
		key.PersonID,
		scheduledAt,
	)
	if err != nil {
		return false, fmt.Errorf("mark occurrence delivered: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark occurrence delivered: %w", err)
	}

	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM outbox WHERE person_id = ? AND scheduled_at = ?)`,
		key.PersonID,
		scheduledAt,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check occurrence: %w", err)
	}

	if !exists {
		return false, model.ErrOccurrenceNotFound
	}

	return false, nil
}

// ClearPendingFor deletes a person's undelivered occurrences.
func (r *OutboxRepository) ClearPendingFor(ctx context.Context, personID string) (int64, error) {
	res, err := r.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM outbox WHERE person_id = ? AND delivered_at IS NULL`, personID)
	if err != nil {
		return 0, fmt.Errorf("clear pending occurrences: %w", err)
	}

	return res.RowsAffected()
}

// DeleteAllFor deletes all of a person's occurrences.
func (r *OutboxRepository) DeleteAllFor(ctx context.Context, personID string) (int64, error) {
	res, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM outbox WHERE person_id = ?`, personID)
	if err != nil {
		return 0, fmt.Errorf("delete occurrences: %w", err)
	}

	return res.RowsAffected()
}

// ListByPerson returns a person's occurrences, oldest first.
func (r *OutboxRepository) ListByPerson(ctx context.Context, personID string) ([]*model.Occurrence, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `
SELECT `+occurrenceColumns+`
FROM outbox
WHERE person_id = ?
ORDER BY scheduled_at ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}

	return collectOccurrences(rows)
}

func collectOccurrences(rows *sql.Rows) ([]*model.Occurrence, error) {
	defer rows.Close()

	var occurrences []*model.Occurrence

	for rows.Next() {
		var (
			o           model.Occurrence
			scheduledAt int64
			deliveredAt sql.NullInt64
			createdAt   int64
		)

		if err := rows.Scan(&o.ID, &o.PersonID, &scheduledAt, &o.Payload, &deliveredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}

		o.ScheduledAt = fromMillis(scheduledAt)
		o.CreatedAt = fromMillis(createdAt)

		if deliveredAt.Valid {
			t := fromMillis(deliveredAt.Int64)
			o.DeliveredAt = &t
		}

		occurrences = append(occurrences, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}

	return occurrences, nil
}
