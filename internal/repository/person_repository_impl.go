package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/birthday-outbox/internal/model"
)

const personColumns = `id, first_name, last_name, birth_date, time_zone, created_at, updated_at`

// PersonRepositoryImpl implements PersonRepository using PostgreSQL.
type PersonRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewPersonRepositoryImpl creates a new PersonRepository implementation.
func NewPersonRepositoryImpl(pool *pgxpool.Pool) PersonRepository {
	return &PersonRepositoryImpl{pool: pool}
}

// Create inserts a person. An id already in use yields model.ErrPersonExists.
func (r *PersonRepositoryImpl) Create(ctx context.Context, person *model.Person) (*model.Person, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
INSERT INTO persons (`+personColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
RETURNING `+personColumns,
		person.ID,
		person.FirstName,
		person.LastName,
		person.BirthDate,
		person.TimeZone,
		person.CreatedAt.UTC(),
		person.UpdatedAt.UTC(),
	)

	created, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrPersonExists, person.ID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to insert person: %w", err)
	}

	return created, nil
}

// GetByID retrieves a person by ID.
func (r *PersonRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Person, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)

	person, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrPersonNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	return person, nil
}

// GetByIDForShare retrieves a person with a FOR SHARE row lock.
func (r *PersonRepositoryImpl) GetByIDForShare(ctx context.Context, id string) (*model.Person, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1 FOR SHARE`, id)

	person, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrPersonNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get person for share: %w", err)
	}

	return person, nil
}

// Update overwrites the mutable fields of a person.
func (r *PersonRepositoryImpl) Update(ctx context.Context, person *model.Person) (*model.Person, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
UPDATE persons
SET first_name = $2, last_name = $3, birth_date = $4, time_zone = $5, updated_at = $6
WHERE id = $1
RETURNING `+personColumns,
		person.ID,
		person.FirstName,
		person.LastName,
		person.BirthDate,
		person.TimeZone,
		person.UpdatedAt.UTC(),
	)

	updated, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrPersonNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update person: %w", err)
	}

	return updated, nil
}

// Delete removes a person.
func (r *PersonRepositoryImpl) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrPersonNotFound
	}

	return nil
}

// List returns every person ordered by id.
func (r *PersonRepositoryImpl) List(ctx context.Context) ([]*model.Person, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []*model.Person

	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}

		persons = append(persons, person)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}

	return persons, nil
}

func scanPerson(row pgx.Row) (*model.Person, error) {
	var p model.Person
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.TimeZone, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}
