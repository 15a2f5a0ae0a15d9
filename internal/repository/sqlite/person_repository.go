package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
)

const personColumns = `id, first_name, last_name, birth_date, time_zone, created_at, updated_at`

// PersonRepository implements repository.PersonRepository on SQLite.
type PersonRepository struct {
	db *DB
}

// NewPersonRepository creates a new PersonRepository implementation.
func NewPersonRepository(db *DB) repository.PersonRepository {
	return &PersonRepository{db: db}
}

// Create inserts a person. An id already in use yields model.ErrPersonExists.
func (r *PersonRepository) Create(ctx context.Context, person *model.Person) (*model.Person, error) {
	res, err := r.db.conn(ctx).ExecContext(ctx, `
INSERT INTO persons (`+personColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`,
		person.ID,
		person.FirstName,
		person.LastName,
		person.BirthDate,
		person.TimeZone,
		toMillis(person.CreatedAt),
		toMillis(person.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}

	if n == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrPersonExists, person.ID)
	}

	return r.GetByID(ctx, person.ID)
}

// GetByID retrieves a person by ID.
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*model.Person, error) {
	row := r.db.conn(ctx).QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id)

	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPersonNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}

	return person, nil
}

// GetByIDForShare reads a person. Transactions begin IMMEDIATE, so inside one
// the write lock is already held and no other writer can interleave.
func (r *PersonRepository) GetByIDForShare(ctx context.Context, id string) (*model.Person, error) {
	return r.GetByID(ctx, id)
}

// Update overwrites the mutable fields of a person.
func (r *PersonRepository) Update(ctx context.Context, person *model.Person) (*model.Person, error) {
	res, err := r.db.conn(ctx).ExecContext(ctx, `
UPDATE persons
SET first_name = ?, last_name = ?, birth_date = ?, time_zone = ?, updated_at = ?
WHERE id = ?`,
		person.FirstName,
		person.LastName,
		person.BirthDate,
		person.TimeZone,
		toMillis(person.UpdatedAt),
		person.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}

	if n == 0 {
		return nil, model.ErrPersonNotFound
	}

	return r.GetByID(ctx, person.ID)
}

// Delete removes a person.
func (r *PersonRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	if n == 0 {
		return model.ErrPersonNotFound
	}

	return nil
}

// List returns every person ordered by id.
func (r *PersonRepository) List(ctx context.Context) ([]*model.Person, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `SELECT `+personColumns+` FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []*model.Person

	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}

		persons = append(persons, person)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}

	return persons, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*model.Person, error) {
	var (
		p         model.Person
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.TimeZone, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	return &p, nil
}
