// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"
	"time"

	"github.com/jnst/birthday-outbox/internal/model"
)

// PersonRepository defines methods for person data access.
type PersonRepository interface {
	Create(ctx context.Context, person *model.Person) (*model.Person, error)
	GetByID(ctx context.Context, id string) (*model.Person, error)
	// GetByIDForShare reads a person and, inside a transaction, holds off
	// concurrent updates and deletes of that row until the transaction ends.
	GetByIDForShare(ctx context.Context, id string) (*model.Person, error)
	Update(ctx context.Context, person *model.Person) (*model.Person, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Person, error)
}

// OutboxRepository defines the durable occurrence outbox.
//
// The unique key (person id, scheduled instant) is the only concurrency
// control the scheduler relies on: Register never fails on a duplicate key,
// it reports RegisterAlreadyExists and leaves the stored row untouched.
type OutboxRepository interface {
	Register(ctx context.Context, params *model.RegisterOccurrenceParams) (model.RegisterResult, error)
	// ListDue returns pending occurrences scheduled at or before now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Occurrence, error)
	// MarkDelivered sets delivered_at once. It reports true only for the call
	// that performed the transition; repeating it is a no-op.
	MarkDelivered(ctx context.Context, key model.OccurrenceKey, deliveredAt time.Time) (bool, error)
	// ClearPendingFor deletes undelivered occurrences of a person.
	ClearPendingFor(ctx context.Context, personID string) (int64, error)
	// DeleteAllFor deletes every occurrence of a person, delivered or not.
	DeleteAllFor(ctx context.Context, personID string) (int64, error)
	ListByPerson(ctx context.Context, personID string) ([]*model.Occurrence, error)
}

// TransactionManager defines methods for database transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
