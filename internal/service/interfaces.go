// Package service provides business logic layer implementations.
package service

import (
	"context"
	"time"

	"github.com/jnst/birthday-outbox/internal/model"
)

// PlannerService registers the next occurrence of a person in the outbox.
type PlannerService interface {
	// PlanFor computes the next occurrence after ref and registers it. A key
	// that is already stored is reported as model.RegisterAlreadyExists, not
	// as an error.
	PlanFor(ctx context.Context, person *model.Person, ref time.Time) (model.RegisterResult, error)
}

// PersonService defines record-management operations. Every mutation keeps
// the person's pending occurrence in step with the stored record.
type PersonService interface {
	CreatePerson(ctx context.Context, params *model.CreatePersonParams) (*model.Person, error)
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	UpdatePerson(ctx context.Context, params *model.UpdatePersonParams) (*model.Person, error)
	DeletePerson(ctx context.Context, id string) error
	ListOccurrences(ctx context.Context, id string) ([]*model.Occurrence, error)
}

// DeliveryService defines one pass of the delivery loop.
type DeliveryService interface {
	DeliverDue(ctx context.Context) (DeliveryStats, error)
}

// ReconcileService defines one pass of the bootstrap reconciler.
type ReconcileService interface {
	ReconcileAll(ctx context.Context) (ReconcileStats, error)
}

// DeliveryStats summarizes a delivery pass.
type DeliveryStats struct {
	Due       int
	Delivered int
	Failed    int
	Skipped   int
}

// ReconcileStats summarizes a reconciliation pass.
type ReconcileStats struct {
	Persons int
	Created int
	Existed int
	Invalid int
	// Removed counts persons deleted between the listing and their planning.
	Removed int
}
