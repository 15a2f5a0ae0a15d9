package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
)

// ReconcileServiceImpl implements ReconcileService.
type ReconcileServiceImpl struct {
	personRepo     repository.PersonRepository
	transactionMgr repository.TransactionManager
	planner        PlannerService
	now            func() time.Time
}

// NewReconcileServiceImpl creates a new ReconcileService implementation.
func NewReconcileServiceImpl(
	personRepo repository.PersonRepository,
	transactionMgr repository.TransactionManager,
	planner PlannerService,
	now func() time.Time,
) ReconcileService {
	if now == nil {
		now = time.Now
	}

	return &ReconcileServiceImpl{
		personRepo:     personRepo,
		transactionMgr: transactionMgr,
		planner:        planner,
		now:            now,
	}
}

// ReconcileAll plans the next occurrence of every known person. Registration
// is idempotent, so a repeated pass only reports RegisterAlreadyExists.
//
// The listing only supplies ids. Each person is re-read under a share lock
// in the transaction that registers the occurrence, so an update or delete
// committed after the listing is never planned from the stale record.
func (s *ReconcileServiceImpl) ReconcileAll(ctx context.Context) (ReconcileStats, error) {
	persons, err := s.personRepo.List(ctx)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("failed to list persons: %w", err)
	}

	stats := ReconcileStats{Persons: len(persons)}
	now := s.now()

	for _, person := range persons {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		result, err := s.reconcileOne(ctx, person.ID, now)
		if errors.Is(err, model.ErrPersonNotFound) {
			stats.Removed++
			continue
		}

		if err != nil {
			if errors.Is(err, model.ErrInvalidBirthDate) || errors.Is(err, model.ErrInvalidTimeZone) {
				stats.Invalid++
				slog.Warn("skipping person with invalid schedule data",
					slog.String("person_id", person.ID),
					slog.String("error", err.Error()),
				)

				continue
			}

			return stats, err
		}

		switch result {
		case model.RegisterCreated:
			stats.Created++
		case model.RegisterAlreadyExists:
			stats.Existed++
		}
	}

	slog.Info("reconciliation pass completed",
		slog.Int("persons", stats.Persons),
		slog.Int("created", stats.Created),
		slog.Int("existed", stats.Existed),
		slog.Int("invalid", stats.Invalid),
		slog.Int("removed", stats.Removed),
	)

	return stats, nil
}

func (s *ReconcileServiceImpl) reconcileOne(ctx context.Context, id string, now time.Time) (model.RegisterResult, error) {
	var result model.RegisterResult

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		person, err := s.personRepo.GetByIDForShare(ctx, id)
		if err != nil {
			return err
		}

		result, err = s.planner.PlanFor(ctx, person, now)

		return err
	})

	return result, err
}
