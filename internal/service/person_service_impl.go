package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
)

// PersonServiceOptions tunes record-management behavior.
type PersonServiceOptions struct {
	// DeleteHistory removes delivered occurrences when a person is deleted.
	DeleteHistory bool
	// Now overrides the clock used as the planning reference.
	Now func() time.Time
}

// PersonServiceImpl implements PersonService for person management business logic.
type PersonServiceImpl struct {
	personRepo     repository.PersonRepository
	outboxRepo     repository.OutboxRepository
	transactionMgr repository.TransactionManager
	planner        PlannerService
	deleteHistory  bool
	now            func() time.Time
}

// NewPersonServiceImpl creates a new PersonService implementation.
func NewPersonServiceImpl(
	personRepo repository.PersonRepository,
	outboxRepo repository.OutboxRepository,
	transactionMgr repository.TransactionManager,
	planner PlannerService,
	opts PersonServiceOptions,
) PersonService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &PersonServiceImpl{
		personRepo:     personRepo,
		outboxRepo:     outboxRepo,
		transactionMgr: transactionMgr,
		planner:        planner,
		deleteHistory:  opts.DeleteHistory,
		now:            now,
	}
}

// CreatePerson stores a person and plans their next occurrence in one transaction.
func (s *PersonServiceImpl) CreatePerson(ctx context.Context, params *model.CreatePersonParams) (*model.Person, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	person := &model.Person{
		ID:        params.ID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		BirthDate: params.BirthDate,
		TimeZone:  params.TimeZone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	person.Normalize()

	if person.ID == "" {
		person.ID = uuid.NewString()
	}

	var created *model.Person

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.personRepo.Create(ctx, person)
		if err != nil {
			return fmt.Errorf("failed to create person: %w", err)
		}

		created = p

		_, err = s.planner.PlanFor(ctx, p, now)

		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("person created", slog.String("person_id", created.ID))

	return created, nil
}

// GetPerson retrieves a person by ID.
func (s *PersonServiceImpl) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.ErrInvalidPersonID
	}

	return s.personRepo.GetByID(ctx, id)
}

// UpdatePerson merges the update, clears the stale pending occurrence and
// plans a fresh one. Delivered occurrences are kept.
func (s *PersonServiceImpl) UpdatePerson(ctx context.Context, params *model.UpdatePersonParams) (*model.Person, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, model.ErrInvalidPersonID
	}

	var updated *model.Person

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.personRepo.GetByID(ctx, params.ID)
		if err != nil {
			return err
		}

		merged := params.Apply(*existing)
		merged.Normalize()

		if err := merged.Validate(); err != nil {
			return err
		}

		now := s.now().UTC()
		merged.UpdatedAt = now

		p, err := s.personRepo.Update(ctx, &merged)
		if err != nil {
			return fmt.Errorf("failed to update person: %w", err)
		}

		updated = p

		if _, err := s.outboxRepo.ClearPendingFor(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to clear pending occurrences: %w", err)
		}

		_, err = s.planner.PlanFor(ctx, p, now)

		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("person updated", slog.String("person_id", updated.ID))

	return updated, nil
}

// DeletePerson removes the person and their pending occurrences. Delivered
// history is removed too only when DeleteHistory is set.
func (s *PersonServiceImpl) DeletePerson(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return model.ErrInvalidPersonID
	}

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if s.deleteHistory {
			_, err = s.outboxRepo.DeleteAllFor(ctx, id)
		} else {
			_, err = s.outboxRepo.ClearPendingFor(ctx, id)
		}

		if err != nil {
			return fmt.Errorf("failed to clear occurrences: %w", err)
		}

		return s.personRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.Info("person deleted", slog.String("person_id", id), slog.Bool("history_deleted", s.deleteHistory))

	return nil
}

// ListOccurrences returns the stored occurrences of an existing person.
func (s *PersonServiceImpl) ListOccurrences(ctx context.Context, id string) ([]*model.Occurrence, error) {
	if _, err := s.GetPerson(ctx, id); err != nil {
		return nil, err
	}

	return s.outboxRepo.ListByPerson(ctx, id)
}
