package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
	"github.com/jnst/birthday-outbox/internal/schedule"
)

// PlannerServiceImpl implements PlannerService.
type PlannerServiceImpl struct {
	outboxRepo repository.OutboxRepository
}

// NewPlannerServiceImpl creates a new PlannerService implementation.
func NewPlannerServiceImpl(outboxRepo repository.OutboxRepository) PlannerService {
	return &PlannerServiceImpl{outboxRepo: outboxRepo}
}

// PlanFor registers the person's next 09:00 local occurrence after ref.
func (s *PlannerServiceImpl) PlanFor(
	ctx context.Context, person *model.Person, ref time.Time,
) (model.RegisterResult, error) {
	scheduledAt, err := schedule.Next(person, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next occurrence for person %s: %w", person.ID, err)
	}

	result, err := s.outboxRepo.Register(ctx, &model.RegisterOccurrenceParams{
		PersonID:    person.ID,
		ScheduledAt: scheduledAt,
		Payload:     schedule.Message(person),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register occurrence for person %s: %w", person.ID, err)
	}

	slog.Debug("occurrence planned",
		slog.String("person_id", person.ID),
		slog.Time("scheduled_at", scheduledAt),
		slog.String("result", result.String()),
	)

	return result, nil
}
