package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
	"github.com/jnst/birthday-outbox/internal/sink"
)

// DeliveryOptions tunes a delivery pass.
type DeliveryOptions struct {
	BatchSize   int
	Concurrency int
	// AttemptTimeout bounds one sink call; a timeout counts as a failure.
	AttemptTimeout time.Duration
	Now            func() time.Time
}

// DeliveryServiceImpl implements DeliveryService for draining due occurrences.
type DeliveryServiceImpl struct {
	outboxRepo repository.OutboxRepository
	sink       sink.Sink
	opts       DeliveryOptions
}

// NewDeliveryServiceImpl creates a new DeliveryService implementation.
func NewDeliveryServiceImpl(
	outboxRepo repository.OutboxRepository,
	s sink.Sink,
	opts DeliveryOptions,
) DeliveryService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &DeliveryServiceImpl{
		outboxRepo: outboxRepo,
		sink:       s,
		opts:       opts,
	}
}

// DeliverDue fetches up to BatchSize due occurrences, oldest first, and tries
// each once. A failed attempt leaves the occurrence pending for the next pass
// and never blocks the rest of the batch. Storage errors are returned after
// every attempt in the batch has settled. Cancelling ctx stops new attempts;
// an attempt whose send succeeded is still marked delivered.
func (s *DeliveryServiceImpl) DeliverDue(ctx context.Context) (DeliveryStats, error) {
	due, err := s.outboxRepo.ListDue(ctx, s.opts.Now(), s.opts.BatchSize)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("failed to list due occurrences: %w", err)
	}

	stats := DeliveryStats{Due: len(due)}
	if len(due) == 0 {
		return stats, nil
	}

	var (
		mu        sync.Mutex
		storeErrs []error
		g         errgroup.Group
	)

	g.SetLimit(s.opts.Concurrency)

	for _, occurrence := range due {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			outcome, err := s.deliverOne(ctx, occurrence)

			mu.Lock()
			defer mu.Unlock()

			switch outcome {
			case outcomeDelivered:
				stats.Delivered++
			case outcomeFailed:
				stats.Failed++
			case outcomeSkipped:
				stats.Skipped++
			}

			if err != nil {
				storeErrs = append(storeErrs, err)
			}

			return err
		})
	}

	waitErr := g.Wait()

	slog.Info("delivery pass completed",
		slog.Int("due", stats.Due),
		slog.Int("delivered", stats.Delivered),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
	)

	if waitErr != nil {
		return stats, errors.Join(storeErrs...)
	}

	return stats, ctx.Err()
}

type outcome int

const (
	outcomeDelivered outcome = iota + 1
	outcomeFailed
	outcomeSkipped
)

func (s *DeliveryServiceImpl) deliverOne(ctx context.Context, occurrence *model.Occurrence) (outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	err := s.sink.Deliver(attemptCtx, occurrence)
	cancel()

	if err != nil {
		slog.Warn("delivery failed, will retry",
			slog.String("occurrence_id", occurrence.ID),
			slog.String("person_id", occurrence.PersonID),
			slog.Time("scheduled_at", occurrence.ScheduledAt),
			slog.String("error", err.Error()),
		)

		return outcomeFailed, nil
	}

	// The send happened; record it even if the pass is being cancelled.
	won, err := s.outboxRepo.MarkDelivered(context.WithoutCancel(ctx), occurrence.Key(), s.opts.Now())
	if errors.Is(err, model.ErrOccurrenceNotFound) {
		slog.Warn("delivered occurrence no longer in outbox",
			slog.String("occurrence_id", occurrence.ID),
			slog.String("person_id", occurrence.PersonID),
		)

		return outcomeSkipped, nil
	}

	if err != nil {
		return outcomeDelivered, fmt.Errorf("failed to mark occurrence %s delivered: %w", occurrence.ID, err)
	}

	if !won {
		return outcomeSkipped, nil
	}

	slog.Info("occurrence delivered",
		slog.String("occurrence_id", occurrence.ID),
		slog.String("person_id", occurrence.PersonID),
	)

	return outcomeDelivered, nil
}
