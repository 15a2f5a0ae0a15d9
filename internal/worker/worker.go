// Package worker runs interval tasks with an explicit start/stop lifecycle.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jnst/birthday-outbox/internal/lock"
)

// ErrAlreadyStarted is returned when Start is called on a running worker.
var ErrAlreadyStarted = errors.New("worker already started")

// Task is one unit of periodic work.
type Task struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Worker runs a Task on a ticker. Passes never overlap: the next tick is
// only observed after the current pass returns.
type Worker struct {
	task   Task
	locker lock.Locker
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker. A nil locker means passes are never gated.
func New(task Task, locker lock.Locker, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		task:   task,
		locker: locker,
		logger: logger.With(slog.String("task", task.Name)),
	}
}

// Start launches the loop in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("worker started", slog.Duration("interval", w.task.Interval))

	return nil
}

// Stop cancels the loop and waits for the pass in flight, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	if w.task.RunOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pass, skipping it if another holder has the lock.
// Losing the lock mid-pass cancels the pass context. Errors are logged; they
// never stop the loop.
func (w *Worker) RunOnce(ctx context.Context) {
	if w.locker != nil {
		lease, ok, err := w.locker.TryAcquire(ctx, w.task.Name)
		if err != nil {
			w.logger.Error("failed to acquire pass lock", slog.String("error", err.Error()))
			return
		}

		if !ok {
			w.logger.Debug("pass skipped, lock held elsewhere")
			return
		}

		passCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			select {
			case <-lease.Done():
				w.logger.Warn("pass lock lost, cancelling pass")
				cancel()
			case <-passCtx.Done():
			}
		}()

		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release pass lock", slog.String("error", err.Error()))
			}
		}()

		ctx = passCtx
	}

	start := time.Now()
	if err := w.task.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}

		w.logger.Error("pass failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)

		return
	}

	w.logger.Debug("pass completed", slog.Duration("elapsed", time.Since(start)))
}
