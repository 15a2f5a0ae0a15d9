// Package main provides the scheduler that reconciles planned birthday
// occurrences and delivers the due ones to the webhook sink.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/rueidis"

	"github.com/jnst/birthday-outbox/internal/config"
	"github.com/jnst/birthday-outbox/internal/lock"
	"github.com/jnst/birthday-outbox/internal/logger"
	"github.com/jnst/birthday-outbox/internal/service"
	"github.com/jnst/birthday-outbox/internal/sink"
	"github.com/jnst/birthday-outbox/internal/storage"
	"github.com/jnst/birthday-outbox/internal/worker"
)

const (
	signalBufferSize = 1
	shutdownTimeout  = 30 * time.Second
	exitCode         = 1
)

func setupLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker(), func() {}, nil
	}

	redisClient, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.RedisAddr},
	})
	if err != nil {
		return nil, nil, err
	}

	return lock.NewRedisLocker(redisClient, cfg.LockTTL), redisClient.Close, nil
}

func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, signalBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutdown signal received, stopping scheduler")
		cancel()
	}()

	return ctx, cancel
}

// newWorkers builds the reconcile and delivery loops over one storage backend.
func newWorkers(cfg *config.Config, st *storage.Storage, s sink.Sink, locker lock.Locker, log *slog.Logger) []*worker.Worker {
	planner := service.NewPlannerServiceImpl(st.Outbox)
	reconcileService := service.NewReconcileServiceImpl(st.Persons, st.Transactions, planner, nil)
	deliveryService := service.NewDeliveryServiceImpl(st.Outbox, s, service.DeliveryOptions{
		BatchSize:      cfg.DeliveryBatchSize,
		Concurrency:    cfg.DeliveryConcurrency,
		AttemptTimeout: cfg.WebhookTimeout,
	})

	reconcile := worker.New(worker.Task{
		Name:       "reconcile",
		Interval:   cfg.ReconcileInterval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := reconcileService.ReconcileAll(ctx)
			return err
		},
	}, locker, log)

	deliver := worker.New(worker.Task{
		Name:     "deliver",
		Interval: cfg.DeliveryInterval,
		Run: func(ctx context.Context) error {
			_, err := deliveryService.DeliverDue(ctx)
			return err
		},
	}, locker, log)

	return []*worker.Worker{reconcile, deliver}
}

func runScheduler(ctx context.Context, workers []*worker.Worker) error {
	for _, w := range workers {
		if err := w.Start(ctx); err != nil {
			return err
		}
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, w := range workers {
		if err := w.Stop(stopCtx); err != nil {
			slog.Warn("worker did not stop in time", slog.String("error", err.Error()))
		}
	}

	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With(slog.String("service", "scheduler"))
	slog.SetDefault(log)

	ctx, cancel := setupSignalHandling()
	defer cancel()

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer st.Close()

	locker, closeLocker, err := setupLocker(cfg)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.String("error", err.Error()))
		return
	}
	defer closeLocker()

	if cfg.HookURL == "" {
		slog.Warn("HOOK_URL is not set, every delivery attempt will fail and be retried")
	}

	webhook := sink.NewWebhookSink(cfg.HookURL, cfg.WebhookTimeout)

	slog.Info("starting scheduler",
		slog.String("storage", cfg.StorageDriver),
		slog.Duration("delivery_interval", cfg.DeliveryInterval),
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Int("batch_size", cfg.DeliveryBatchSize),
		slog.Bool("distributed_lock", cfg.RedisAddr != ""),
	)

	if err := runScheduler(ctx, newWorkers(cfg, st, webhook, locker, log)); err != nil {
		slog.Error("scheduler failed", slog.String("error", err.Error()))
		return
	}

	slog.Info("scheduler stopped")
}
