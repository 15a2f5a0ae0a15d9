package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/birthday-outbox/internal/config"
	"github.com/jnst/birthday-outbox/internal/lock"
	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/sink"
	"github.com/jnst/birthday-outbox/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		StorageDriver:       config.StorageDriverSQLite,
		DBFile:              filepath.Join(t.TempDir(), "scheduler.sqlite"),
		WebhookTimeout:      time.Second,
		DeliveryInterval:    10 * time.Millisecond,
		DeliveryBatchSize:   10,
		DeliveryConcurrency: 2,
		ReconcileInterval:   time.Hour,
		LockTTL:             time.Second,
	}
}

func TestSetupLockerWithoutRedis(t *testing.T) {
	locker, closeLocker, err := setupLocker(&config.Config{})
	require.NoError(t, err)
	defer closeLocker()

	assert.IsType(t, &lock.LocalLocker{}, locker)
}

func TestSchedulerDeliversAndPlans(t *testing.T) {
	var (
		mu       sync.Mutex
		received []sink.Notification
	)

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var n sink.Notification
		if err := json.Unmarshal(body, &n); err == nil {
			mu.Lock()
			received = append(received, n)
			mu.Unlock()
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := testConfig(t)
	cfg.HookURL = hook.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	due := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	_, err = st.Outbox.Register(ctx, &model.RegisterOccurrenceParams{
		PersonID: "p-due", ScheduledAt: due, Payload: "Hey, Ada Lovelace, it’s your birthday",
	})
	require.NoError(t, err)

	now := time.Now()
	_, err = st.Persons.Create(ctx, &model.Person{
		ID: "p-new", FirstName: "Grace", LastName: "Hopper",
		BirthDate: "1906-12-09", TimeZone: "America/New_York", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	workers := newWorkers(cfg, st, sink.NewWebhookSink(cfg.HookURL, cfg.WebhookTimeout), lock.NewLocalLocker(), slog.Default())

	done := make(chan error, 1)
	go func() { done <- runScheduler(ctx, workers) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		rows, err := st.Outbox.ListByPerson(ctx, "p-new")
		return err == nil && len(rows) == 1
	}, 5*time.Second, 10*time.Millisecond, "reconciler plans the person on start")

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "p-due", received[0].UserID)
	assert.Equal(t, due.UnixMilli(), received[0].ScheduledAt)

	rows, err := st.Outbox.ListByPerson(context.Background(), "p-due")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Delivered())
}

func TestDeliveryPassLogsStatsOnce(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	cfg := testConfig(t)
	cfg.HookURL = hook.URL

	ctx := context.Background()
	st, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Outbox.Register(ctx, &model.RegisterOccurrenceParams{
		PersonID: "p-1", ScheduledAt: time.Now().Add(-time.Minute), Payload: "Hey",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	previous := slog.Default()
	slog.SetDefault(log)
	t.Cleanup(func() { slog.SetDefault(previous) })

	workers := newWorkers(cfg, st, sink.NewWebhookSink(cfg.HookURL, cfg.WebhookTimeout), lock.NewLocalLocker(), log)
	workers[1].RunOnce(ctx)

	assert.Equal(t, 1, strings.Count(buf.String(), "due=1"), buf.String())
}
