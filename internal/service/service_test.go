package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jnst/birthday-outbox/internal/model"
	"github.com/jnst/birthday-outbox/internal/repository"
	"github.com/jnst/birthday-outbox/internal/repository/sqlite"
)

// testClock is a settable clock shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type testEnv struct {
	persons repository.PersonRepository
	outbox  repository.OutboxRepository
	tx      repository.TransactionManager
	planner PlannerService
	clock   *testClock
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	outbox := sqlite.NewOutboxRepository(db)

	return &testEnv{
		persons: sqlite.NewPersonRepository(db),
		outbox:  outbox,
		tx:      sqlite.NewTransactionManager(db),
		planner: NewPlannerServiceImpl(outbox),
		clock:   newTestClock(now),
	}
}

func (e *testEnv) personService(deleteHistory bool) PersonService {
	return NewPersonServiceImpl(e.persons, e.outbox, e.tx, e.planner, PersonServiceOptions{
		DeleteHistory: deleteHistory,
		Now:           e.clock.Now,
	})
}

func (e *testEnv) pending(t *testing.T, personID string) []*model.Occurrence {
	t.Helper()
	rows, err := e.outbox.ListByPerson(context.Background(), personID)
	require.NoError(t, err)

	var pending []*model.Occurrence
	for _, o := range rows {
		if !o.Delivered() {
			pending = append(pending, o)
		}
	}
	return pending
}

func createPerson(t *testing.T, svc PersonService, id, birth, zone string) *model.Person {
	t.Helper()
	p, err := svc.CreatePerson(context.Background(), &model.CreatePersonParams{
		ID:        id,
		FirstName: "First-" + id,
		LastName:  "Last",
		BirthDate: birth,
		TimeZone:  zone,
	})
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string {
	return &s
}
