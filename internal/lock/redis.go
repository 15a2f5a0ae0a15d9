package lock

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

const keyPrefix = "birthday:lock:"

// releaseScript deletes the key only if it still holds our token, so a lock
// taken over by another replica is left alone.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry forward only while the key holds our token.
var renewScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX on a shared Redis. A held
// lease is renewed every third of its ttl until released.
type RedisLocker struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a Locker whose unrenewed locks expire after ttl.
func NewRedisLocker(client rueidis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// TryAcquire sets the lock key if absent and starts renewing it.
func (l *RedisLocker) TryAcquire(ctx context.Context, name string) (Lease, bool, error) {
	key := keyPrefix + name
	token := uuid.NewString()

	cmd := l.client.B().Set().Key(key).Value(token).Nx().PxMilliseconds(l.ttl.Milliseconds()).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	lease := &redisLease{
		locker:  l,
		name:    name,
		key:     key,
		token:   token,
		lost:    make(chan struct{}),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go lease.keepAlive()

	return lease, true, nil
}

type redisLease struct {
	locker *RedisLocker
	name   string
	key    string
	token  string

	lost    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func (le *redisLease) Done() <-chan struct{} {
	return le.lost
}

// keepAlive renews the key until Release. The lease is reported lost when the
// token no longer matches, or when renewals keep failing for a whole ttl.
func (le *redisLease) keepAlive() {
	defer close(le.stopped)

	ttl := le.locker.ttl
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	renewed := time.Now()

	for {
		select {
		case <-le.stop:
			return
		case <-ticker.C:
			held, err := le.renew(interval)
			if err == nil && held {
				renewed = time.Now()
				continue
			}

			if (err == nil && !held) || time.Since(renewed) >= ttl {
				close(le.lost)
				return
			}
		}
	}
}

func (le *redisLease) renew(timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := renewScript.Exec(ctx, le.locker.client,
		[]string{le.key},
		[]string{le.token, strconv.FormatInt(le.locker.ttl.Milliseconds(), 10)},
	).AsInt64()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// Release stops renewal and deletes the key if it still holds our token.
// Calls after the first are no-ops.
func (le *redisLease) Release(ctx context.Context) error {
	var err error

	le.once.Do(func() {
		close(le.stop)
		<-le.stopped

		if execErr := releaseScript.Exec(ctx, le.locker.client, []string{le.key}, []string{le.token}).Error(); execErr != nil {
			err = fmt.Errorf("failed to release lock %s: %w", le.name, execErr)
		}
	})

	return err
}
