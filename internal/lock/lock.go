// Package lock keeps two scheduler replicas from running the same pass at once.
package lock

import (
	"context"
	"sync"
)

// Lease is a held lock. Done is closed if the lock is lost before Release,
// after which another holder may take it.
type Lease interface {
	Done() <-chan struct{}
	Release(ctx context.Context) error
}

// Locker hands out named leases. TryAcquire never blocks waiting for the lock:
// ok is false when another holder has it.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (lease Lease, ok bool, err error)
}

// LocalLocker is an in-process Locker for single-replica deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates a new in-process Locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryAcquire takes name if it is free.
func (l *LocalLocker) TryAcquire(_ context.Context, name string) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[name]; busy {
		return nil, false, nil
	}

	l.held[name] = struct{}{}

	return &localLease{locker: l, name: name, done: make(chan struct{})}, true, nil
}

// localLease is never lost; it lives until released.
type localLease struct {
	locker *LocalLocker
	name   string
	done   chan struct{}
	once   sync.Once
}

func (le *localLease) Done() <-chan struct{} {
	return le.done
}

func (le *localLease) Release(context.Context) error {
	le.once.Do(func() {
		le.locker.mu.Lock()
		delete(le.locker.held, le.name)
		le.locker.mu.Unlock()
	})

	return nil
}
