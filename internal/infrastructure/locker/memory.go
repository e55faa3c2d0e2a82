// Package locker provides an in-process AccountLocker for single-node
// deployments and tools that run without Redis.
package locker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrLockNotHeld is returned by Release when the token no longer holds the key.
var ErrLockNotHeld = errors.New("lock not held")

type heldLock struct {
	token string
	since time.Time
}

// MemoryLocker is a non-blocking, non-reentrant lock table. Locks older than
// ttl are treated as abandoned.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]heldLock
	seq   uint64
	ttl   time.Duration
	clock func() time.Time
}

// NewMemoryLocker creates a locker. A zero ttl never expires locks.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]heldLock),
		ttl:   ttl,
		clock: time.Now,
	}
}

// TryAcquire takes key if it is free and returns the token that holds it.
func (l *MemoryLocker) TryAcquire(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[key]; ok && (l.ttl == 0 || now.Sub(h.since) < l.ttl) {
		return "", false, nil
	}

	l.seq++
	token := strconv.FormatUint(l.seq, 10)
	l.held[key] = heldLock{token: token, since: now}
	return token, true, nil
}

// Release frees key if token still holds it.
func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.held[key]
	if !ok || h.token != token {
		return ErrLockNotHeld
	}
	delete(l.held, key)
	return nil
}
