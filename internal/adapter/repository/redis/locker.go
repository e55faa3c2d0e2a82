package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned by Release when the token no longer holds the
// key, because it expired or was never acquired.
var ErrLockNotHeld = errors.New("lock not held")

// Deleting only when the stored token matches keeps a slow holder whose lock
// expired from releasing the next holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AccountLocker implements usecase.AccountLocker with SET NX PX. The lock is
// non-blocking and non-reentrant, and expires after ttl if never released.
type AccountLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewAccountLocker creates a new AccountLocker.
func NewAccountLocker(client *redis.Client, ttl time.Duration) *AccountLocker {
	return &AccountLocker{
		client: client,
		prefix: "lock:",
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock without waiting. The returned token
// must be passed to Release.
func (l *AccountLocker) TryAcquire(ctx context.Context, key string) (string, bool, error) {
	token, err := newToken()
	if err != nil {
		return "", false, err
	}

	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release frees the lock if token still holds it.
func (l *AccountLocker) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return ErrLockNotHeld
	}

	deleted, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
