package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const lockScope = "document"

// ErrLockTimeout means another holder kept the lock for the whole wait.
var ErrLockTimeout = errors.New("document lock wait timed out")

var errLockHeld = errors.New("document lock held")

// Locker serializes renders of one document across instances.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

type lockClient interface {
	LockKey(scope, id string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
}

// RedisLocker is a SET NX lock with an owner token, released by
// compare-and-delete.
type RedisLocker struct {
	client lockClient
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewRedisLocker(client lockClient, ttl, wait time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	if wait <= 0 {
		wait = ttl
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, poll: 25 * time.Millisecond}, nil
}

// Acquire polls with capped exponential backoff until the lock is free or the
// wait elapses.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := l.client.LockKey(lockScope, name)
	owner := uuid.NewString()

	backoff := retry.WithMaxDuration(l.wait, retry.WithCappedDuration(500*time.Millisecond, retry.NewExponential(l.poll)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	if errors.Is(err, errLockHeld) {
		return nil, ErrLockTimeout
	}
	if err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_, _ = l.client.ReleaseLock(ctx, key, owner)
	}, nil
}
