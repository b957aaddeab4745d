// Package lock provides the per-order advisory lock taken around approval and retry.
// It sits in front of the store's conditional updates and only turns a concurrent
// attempt into an early, cheap rejection.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("lock held by another caller")

type Locker interface {
	// Acquire takes the lock for key with a single attempt. It returns ErrLocked when
	// somebody else holds it.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type redsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedsyncLocker returns a Locker backed by redis. expiry must outlive the longest
// critical section (the provisioning timeout plus finalisation).
func NewRedsyncLocker(rdb *redis.Client, expiry time.Duration) Locker {
	pool := goredis.NewPool(rdb)
	return &redsyncLocker{
		rs:     redsync.New(pool),
		expiry: expiry,
	}
}

func (l *redsyncLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, lockError(key, err)
	}

	return func() {
		// the critical section may have outlived the request context
		_, _ = mutex.UnlockContext(context.WithoutCancel(ctx))
	}, nil
}

// lockError tells a lock held elsewhere apart from a broken backend.
func lockError(key string, err error) error {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return ErrLocked
	}
	return fmt.Errorf("acquire %s: %w", key, err)
}

type noopLocker struct{}

// NewNoopLocker is used when redis is not configured; the store-level guards still apply.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

func OrderKey(orderID string) string {
	return "order_lock:" + orderID
}
