package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
)

const lockPrefix = "eodledger:lock:"

// Locker implements usecase.Locker with a Redis mutex shared by every server
// and worker process. The lock is extended while fn runs, so a cycle may
// outlive the configured expiry.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
	logger zerolog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithTries makes WithLock retry acquisition up to n times before giving up.
func WithTries(n int) LockerOption {
	return func(l *Locker) {
		if n > 0 {
			l.tries = n
		}
	}
}

// NewLocker creates a new Locker. By default it tries once.
func NewLocker(client *redis.Client, expiry time.Duration, logger zerolog.Logger, opts ...LockerOption) *Locker {
	l := &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		tries:  1,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithLock runs fn while holding key. It fails with
// domain.ErrLockNotAcquired when another process still holds the key after
// the configured tries.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(lockPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrLockNotAcquired, key, err)
	}
	l.logger.Debug().Str("lock_key", key).Msg("lock acquired")

	done := make(chan struct{})
	defer close(done)
	go l.keepAlive(ctx, mutex, key, done)

	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			l.logger.Error().Err(err).Str("lock_key", key).Bool("unlock_ok", ok).Msg("failed to release lock")
		}
	}()

	return fn(ctx)
}

func (l *Locker) keepAlive(ctx context.Context, mutex *redsync.Mutex, key string, done <-chan struct{}) {
	ticker := time.NewTicker(l.expiry / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := mutex.ExtendContext(ctx); !ok || err != nil {
				l.logger.Warn().Err(err).Str("lock_key", key).Msg("failed to extend lock")
			}
		}
	}
}
