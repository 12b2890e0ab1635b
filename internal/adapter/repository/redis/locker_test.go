package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/eodledger/internal/domain"
)

func TestLockerRunsFunctionAndReleases(t *testing.T) {
	client, mr := newTestRedisClient(t)

	locker := NewLocker(client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	ran := false
	err := locker.WithLock(ctx, "eod:cycle", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(lockPrefix+"eod:cycle"), "lock key should exist while held")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(lockPrefix+"eod:cycle"), "lock key should be released")
}

func TestLockerRejectsConcurrentHolder(t *testing.T) {
	client, _ := newTestRedisClient(t)

	first := NewLocker(client, time.Minute, zerolog.Nop())
	second := NewLocker(client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	err := first.WithLock(ctx, "eod:cycle", func(ctx context.Context) error {
		return second.WithLock(ctx, "eod:cycle", func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
	})
	require.ErrorIs(t, err, domain.ErrLockNotAcquired)
}

func TestLockerReturnsFunctionError(t *testing.T) {
	client, mr := newTestRedisClient(t)

	locker := NewLocker(client, time.Minute, zerolog.Nop())
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "eod:cycle", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(lockPrefix+"eod:cycle"))
}

func TestLockerWithTries(t *testing.T) {
	client, _ := newTestRedisClient(t)

	assert.Equal(t, 1, NewLocker(client, time.Minute, zerolog.Nop()).tries)
	assert.Equal(t, 1, NewLocker(client, time.Minute, zerolog.Nop(), WithTries(0)).tries)
	assert.Equal(t, 5, NewLocker(client, time.Minute, zerolog.Nop(), WithTries(5)).tries)
}

func TestLockerWaitsForRelease(t *testing.T) {
	client, _ := newTestRedisClient(t)

	holder := NewLocker(client, time.Minute, zerolog.Nop())
	waiter := NewLocker(client, time.Minute, zerolog.Nop(), WithTries(64))
	ctx := context.Background()

	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.WithLock(ctx, "fx:USD/BDT", func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	ran := false
	err := waiter.WithLock(ctx, "fx:USD/BDT", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	require.NoError(t, <-done)
}
