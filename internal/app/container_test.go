package app

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisRepo "github.com/iho/eodledger/internal/adapter/repository/redis"
	"github.com/iho/eodledger/internal/infrastructure/config"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
	"github.com/iho/eodledger/internal/usecase"
)

func testConfig() *config.Config {
	return &config.Config{
		LocalCurrency:      "BDT",
		Workers:            8,
		StrictBalanceCheck: true,
		DealGLPrefixes:     []string{"1102", "1103"},
		UnrealizedGainGL:   "310900001",
		UnrealizedLossGL:   "410900001",
		RealizedGainGL:     "310900002",
		RealizedLossGL:     "410900002",
		PositionGL:         "210900001",
		PositionLCYGL:      "210900002",
		RateCacheTTL:       time.Minute,
		LockTTL:            time.Hour,
		OutboxStream:       "eodledger:events",
		OutboxBatchSize:    10,
		OutboxInterval:     time.Second,
	}
}

func TestSettingsFromConfig(t *testing.T) {
	got := SettingsFromConfig(testConfig())

	assert.Equal(t, usecase.Settings{
		LocalCurrency:      "BDT",
		DealGLPrefixes:     []string{"1102", "1103"},
		UnrealizedGainGL:   "310900001",
		UnrealizedLossGL:   "410900001",
		RealizedGainGL:     "310900002",
		RealizedLossGL:     "410900002",
		PositionGL:         "210900001",
		PositionLCYGL:      "210900002",
		Workers:            8,
		StrictBalanceCheck: true,
	}, got)
}

func TestNewLockersWithoutRedisShareKeyedMutex(t *testing.T) {
	cycle, pair := newLockers(nil, time.Hour, zerolog.Nop())

	_, ok := cycle.(*usecase.KeyedMutex)
	assert.True(t, ok, "cycle locker should be in process")
	assert.Same(t, cycle, pair)
}

func TestNewLockersWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cycle, pair := newLockers(client, time.Hour, zerolog.Nop())

	_, ok := cycle.(*redisRepo.Locker)
	assert.True(t, ok, "cycle locker should be distributed")
	_, ok = pair.(*redisRepo.Locker)
	assert.True(t, ok, "pair locker should be distributed")
	assert.NotSame(t, cycle, pair)
}

func TestNewContainerWiresUseCases(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	for _, tc := range []struct {
		name  string
		redis *redis.Client
	}{
		{name: "without redis"},
		{name: "with redis", redis: client},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewContainer(Deps{
				Config:  testConfig(),
				Redis:   tc.redis,
				Metrics: metrics.New(nil),
				Logger:  zerolog.Nop(),
			})

			require.NotNil(t, c.Orchestrator)
			require.NotNil(t, c.Settlements)
			require.NotNil(t, c.Capitalizations)
			require.NotNil(t, c.Ledger)
			require.NotNil(t, c.Clock)
			require.NotNil(t, c.Outbox)
			assert.Equal(t, "BDT", c.Settings.LocalCurrency)
			assert.NotNil(t, c.cycleLocker)
			assert.NotNil(t, c.pairLocker)
		})
	}
}

func TestNewEventPublisher(t *testing.T) {
	c := NewContainer(Deps{Config: testConfig(), Logger: zerolog.Nop()})

	assert.NotNil(t, NewEventPublisher(testConfig(), c.Outbox, nil, nil, zerolog.Nop()))
}
