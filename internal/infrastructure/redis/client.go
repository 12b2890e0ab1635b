package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config describes the Redis connection shared by the cycle lock, the rate
// cache, the event stream and the task queue.
type Config struct {
	URL string
	// ConnectTimeout bounds how long startup keeps retrying the first
	// ping. Zero pings once.
	ConnectTimeout time.Duration
}

// NewClient opens a client and waits until the server answers a ping.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	attempts := 0
	ping := func() error {
		attempts++
		err := client.Ping(ctx).Err()
		if err != nil {
			logger.Debug().Err(err).Int("attempt", attempts).Msg("redis not ready")
		}
		return err
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if cfg.ConnectTimeout > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 100 * time.Millisecond
		eb.MaxInterval = 2 * time.Second
		eb.MaxElapsedTime = cfg.ConnectTimeout
		b = eb
	}

	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis after %d attempts: %w", attempts, err)
	}

	logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Int("attempts", attempts).Msg("connected to redis")
	return client, nil
}
