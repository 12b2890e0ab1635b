package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/iho/eodledger/internal/adapter/scheduler"
	"github.com/iho/eodledger/internal/app"
	"github.com/iho/eodledger/internal/infrastructure/config"
	"github.com/iho/eodledger/internal/infrastructure/logger"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
	"github.com/iho/eodledger/internal/infrastructure/postgres"
	"github.com/iho/eodledger/internal/infrastructure/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "eodledger-worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	// The worker needs Redis for the task queue, so it is not optional here.
	redisClient, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, ConnectTimeout: cfg.RedisConnectTimeout}, log)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	redisOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	container := app.NewContainer(app.Deps{
		Config:  cfg,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics.New(nil),
		Logger:  log,
	})

	registrations, err := scheduler.NewCycleCron(cfg.EODCron, cfg.SystemUser, cfg.CycleTimeout)
	if err != nil {
		return err
	}

	worker, err := scheduler.NewWorker(scheduler.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      log,
		Concurrency: cfg.SchedulerConcurrency,
		Location:    time.UTC,
		Handlers: []scheduler.TaskHandler{
			{Type: scheduler.TaskEODCycle, Handler: scheduler.NewCycleHandler(container.Orchestrator, cfg.SystemUser, log).Handle},
		},
		Cron: registrations,
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	log.Info().Str("cron", cfg.EODCron).Msg("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker run: %w", err)
	}
	log.Info().Msg("worker stopped")
	return nil
}
