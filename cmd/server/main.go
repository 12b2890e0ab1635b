package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/eodledger/internal/adapter/http"
	"github.com/iho/eodledger/internal/adapter/http/handler"
	"github.com/iho/eodledger/internal/adapter/scheduler"
	"github.com/iho/eodledger/internal/app"
	"github.com/iho/eodledger/internal/infrastructure/auth"
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
		Service: "eodledger-server",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log).Up(); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	// Connect to PostgreSQL
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
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, ConnectTimeout: cfg.RedisConnectTimeout}, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")
	}

	m := metrics.New(nil)
	container := app.NewContainer(app.Deps{
		Config:  cfg,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: m,
		Logger:  log,
	})

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		if cfg.JWTSecret == "" {
			return errors.New("AUTH_ENABLED requires JWT_SECRET")
		}
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		EODHandler:     handler.NewEODHandler(container.Orchestrator, cfg.SystemUser, log),
		PostingHandler: handler.NewPostingHandler(container.Settlements, container.Capitalizations),
		LedgerHandler:  handler.NewLedgerHandler(container.Ledger),
		HealthHandler:  handler.NewHealthHandler(pool, redisClient, m),
		JWTManager:     jwtManager,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		Logger:         log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		publisher := app.NewEventPublisher(cfg, container.Outbox, redisClient, m, log)
		if err := publisher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event publisher: %w", err)
		}
		return nil
	})

	if cfg.SchedulerEnabled {
		worker, err := newScheduler(cfg, container.Orchestrator, log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// newScheduler builds the in-process asynq worker that enqueues and runs the
// nightly cycle.
func newScheduler(cfg *config.Config, runner scheduler.CycleRunner, log zerolog.Logger) (*scheduler.Worker, error) {
	if !cfg.RedisEnabled {
		return nil, errors.New("SCHEDULER_ENABLED requires REDIS_ENABLED")
	}
	opts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	registrations, err := scheduler.NewCycleCron(cfg.EODCron, cfg.SystemUser, cfg.CycleTimeout)
	if err != nil {
		return nil, err
	}
	return scheduler.NewWorker(scheduler.WorkerConfig{
		RedisOpts:   opts,
		Logger:      log,
		Concurrency: cfg.SchedulerConcurrency,
		Location:    time.UTC,
		Handlers: []scheduler.TaskHandler{
			{Type: scheduler.TaskEODCycle, Handler: scheduler.NewCycleHandler(runner, cfg.SystemUser, log).Handle},
		},
		Cron: registrations,
	})
}
