// Package app assembles the EOD engine from configuration. The server, the
// worker and the CLI share this wiring.
package app

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	postgresRepo "github.com/iho/eodledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/eodledger/internal/adapter/repository/redis"
	"github.com/iho/eodledger/internal/infrastructure/config"
	"github.com/iho/eodledger/internal/infrastructure/eventpublisher"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
	"github.com/iho/eodledger/internal/usecase"
)

// pairLockTries bounds how long a deal waits for another deal on the same
// currency pair.
const pairLockTries = 32

// Deps are the shared resources the container is built from.
type Deps struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	// Redis is optional. Without it rates are read straight from the
	// database and locks are held in process.
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Container holds the wired use cases.
type Container struct {
	Orchestrator    *usecase.Orchestrator
	Settlements     *usecase.MultiCurrencyUseCase
	Capitalizations *usecase.CapitalizationUseCase
	Ledger          *usecase.LedgerUseCase
	Clock           *postgresRepo.BusinessClock
	Outbox          *postgresRepo.OutboxRepository
	Settings        usecase.Settings

	cycleLocker usecase.Locker
	pairLocker  usecase.Locker
}

// SettingsFromConfig maps the EOD section of the configuration.
func SettingsFromConfig(cfg *config.Config) usecase.Settings {
	return usecase.Settings{
		LocalCurrency:      cfg.LocalCurrency,
		DealGLPrefixes:     cfg.DealGLPrefixes,
		UnrealizedGainGL:   cfg.UnrealizedGainGL,
		UnrealizedLossGL:   cfg.UnrealizedLossGL,
		RealizedGainGL:     cfg.RealizedGainGL,
		RealizedLossGL:     cfg.RealizedLossGL,
		PositionGL:         cfg.PositionGL,
		PositionLCYGL:      cfg.PositionLCYGL,
		Workers:            cfg.Workers,
		StrictBalanceCheck: cfg.StrictBalanceCheck,
	}
}

// NewContainer wires repositories, jobs and use cases.
func NewContainer(d Deps) *Container {
	cfg := d.Config
	logger := d.Logger
	settings := SettingsFromConfig(cfg)

	txManager := postgresRepo.NewTxManager(d.Pool, postgresRepo.WithLockTimeout(cfg.DatabaseLockTimeout))
	uow := usecase.NewUnitOfWork(txManager, postgresRepo.NewRetrier(logger, postgresRepo.WithMaxRetries(cfg.DatabaseMaxRetries)))
	idGen := postgresRepo.NewULIDGenerator()

	master := postgresRepo.NewAccountMasterRepository(d.Pool)
	transactions := postgresRepo.NewTransactionRepository(d.Pool)
	accountBalances := postgresRepo.NewAccountBalanceRepository(d.Pool)
	accrualBalances := postgresRepo.NewAccrualBalanceRepository(d.Pool)
	glBalances := postgresRepo.NewGLBalanceRepository(d.Pool)
	movements := postgresRepo.NewGLMovementRepository(d.Pool)
	accruals := postgresRepo.NewInterestAccrualRepository(d.Pool)
	valueDateInterest := postgresRepo.NewValueDateInterestRepository(d.Pool)
	revaluations := postgresRepo.NewRevaluationRepository(d.Pool)
	wae := postgresRepo.NewWAERepository(d.Pool)
	settlementRecords := postgresRepo.NewSettlementRepository(d.Pool)
	jobLog := postgresRepo.NewJobLogRepository(d.Pool)
	clock := postgresRepo.NewBusinessClock(d.Pool)
	outbox := postgresRepo.NewOutboxRepository(d.Pool)

	var rates usecase.RateRepository = postgresRepo.NewRateRepository(d.Pool)
	if d.Redis != nil {
		rates = redisRepo.NewCachedRateRepository(rates, redisRepo.NewCache(d.Redis), cfg.RateCacheTTL, d.Metrics, logger)
	}
	cycleLocker, pairLocker := newLockers(d.Redis, cfg.LockTTL, logger)

	lookup := usecase.NewAccountLookup(master, settings.LocalCurrency)
	rateResolver := usecase.NewRateResolver(rates, settings)
	resolver := usecase.NewBalanceResolver(logger)

	valueDate := usecase.NewValueDateInterestProcessor(uow, transactions, valueDateInterest, lookup, rateResolver, settings, logger)
	glBalanceJob := usecase.NewGLBalanceJob(uow, master, movements, glBalances, resolver, settings, d.Metrics, logger)
	jobs := []usecase.Job{
		usecase.NewAccountBalanceJob(uow, transactions, accountBalances, lookup, resolver, valueDate, settings, d.Metrics, logger),
		usecase.NewInterestAccrualJob(uow, master, accountBalances, accruals, valueDateInterest, lookup, rateResolver, resolver, settings, d.Metrics, logger),
		usecase.NewAccrualGLMovementJob(uow, accruals, movements, settings, d.Metrics, logger),
		usecase.NewGLMovementJob(uow, transactions, movements, lookup, settings, d.Metrics, logger),
		glBalanceJob,
		usecase.NewAccrualBalanceJob(uow, accruals, accrualBalances, lookup, resolver, settings, d.Metrics, logger),
		usecase.NewFXRevaluationJob(uow, master, accountBalances, revaluations, movements, rateResolver, resolver, glBalanceJob, idGen, settings, d.Metrics, logger),
		usecase.NewReportJob(usecase.NewSnapshotReportGenerator(accountBalances), logger),
	}

	orchestrator := usecase.NewOrchestrator(jobs, jobLog, clock, idGen, d.Metrics, logger,
		usecase.WithLocker(cycleLocker),
		usecase.WithOutbox(outbox),
	)

	return &Container{
		Orchestrator:    orchestrator,
		Settlements:     usecase.NewMultiCurrencyUseCase(uow, pairLocker, wae, transactions, settlementRecords, outbox, idGen, settings, d.Metrics, logger),
		Capitalizations: usecase.NewCapitalizationUseCase(uow, lookup, accrualBalances, accruals, transactions, rateResolver, resolver, clock, logger),
		Ledger:          usecase.NewLedgerUseCase(glBalances, clock, d.Metrics),
		Clock:           clock,
		Outbox:          outbox,
		Settings:        settings,
		cycleLocker:     cycleLocker,
		pairLocker:      pairLocker,
	}
}

// newLockers returns the cycle lock and the currency pair lock. The cycle
// lock fails fast; pair locks wait for the deal in flight.
func newLockers(client *redis.Client, ttl time.Duration, logger zerolog.Logger) (cycle, pair usecase.Locker) {
	if client == nil {
		local := usecase.NewKeyedMutex()
		return local, local
	}
	return redisRepo.NewLocker(client, ttl, logger),
		redisRepo.NewLocker(client, time.Minute, logger, redisRepo.WithTries(pairLockTries))
}

// NewEventPublisher relays outbox events to the Redis stream, or to the log
// when Redis is disabled.
func NewEventPublisher(cfg *config.Config, outbox *postgresRepo.OutboxRepository, client *redis.Client, m *metrics.Metrics, logger zerolog.Logger) *eventpublisher.EventPublisher {
	var publisher eventpublisher.Publisher = eventpublisher.NewLogPublisher(logger)
	if client != nil {
		publisher = redisRepo.NewStreamPublisher(client, cfg.OutboxStream, cfg.OutboxStreamMaxLen)
	}
	return eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outbox,
		Publisher:  publisher,
		Cleaner:    outbox,
		Metrics:    m,
		Logger:     logger,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})
}
