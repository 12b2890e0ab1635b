package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const glMovementLabel = "gl_movement"

// GLMovementJob projects every verified transaction line of the business date
// into the transaction GL movement stream (job 4). Lines already projected
// are left untouched.
type GLMovementJob struct {
	uow          *UnitOfWork
	transactions TransactionRepository
	movements    GLMovementRepository
	accounts     *AccountLookup
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	settings     Settings
}

// NewGLMovementJob creates a new GLMovementJob.
func NewGLMovementJob(
	uow *UnitOfWork,
	transactions TransactionRepository,
	movements GLMovementRepository,
	accounts *AccountLookup,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *GLMovementJob {
	return &GLMovementJob{
		uow:          uow,
		transactions: transactions,
		movements:    movements,
		accounts:     accounts,
		settings:     settings,
		metrics:      m,
		logger:       logger.With().Str("job", glMovementLabel).Logger(),
	}
}

// Number implements Job.
func (j *GLMovementJob) Number() int { return domain.JobGLMovement }

// Run implements Job.
func (j *GLMovementJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	lines, err := j.transactions.ListVerifiedByDate(ctx, date)
	if err != nil {
		return JobReport{}, fmt.Errorf("list verified transactions: %w", err)
	}

	byID := make(map[string]*domain.Transaction, len(lines))
	keys := make([]string, 0, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
		keys = append(keys, l.ID)
	}

	result, err := runBatch(ctx, j.settings.workers(), keys, func(ctx context.Context, id string) error {
		err := j.project(ctx, byID[id])
		j.metrics.EntityResult(glMovementLabel, err == nil)
		return err
	})
	if err != nil {
		return JobReport{}, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("transaction", f.Key).Msg("gl movement failed")
	}

	report := JobReport{
		Processed: result.Succeeded,
		Failed:    len(result.Failures),
		Message:   fmt.Sprintf("%d transaction lines projected, %d failed", result.Succeeded, len(result.Failures)),
	}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d transaction lines failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}
	return report, nil
}

func (j *GLMovementJob) project(ctx context.Context, line *domain.Transaction) error {
	movement := domain.MovementFromTransaction(line)
	if movement.GLNum == "" {
		acc, err := j.accounts.Info(ctx, line.AccountNo)
		if err != nil {
			return fmt.Errorf("resolve gl for %s: %w", line.AccountNo, err)
		}
		movement.GLNum = acc.GLNum
	}

	return j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		_, err := j.movements.Create(ctx, tx, movement)
		return err
	})
}
