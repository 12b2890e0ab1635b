package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const accrualGLMovementLabel = "accrual_gl_movement"

// AccrualGLMovementJob projects pending accrual legs into the accrual GL
// movement stream and marks them posted (job 3).
type AccrualGLMovementJob struct {
	uow       *UnitOfWork
	accruals  InterestAccrualRepository
	movements GLMovementRepository
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	settings  Settings
}

// NewAccrualGLMovementJob creates a new AccrualGLMovementJob.
func NewAccrualGLMovementJob(
	uow *UnitOfWork,
	accruals InterestAccrualRepository,
	movements GLMovementRepository,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccrualGLMovementJob {
	return &AccrualGLMovementJob{
		uow:       uow,
		accruals:  accruals,
		movements: movements,
		settings:  settings,
		metrics:   m,
		logger:    logger.With().Str("job", accrualGLMovementLabel).Logger(),
	}
}

// Number implements Job.
func (j *AccrualGLMovementJob) Number() int { return domain.JobAccrualGLMovement }

// Run implements Job.
func (j *AccrualGLMovementJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	pending, err := j.accruals.ListPendingByDate(ctx, date)
	if err != nil {
		return JobReport{}, fmt.Errorf("list pending accruals: %w", err)
	}

	byID := make(map[string]*domain.InterestAccrual, len(pending))
	keys := make([]string, 0, len(pending))
	for _, a := range pending {
		byID[a.ID] = a
		keys = append(keys, a.ID)
	}

	result, err := runBatch(ctx, j.settings.workers(), keys, func(ctx context.Context, id string) error {
		err := j.post(ctx, byID[id])
		j.metrics.EntityResult(accrualGLMovementLabel, err == nil)
		return err
	})
	if err != nil {
		return JobReport{}, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("accrual", f.Key).Msg("accrual gl movement failed")
	}

	report := JobReport{
		Processed: result.Succeeded,
		Failed:    len(result.Failures),
		Message:   fmt.Sprintf("%d accrual entries posted, %d failed", result.Succeeded, len(result.Failures)),
	}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d accrual entries failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}
	return report, nil
}

func (j *AccrualGLMovementJob) post(ctx context.Context, accrual *domain.InterestAccrual) error {
	return j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		if _, err := j.movements.Create(ctx, tx, domain.MovementFromAccrual(accrual)); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}
		return j.accruals.MarkPosted(ctx, tx, accrual.ID)
	})
}
