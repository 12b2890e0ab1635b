package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const glBalanceLabel = "gl_balance"

// GLBalanceJob rolls both GL movement streams into daily GL balance snapshots
// and checks that the books balance (job 5).
type GLBalanceJob struct {
	uow       *UnitOfWork
	master    AccountMasterRepository
	movements GLMovementRepository
	balances  GLBalanceRepository
	resolver  *BalanceResolver
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	settings  Settings
}

// NewGLBalanceJob creates a new GLBalanceJob.
func NewGLBalanceJob(
	uow *UnitOfWork,
	master AccountMasterRepository,
	movements GLMovementRepository,
	balances GLBalanceRepository,
	resolver *BalanceResolver,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *GLBalanceJob {
	return &GLBalanceJob{
		uow:       uow,
		master:    master,
		movements: movements,
		balances:  balances,
		resolver:  resolver,
		settings:  settings,
		metrics:   m,
		logger:    logger.With().Str("job", glBalanceLabel).Logger(),
	}
}

// Number implements Job.
func (j *GLBalanceJob) Number() int { return domain.JobGLBalance }

// Run implements Job.
func (j *GLBalanceJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	glNums, err := j.collectGLs(ctx, date)
	if err != nil {
		return JobReport{}, err
	}

	result, err := j.RecomputeGLs(ctx, date, glNums)
	if err != nil {
		return JobReport{}, err
	}

	report := JobReport{Processed: result.Succeeded, Failed: len(result.Failures)}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d gls failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}

	if err := j.CheckBooks(ctx, date); err != nil {
		return report, err
	}

	report.Message = fmt.Sprintf("%d gls updated, %d failed", report.Processed, report.Failed)
	return report, nil
}

// collectGLs returns the union of product GLs and GLs that moved on date.
func (j *GLBalanceJob) collectGLs(ctx context.Context, date time.Time) ([]string, error) {
	set := make(map[string]struct{})

	productGLs, err := j.master.ListProductGLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list product gls: %w", err)
	}
	for _, gl := range productGLs {
		set[gl] = struct{}{}
	}

	for _, stream := range []domain.MovementStream{domain.StreamTransaction, domain.StreamAccrual} {
		gls, err := j.movements.ListGLNumsByDate(ctx, stream, date)
		if err != nil {
			return nil, fmt.Errorf("list %s gls: %w", stream, err)
		}
		for _, gl := range gls {
			set[gl] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for gl := range set {
		if gl != "" {
			out = append(out, gl)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RecomputeGLs rebuilds the snapshots of glNums on date, each in its own
// transaction. It is also used after revaluation postings.
func (j *GLBalanceJob) RecomputeGLs(ctx context.Context, date time.Time, glNums []string) (BatchResult, error) {
	result, err := runBatch(ctx, j.settings.workers(), glNums, func(ctx context.Context, glNum string) error {
		err := j.UpdateGL(ctx, glNum, date)
		j.metrics.EntityResult(glBalanceLabel, err == nil)
		return err
	})
	if err != nil {
		return result, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("gl", f.Key).Msg("gl balance update failed")
	}
	return result, nil
}

// UpdateGL writes the snapshot of one GL. A duplicate-key conflict removes
// the conflicting row and retries, up to MaxSnapshotWriteAttempts.
func (j *GLBalanceJob) UpdateGL(ctx context.Context, glNum string, date time.Time) error {
	tx, err := j.movements.Totals(ctx, domain.StreamTransaction, glNum, date)
	if err != nil {
		return fmt.Errorf("transaction totals: %w", err)
	}
	acc, err := j.movements.Totals(ctx, domain.StreamAccrual, glNum, date)
	if err != nil {
		return fmt.Errorf("accrual totals: %w", err)
	}
	totals := tx.Add(acc)

	opening, err := j.resolver.Opening(ctx, j.balances, glNum, date)
	if err != nil {
		return fmt.Errorf("resolve opening: %w", err)
	}

	snapshot := &domain.BalanceSnapshot{
		Date:      domain.Day(date),
		EntityID:  glNum,
		GLNum:     glNum,
		Currency:  j.settings.LocalCurrency,
		Opening:   opening.Amount,
		DebitSum:  totals.Debit,
		CreditSum: totals.Credit,
	}
	snapshot.Close()

	for attempt := 1; attempt <= MaxSnapshotWriteAttempts; attempt++ {
		snapshot.UpdatedAt = time.Now().UTC()

		err := j.write(ctx, snapshot)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return err
		}

		j.metrics.SnapshotRetry("gl")
		j.logger.Warn().Str("gl", glNum).Int("attempt", attempt).Msg("duplicate gl snapshot, removing and retrying")

		if err := j.balances.Delete(ctx, glNum, date); err != nil {
			return fmt.Errorf("remove duplicate snapshot: %w", err)
		}
	}

	return fmt.Errorf("gl %s: %w after %d attempts", glNum, domain.ErrDuplicateKey, MaxSnapshotWriteAttempts)
}

func (j *GLBalanceJob) write(ctx context.Context, snapshot *domain.BalanceSnapshot) error {
	return j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		_, err := j.balances.GetForUpdate(ctx, tx, snapshot.EntityID, snapshot.Date)
		switch {
		case err == nil:
			return j.balances.Update(ctx, tx, snapshot)
		case errors.Is(err, domain.ErrSnapshotNotFound):
			return j.balances.Create(ctx, tx, snapshot)
		default:
			return err
		}
	})
}

// CheckBooks verifies that the latest closing balances of all GLs sum to
// zero. With strict checking an imbalance fails the job.
func (j *GLBalanceJob) CheckBooks(ctx context.Context, date time.Time) error {
	total, err := j.balances.SumLatestClosing(ctx, date)
	if err != nil {
		return fmt.Errorf("sum gl balances: %w", err)
	}

	imbalance, _ := total.Float64()
	j.metrics.SetBooksImbalance(imbalance)

	if total.IsZero() {
		return nil
	}

	if j.settings.StrictBalanceCheck {
		return fmt.Errorf("%w: difference %s", domain.ErrBooksUnbalanced, total.String())
	}

	j.logger.Warn().Str("difference", total.String()).Msg("books are not balanced")
	return nil
}
