package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const accrualBalanceLabel = "accrual_balance"

// AccrualBalanceJob rolls each account's balance-sheet accrual legs into a
// daily accrual balance snapshot (job 6). Value-date legs are applied
// through the signed impact only, never through the debit and credit sums.
type AccrualBalanceJob struct {
	uow      *UnitOfWork
	accruals InterestAccrualRepository
	balances AccrualBalanceRepository
	accounts *AccountLookup
	resolver *BalanceResolver
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	settings Settings
}

// NewAccrualBalanceJob creates a new AccrualBalanceJob.
func NewAccrualBalanceJob(
	uow *UnitOfWork,
	accruals InterestAccrualRepository,
	balances AccrualBalanceRepository,
	accounts *AccountLookup,
	resolver *BalanceResolver,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccrualBalanceJob {
	return &AccrualBalanceJob{
		uow:      uow,
		accruals: accruals,
		balances: balances,
		accounts: accounts,
		resolver: resolver,
		settings: settings,
		metrics:  m,
		logger:   logger.With().Str("job", accrualBalanceLabel).Logger(),
	}
}

// Number implements Job.
func (j *AccrualBalanceJob) Number() int { return domain.JobAccrualBalance }

// Run implements Job.
func (j *AccrualBalanceJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	accountNos, err := j.accruals.ListAccountsWithActivity(ctx, date)
	if err != nil {
		return JobReport{}, fmt.Errorf("list accounts with accruals: %w", err)
	}

	result, err := runBatch(ctx, j.settings.workers(), accountNos, func(ctx context.Context, accountNo string) error {
		err := j.UpdateAccount(ctx, accountNo, date)
		j.metrics.EntityResult(accrualBalanceLabel, err == nil)
		return err
	})
	if err != nil {
		return JobReport{}, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("account", f.Key).Msg("accrual balance update failed")
	}

	report := JobReport{
		Processed: result.Succeeded,
		Failed:    len(result.Failures),
		Message:   fmt.Sprintf("%d accrual balances updated, %d failed", result.Succeeded, len(result.Failures)),
	}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d accounts failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}
	return report, nil
}

// UpdateAccount recomputes the accrual snapshot of one account.
func (j *AccrualBalanceJob) UpdateAccount(ctx context.Context, accountNo string, date time.Time) error {
	acc, err := j.accounts.Info(ctx, accountNo)
	if err != nil {
		return err
	}

	entries, err := j.accruals.ListByAccountAndDate(ctx, accountNo, date)
	if err != nil {
		return fmt.Errorf("list accruals: %w", err)
	}

	debits, credits, impact := decimal.Zero, decimal.Zero, decimal.Zero
	for _, e := range entries {
		if !e.BalanceSheetLeg {
			continue
		}
		if e.Kind == domain.AccrualKindValueDate {
			sign := domain.ValueDateImpactSign(acc.GLRoot(), e.OriginalDrCr)
			impact = impact.Add(e.FCYAmount.Mul(decimal.NewFromInt(int64(sign))))
			continue
		}
		if e.DrCr == domain.Debit {
			debits = debits.Add(e.FCYAmount)
		} else {
			credits = credits.Add(e.FCYAmount)
		}
	}

	opening, err := j.resolver.Opening(ctx, j.balances, accountNo, date)
	if err != nil {
		return fmt.Errorf("resolve opening: %w", err)
	}

	currency := acc.Currency
	if currency == "" {
		currency = j.settings.LocalCurrency
	}

	snapshot := &domain.BalanceSnapshot{
		Date:           domain.Day(date),
		UpdatedAt:      time.Now().UTC(),
		EntityID:       accountNo,
		GLNum:          acc.AccrualGL(),
		Currency:       currency,
		Opening:        opening.Amount,
		DebitSum:       debits,
		CreditSum:      credits,
		InterestAmount: credits.Sub(debits).Add(impact),
	}
	snapshot.Close()
	snapshot.Closing = snapshot.Closing.Add(impact)
	snapshot.CurrentBalance = snapshot.Closing
	snapshot.AvailableBalance = snapshot.Closing

	return j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		return j.balances.Upsert(ctx, tx, snapshot)
	})
}
