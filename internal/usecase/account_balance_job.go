package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const accountBalanceLabel = "account_balance"

// AccountBalanceJob rolls every account with activity on the business date
// into its daily balance snapshot (job 1).
type AccountBalanceJob struct {
	uow          *UnitOfWork
	transactions TransactionRepository
	balances     AccountBalanceRepository
	accounts     *AccountLookup
	resolver     *BalanceResolver
	valueDate    *ValueDateInterestProcessor
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	settings     Settings
}

// NewAccountBalanceJob creates a new AccountBalanceJob. valueDate may be nil.
func NewAccountBalanceJob(
	uow *UnitOfWork,
	transactions TransactionRepository,
	balances AccountBalanceRepository,
	accounts *AccountLookup,
	resolver *BalanceResolver,
	valueDate *ValueDateInterestProcessor,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccountBalanceJob {
	return &AccountBalanceJob{
		uow:          uow,
		transactions: transactions,
		balances:     balances,
		accounts:     accounts,
		resolver:     resolver,
		valueDate:    valueDate,
		settings:     settings,
		metrics:      m,
		logger:       logger.With().Str("job", accountBalanceLabel).Logger(),
	}
}

// Number implements Job.
func (j *AccountBalanceJob) Number() int { return domain.JobAccountBalance }

// Run implements Job.
func (j *AccountBalanceJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	accountNos, err := j.transactions.ListAccountsWithActivity(ctx, date)
	if err != nil {
		return JobReport{}, fmt.Errorf("list accounts with activity: %w", err)
	}

	result, err := runBatch(ctx, j.settings.workers(), accountNos, func(ctx context.Context, accountNo string) error {
		err := j.UpdateAccount(ctx, accountNo, date)
		j.metrics.EntityResult(accountBalanceLabel, err == nil)
		return err
	})
	if err != nil {
		return JobReport{}, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("account", f.Key).Msg("account balance update failed")
	}

	report := JobReport{Processed: result.Succeeded, Failed: len(result.Failures)}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d accounts failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}

	if j.valueDate != nil {
		created, err := j.valueDate.Process(ctx, date)
		if err != nil {
			j.logger.Warn().Err(err).Msg("value date interest calculation failed")
		} else if created > 0 {
			j.logger.Info().Int("records", created).Msg("value date interest calculated")
		}
	}

	j.verify(ctx, date, accountNos)

	report.Message = fmt.Sprintf("%d accounts updated, %d failed", report.Processed, report.Failed)
	return report, nil
}

// UpdateAccount recomputes the snapshot of one account. On a re-run the
// stored opening balance is kept and the sums are recomputed from scratch.
// The snapshot is read and row-locked in the same unit of work that writes
// it back.
func (j *AccountBalanceJob) UpdateAccount(ctx context.Context, accountNo string, date time.Time) error {
	return j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		snapshot, err := j.balances.GetForUpdate(ctx, tx, accountNo, date)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSnapshotNotFound):
			snapshot, err = j.newSnapshot(ctx, accountNo, date)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("load snapshot: %w", err)
		}

		lines, err := j.transactions.ListByAccountAndDate(ctx, accountNo, date)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}

		debits, credits := decimal.Zero, decimal.Zero
		for _, line := range lines {
			if !line.IsVerified() {
				continue
			}
			amount := line.AmountFor(snapshot.Currency, j.settings.LocalCurrency)
			if line.DrCr == domain.Debit {
				debits = debits.Add(amount)
			} else {
				credits = credits.Add(amount)
			}
		}

		snapshot.DebitSum = debits
		snapshot.CreditSum = credits
		snapshot.UpdatedAt = time.Now().UTC()
		snapshot.Close()

		return j.balances.Upsert(ctx, tx, snapshot)
	})
}

func (j *AccountBalanceJob) newSnapshot(ctx context.Context, accountNo string, date time.Time) (*domain.BalanceSnapshot, error) {
	opening, err := j.resolver.Opening(ctx, j.balances, accountNo, date)
	if err != nil {
		return nil, fmt.Errorf("resolve opening: %w", err)
	}
	currency, err := j.accounts.Currency(ctx, accountNo)
	if err != nil {
		return nil, fmt.Errorf("resolve currency: %w", err)
	}
	return &domain.BalanceSnapshot{
		Date:     domain.Day(date),
		EntityID: accountNo,
		Currency: currency,
		Opening:  opening.Amount,
	}, nil
}

// verify reports accounts that had activity but still lack a snapshot.
func (j *AccountBalanceJob) verify(ctx context.Context, date time.Time, accountNos []string) {
	stored, err := j.balances.ListEntitiesByDate(ctx, date)
	if err != nil {
		j.logger.Warn().Err(err).Msg("post-run verification skipped")
		return
	}

	have := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		have[id] = struct{}{}
	}

	missing := 0
	for _, id := range accountNos {
		if _, ok := have[id]; !ok {
			missing++
		}
	}
	if missing > 0 {
		j.logger.Warn().Int("missing", missing).Msg("accounts with activity have no balance snapshot")
	}
}
