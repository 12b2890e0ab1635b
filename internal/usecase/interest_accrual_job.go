package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const interestAccrualLabel = "interest_accrual"

// InterestAccrualJob writes paired daily accrual legs for every
// interest-bearing account and copies the day's value-date interest into
// accrual legs (job 2).
type InterestAccrualJob struct {
	uow       *UnitOfWork
	master    AccountMasterRepository
	balances  AccountBalanceRepository
	accruals  InterestAccrualRepository
	valueDate ValueDateInterestRepository
	accounts  *AccountLookup
	rates     *RateResolver
	resolver  *BalanceResolver
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	settings  Settings
}

// NewInterestAccrualJob creates a new InterestAccrualJob.
func NewInterestAccrualJob(
	uow *UnitOfWork,
	master AccountMasterRepository,
	balances AccountBalanceRepository,
	accruals InterestAccrualRepository,
	valueDate ValueDateInterestRepository,
	accounts *AccountLookup,
	rates *RateResolver,
	resolver *BalanceResolver,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *InterestAccrualJob {
	return &InterestAccrualJob{
		uow:       uow,
		master:    master,
		balances:  balances,
		accruals:  accruals,
		valueDate: valueDate,
		accounts:  accounts,
		rates:     rates,
		resolver:  resolver,
		settings:  settings,
		metrics:   m,
		logger:    logger.With().Str("job", interestAccrualLabel).Logger(),
	}
}

// Number implements Job.
func (j *InterestAccrualJob) Number() int { return domain.JobInterestAccrual }

// Run implements Job.
func (j *InterestAccrualJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	accounts, err := j.master.ListInterestBearing(ctx)
	if err != nil {
		return JobReport{}, fmt.Errorf("list interest bearing accounts: %w", err)
	}

	// sequence numbers follow account number order so ids are reproducible
	sort.Slice(accounts, func(a, b int) bool { return accounts[a].AccountNo < accounts[b].AccountNo })

	seqByAccount := make(map[string]int, len(accounts))
	infoByAccount := make(map[string]*domain.AccountInfo, len(accounts))
	keys := make([]string, 0, len(accounts))
	for i, acc := range accounts {
		seqByAccount[acc.AccountNo] = i + 1
		infoByAccount[acc.AccountNo] = acc
		keys = append(keys, acc.AccountNo)
	}

	var accrued atomic.Int64
	result, err := runBatch(ctx, j.settings.workers(), keys, func(ctx context.Context, accountNo string) error {
		ok, err := j.AccrueAccount(ctx, infoByAccount[accountNo], seqByAccount[accountNo], date)
		j.metrics.EntityResult(interestAccrualLabel, err == nil)
		if ok {
			accrued.Add(1)
		}
		return err
	})
	if err != nil {
		return JobReport{}, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("account", f.Key).Msg("interest accrual failed")
	}

	report := JobReport{Processed: int(accrued.Load()), Failed: len(result.Failures)}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d accounts failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}

	copied, failed, err := j.copyValueDateInterest(ctx, date)
	if err != nil {
		return report, err
	}
	report.Processed += copied
	report.Failed += failed

	report.Message = fmt.Sprintf("%d accounts accrued, %d value date records copied, %d failed", accrued.Load(), copied, report.Failed)
	return report, nil
}

// AccrueAccount writes the two legs of one account's daily accrual. It
// reports false when the account was skipped.
func (j *InterestAccrualJob) AccrueAccount(ctx context.Context, acc *domain.AccountInfo, seq int, date time.Time) (bool, error) {
	if acc == nil || !acc.Interest.Bearing || !acc.Active {
		return false, nil
	}
	if !acc.IsLiability() && !acc.IsAsset() {
		return false, nil
	}
	if acc.Interest.ReceivableExpenditureGL == "" || acc.Interest.PayableIncomeGL == "" {
		return false, fmt.Errorf("%w: product %s", domain.ErrMissingGLConfig, acc.ProductCode)
	}

	balance, err := j.resolver.Closing(ctx, j.balances, acc.AccountNo, date)
	if err != nil {
		return false, fmt.Errorf("closing balance: %w", err)
	}

	rate, err := j.rates.InterestRate(ctx, acc, date)
	if err != nil {
		return false, err
	}
	if rate.IsZero() || balance.IsZero() {
		return false, nil
	}

	interest := domain.DailyInterest(balance, rate)
	if interest.IsZero() {
		return false, nil
	}

	exRate, err := j.rates.ExchangeRate(ctx, acc.Currency, date)
	if err != nil {
		return false, err
	}
	lcy := interest.Mul(exRate).Round(2)

	debit := j.leg(acc, date, domain.AccrualPrefixDaily, seq, 1, domain.Debit, acc.Interest.ReceivableExpenditureGL, interest, exRate, lcy)
	debit.Rate = rate
	debit.BalanceSheetLeg = acc.IsAsset()

	credit := j.leg(acc, date, domain.AccrualPrefixDaily, seq, 2, domain.Credit, acc.Interest.PayableIncomeGL, interest, exRate, lcy)
	credit.Rate = rate
	credit.BalanceSheetLeg = acc.IsLiability()

	err = j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		if err := j.accruals.Upsert(ctx, tx, debit); err != nil {
			return err
		}
		return j.accruals.Upsert(ctx, tx, credit)
	})
	if err != nil {
		return false, fmt.Errorf("save accrual: %w", err)
	}

	return true, nil
}

// copyValueDateInterest turns each value-date interest record of the day
// into a balance-sheet leg on the accrual GL and a P&L leg.
func (j *InterestAccrualJob) copyValueDateInterest(ctx context.Context, date time.Time) (int, int, error) {
	records, err := j.valueDate.ListByTranDate(ctx, date)
	if err != nil {
		return 0, 0, fmt.Errorf("list value date interest: %w", err)
	}
	sort.Slice(records, func(a, b int) bool { return records[a].ID < records[b].ID })

	copied, failed := 0, 0
	for i, rec := range records {
		if err := j.copyRecord(ctx, rec, i+1, date); err != nil {
			j.logger.Error().Err(err).Str("record", rec.ID).Msg("value date interest copy failed")
			failed++
			continue
		}
		copied++
	}

	return copied, failed, nil
}

func (j *InterestAccrualJob) copyRecord(ctx context.Context, rec *domain.ValueDateInterest, seq int, date time.Time) error {
	acc, err := j.accounts.Info(ctx, rec.AccountNo)
	if err != nil {
		return err
	}

	bsSide, plSide, ok := domain.ValueDateLegs(acc.GLRoot(), rec.OriginalDrCr)
	if !ok {
		return fmt.Errorf("%w: gl %s", domain.ErrInvalidGLNumber, acc.GLNum)
	}
	if acc.AccrualGL() == "" || acc.ProfitLossGL() == "" {
		return fmt.Errorf("%w: product %s", domain.ErrMissingGLConfig, acc.ProductCode)
	}

	bs := j.leg(acc, date, domain.AccrualPrefixValueDate, seq, 1, bsSide, acc.AccrualGL(), rec.Amount, rec.ExchangeRate, rec.LCYAmount)
	pl := j.leg(acc, date, domain.AccrualPrefixValueDate, seq, 2, plSide, acc.ProfitLossGL(), rec.Amount, rec.ExchangeRate, rec.LCYAmount)
	for _, l := range []*domain.InterestAccrual{bs, pl} {
		l.Kind = domain.AccrualKindValueDate
		l.SourceID = rec.ID
		l.OriginalDrCr = rec.OriginalDrCr
		l.Rate = rec.Rate
	}
	bs.BalanceSheetLeg = true

	return j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		if err := j.accruals.Upsert(ctx, tx, bs); err != nil {
			return err
		}
		return j.accruals.Upsert(ctx, tx, pl)
	})
}

func (j *InterestAccrualJob) leg(
	acc *domain.AccountInfo,
	date time.Time,
	prefix string,
	seq, leg int,
	side domain.DrCr,
	glNum string,
	amount, exRate, lcy decimal.Decimal,
) *domain.InterestAccrual {
	currency := acc.Currency
	if currency == "" {
		currency = j.settings.LocalCurrency
	}
	return &domain.InterestAccrual{
		ID:           domain.AccrualID(prefix, date, seq, leg),
		AccrualDate:  domain.Day(date),
		AccountNo:    acc.AccountNo,
		GLNum:        glNum,
		Currency:     currency,
		DrCr:         side,
		Kind:         domain.AccrualKindDaily,
		Status:       domain.AccrualStatusPending,
		FCYAmount:    amount,
		ExchangeRate: exRate,
		LCYAmount:    lcy,
	}
}
