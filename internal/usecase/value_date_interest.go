package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
)

// ValueDateInterestProcessor computes gap-period interest for back-valued
// transactions posted on the business date.
type ValueDateInterestProcessor struct {
	uow          *UnitOfWork
	transactions TransactionRepository
	records      ValueDateInterestRepository
	accounts     *AccountLookup
	rates        *RateResolver
	logger       zerolog.Logger
	settings     Settings
}

// NewValueDateInterestProcessor creates a new ValueDateInterestProcessor.
func NewValueDateInterestProcessor(
	uow *UnitOfWork,
	transactions TransactionRepository,
	records ValueDateInterestRepository,
	accounts *AccountLookup,
	rates *RateResolver,
	settings Settings,
	logger zerolog.Logger,
) *ValueDateInterestProcessor {
	return &ValueDateInterestProcessor{
		uow:          uow,
		transactions: transactions,
		records:      records,
		accounts:     accounts,
		rates:        rates,
		settings:     settings,
		logger:       logger,
	}
}

// Process writes one record per eligible back-valued line and returns how
// many were written. A failing line is logged and skipped.
func (p *ValueDateInterestProcessor) Process(ctx context.Context, date time.Time) (int, error) {
	lines, err := p.transactions.ListBackValued(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("list back-valued transactions: %w", err)
	}

	created := 0
	for _, line := range lines {
		record, err := p.build(ctx, line, date)
		if err != nil {
			p.logger.Warn().Err(err).Str("transaction", line.ID).Msg("value date interest skipped")
			continue
		}
		if record == nil {
			continue
		}

		if err := p.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
			return p.records.Upsert(ctx, tx, record)
		}); err != nil {
			p.logger.Warn().Err(err).Str("transaction", line.ID).Msg("value date interest not saved")
			continue
		}
		created++
	}

	return created, nil
}

func (p *ValueDateInterestProcessor) build(ctx context.Context, line *domain.Transaction, date time.Time) (*domain.ValueDateInterest, error) {
	if !line.IsVerified() || !line.IsBackValued() || line.AccountNo == "" {
		return nil, nil
	}

	acc, err := p.accounts.Info(ctx, line.AccountNo)
	if err != nil {
		return nil, err
	}
	if !acc.Interest.Bearing {
		return nil, nil
	}
	if domain.ValueDateImpactSign(acc.GLRoot(), line.DrCr) == 0 {
		return nil, nil
	}

	rate, err := p.rates.InterestRate(ctx, acc, date)
	if err != nil {
		return nil, err
	}
	if rate.IsZero() {
		return nil, nil
	}

	days := domain.DaysBetween(line.ValueDate, line.TranDate)
	principal := line.AmountFor(acc.Currency, p.settings.LocalCurrency)
	amount := domain.GapInterest(principal, rate, days)
	if amount.IsZero() {
		return nil, nil
	}

	exRate, err := p.rates.ExchangeRate(ctx, acc.Currency, date)
	if err != nil {
		return nil, err
	}

	return &domain.ValueDateInterest{
		ID:            domain.ValueDateInterestID(line.ID),
		TransactionID: line.ID,
		AccountNo:     acc.AccountNo,
		GLNum:         acc.GLNum,
		Currency:      acc.Currency,
		TranDate:      domain.Day(line.TranDate),
		ValueDate:     domain.Day(line.ValueDate),
		OriginalDrCr:  line.DrCr,
		Rate:          rate,
		Principal:     principal.Abs(),
		Amount:        amount,
		ExchangeRate:  exRate,
		LCYAmount:     amount.Mul(exRate).Round(2),
		GapDays:       days,
	}, nil
}
