package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
)

// CapitalizationUseCase moves accrued interest into the account balance.
type CapitalizationUseCase struct {
	uow             *UnitOfWork
	accounts        *AccountLookup
	accrualBalances AccrualBalanceRepository
	accruals        InterestAccrualRepository
	transactions    TransactionRepository
	rates           *RateResolver
	resolver        *BalanceResolver
	clock           BusinessClock
	logger          zerolog.Logger
}

// NewCapitalizationUseCase creates a new CapitalizationUseCase.
func NewCapitalizationUseCase(
	uow *UnitOfWork,
	accounts *AccountLookup,
	accrualBalances AccrualBalanceRepository,
	accruals InterestAccrualRepository,
	transactions TransactionRepository,
	rates *RateResolver,
	resolver *BalanceResolver,
	clock BusinessClock,
	logger zerolog.Logger,
) *CapitalizationUseCase {
	return &CapitalizationUseCase{
		uow:             uow,
		accounts:        accounts,
		accrualBalances: accrualBalances,
		accruals:        accruals,
		transactions:    transactions,
		rates:           rates,
		resolver:        resolver,
		clock:           clock,
		logger:          logger,
	}
}

// CapitalizationResult describes a capitalization posting.
type CapitalizationResult struct {
	Date      time.Time
	AccountNo string
	Entry     *domain.InterestAccrual
	Lines     []*domain.Transaction
	Amount    decimal.Decimal
}

// Capitalize posts the accrued interest of accountNo on the business date:
// the accrual GL is cleared against the account and a matching
// capitalization entry is recorded in the accrual ledger. Nothing is posted
// when the accrued balance is zero.
func (uc *CapitalizationUseCase) Capitalize(ctx context.Context, accountNo string) (*CapitalizationResult, error) {
	date, err := uc.clock.Today(ctx)
	if err != nil {
		return nil, fmt.Errorf("read business date: %w", err)
	}

	acc, err := uc.accounts.Info(ctx, accountNo)
	if err != nil {
		return nil, err
	}
	if !acc.Interest.Bearing {
		return nil, domain.ErrNotInterestBearing
	}
	if !acc.IsLiability() && !acc.IsAsset() {
		return nil, fmt.Errorf("%w: gl %s", domain.ErrInvalidGLNumber, acc.GLNum)
	}
	if acc.AccrualGL() == "" {
		return nil, fmt.Errorf("%w: product %s", domain.ErrMissingGLConfig, acc.ProductCode)
	}

	accrued, err := uc.resolver.Closing(ctx, uc.accrualBalances, accountNo, date)
	if err != nil {
		return nil, fmt.Errorf("accrued balance: %w", err)
	}

	result := &CapitalizationResult{Date: date, AccountNo: accountNo, Amount: accrued.Abs()}
	if accrued.IsZero() {
		return result, nil
	}

	exRate, err := uc.rates.ExchangeRate(ctx, acc.Currency, date)
	if err != nil {
		return nil, err
	}
	amount := accrued.Abs()
	lcy := amount.Mul(exRate).Round(2)

	// liabilities clear a payable (debit) into the deposit (credit); assets
	// clear a receivable (credit) into the loan (debit)
	accrualSide := domain.Debit
	if acc.IsAsset() {
		accrualSide = domain.Credit
	}

	baseID := fmt.Sprintf("CAP%s%s", date.Format("20060102"), accountNo)
	currency := acc.Currency
	line := func(suffix, accNo, glNum string, side domain.DrCr) *domain.Transaction {
		return &domain.Transaction{
			ID:           baseID + "-" + suffix,
			BaseID:       baseID,
			TranDate:     date,
			ValueDate:    date,
			AccountNo:    accNo,
			GLNum:        glNum,
			Currency:     currency,
			DrCr:         side,
			Status:       domain.TransactionStatusVerified,
			FCYAmount:    amount,
			ExchangeRate: exRate,
			LCYAmount:    lcy,
			Narration:    "interest capitalization",
		}
	}
	result.Lines = []*domain.Transaction{
		line("1", "", acc.AccrualGL(), accrualSide),
		line("2", accountNo, acc.GLNum, accrualSide.Flip()),
	}

	result.Entry = &domain.InterestAccrual{
		ID:              fmt.Sprintf("%s%s-%s", domain.AccrualPrefixCapitalization, date.Format("20060102"), accountNo),
		AccrualDate:     date,
		AccountNo:       accountNo,
		GLNum:           acc.AccrualGL(),
		Currency:        currency,
		SourceID:        baseID,
		DrCr:            accrualSide,
		Kind:            domain.AccrualKindCapitalization,
		Status:          domain.AccrualStatusPosted,
		FCYAmount:       amount,
		ExchangeRate:    exRate,
		LCYAmount:       lcy,
		BalanceSheetLeg: true,
	}

	err = uc.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		for _, l := range result.Lines {
			if err := uc.transactions.Create(ctx, tx, l); err != nil {
				return err
			}
		}
		return uc.accruals.Upsert(ctx, tx, result.Entry)
	})
	if err != nil {
		return nil, fmt.Errorf("post capitalization: %w", err)
	}

	uc.logger.Info().Str("account", accountNo).Str("amount", amount.String()).Msg("interest capitalized")
	return result, nil
}
