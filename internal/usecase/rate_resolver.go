package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
)

// RateResolver picks the interest rate and exchange rate for an account.
type RateResolver struct {
	rates    RateRepository
	settings Settings
}

// NewRateResolver creates a new RateResolver.
func NewRateResolver(rates RateRepository, settings Settings) *RateResolver {
	return &RateResolver{rates: rates, settings: settings}
}

// InterestRate returns the effective annual rate on date. Liability deals use
// their fixed contract rate; everything else uses the latest rate of the
// product rate code plus the account increment. A missing rate yields zero.
func (r *RateResolver) InterestRate(ctx context.Context, acc *domain.AccountInfo, date time.Time) (decimal.Decimal, error) {
	if acc.IsLiability() && domain.Classify(acc.GLNum, r.settings.DealGLPrefixes) == domain.AccountClassDeal {
		return acc.Interest.FixedRate, nil
	}

	if acc.Interest.RateCode == "" {
		return decimal.Zero, nil
	}

	base, err := r.rates.LatestInterestRate(ctx, acc.Interest.RateCode, date)
	if errors.Is(err, domain.ErrRateNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("interest rate %s: %w", acc.Interest.RateCode, err)
	}

	return base.Add(acc.Interest.Increment), nil
}

// ExchangeRate returns 1 for local currency and the mid rate otherwise.
func (r *RateResolver) ExchangeRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	if currency == "" || currency == r.settings.LocalCurrency {
		return decimal.NewFromInt(1), nil
	}

	rate, err := r.rates.MidRate(ctx, currency, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("mid rate %s: %w", currency, err)
	}
	return rate, nil
}
