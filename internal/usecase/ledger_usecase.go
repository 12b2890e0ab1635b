package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	glBalances GLBalanceRepository
	clock      BusinessClock
	metrics    *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(glBalances GLBalanceRepository, clock BusinessClock, m *metrics.Metrics) *LedgerUseCase {
	return &LedgerUseCase{
		glBalances: glBalances,
		clock:      clock,
		metrics:    m,
	}
}

// BooksCheck is the result of a books balance check.
type BooksCheck struct {
	Date      time.Time
	Imbalance decimal.Decimal
	Balanced  bool
}

// CheckBooks sums the latest closing balance of every GL as of date. The
// books balance when the sum is zero. A zero date checks the business date.
func (uc *LedgerUseCase) CheckBooks(ctx context.Context, date time.Time) (*BooksCheck, error) {
	if date.IsZero() {
		today, err := uc.clock.Today(ctx)
		if err != nil {
			return nil, fmt.Errorf("read business date: %w", err)
		}
		date = today
	}
	date = domain.Day(date)

	sum, err := uc.glBalances.SumLatestClosing(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("sum gl closing balances: %w", err)
	}

	imbalance, _ := sum.Float64()
	uc.metrics.SetBooksImbalance(imbalance)

	return &BooksCheck{Date: date, Imbalance: sum, Balanced: sum.IsZero()}, nil
}
