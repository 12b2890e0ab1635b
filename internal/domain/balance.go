package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot is one day's balance of an account, GL or accrual ledger.
// The key is (EntityID, Date). The closing balance of day d is the candidate
// opening balance of day d+1.
type BalanceSnapshot struct {
	Date             time.Time
	UpdatedAt        time.Time
	EntityID         string
	GLNum            string
	Currency         string
	Opening          decimal.Decimal
	DebitSum         decimal.Decimal
	CreditSum        decimal.Decimal
	Closing          decimal.Decimal
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.Decimal
	InterestAmount   decimal.Decimal
}

// Close computes closing = opening + credits - debits and mirrors it into the
// current and available balances.
func (s *BalanceSnapshot) Close() {
	s.Closing = s.Opening.Add(s.CreditSum).Sub(s.DebitSum)
	s.CurrentBalance = s.Closing
	s.AvailableBalance = s.Closing
}

// ResolutionTier identifies which rule produced an opening balance.
type ResolutionTier int

const (
	// TierPreviousDay uses the snapshot of date-1.
	TierPreviousDay ResolutionTier = iota + 1
	// TierLastAvailable uses the most recent earlier snapshot across a gap.
	TierLastAvailable
	// TierNewEntity means no snapshot exists; opening is zero.
	TierNewEntity
)

func (t ResolutionTier) String() string {
	switch t {
	case TierPreviousDay:
		return "previous_day"
	case TierLastAvailable:
		return "last_available"
	case TierNewEntity:
		return "new_entity"
	default:
		return "unknown"
	}
}

// OpeningBalance is the result of the opening balance fallback.
type OpeningBalance struct {
	SourceDate time.Time
	Amount     decimal.Decimal
	Tier       ResolutionTier
	GapDays    int
}
