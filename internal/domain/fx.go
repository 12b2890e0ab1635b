package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateScale is the number of decimals kept on derived exchange rates.
const RateScale = 6

// CurrencyPair identifies a WAE position, e.g. USD/BDT.
type CurrencyPair struct {
	Foreign string
	Local   string
}

func (p CurrencyPair) String() string {
	return p.Foreign + "/" + p.Local
}

// WAEState is the running weighted-average cost of a foreign-currency position.
// It changes only on buys.
type WAEState struct {
	UpdatedAt  time.Time
	Pair       CurrencyPair
	FCYBalance decimal.Decimal
	LCYBalance decimal.Decimal
}

// Rate returns LCY/FCY, or zero for an empty position.
func (s *WAEState) Rate() decimal.Decimal {
	if s == nil || s.FCYBalance.IsZero() {
		return decimal.Zero
	}
	return s.LCYBalance.DivRound(s.FCYBalance, RateScale)
}

// ApplyBuy adds an inbound flow to the position.
func (s *WAEState) ApplyBuy(fcy, lcy decimal.Decimal) {
	s.FCYBalance = s.FCYBalance.Add(fcy)
	s.LCYBalance = s.LCYBalance.Add(lcy)
}

// DealSide is the direction of an FX deal from the customer's FCY account.
type DealSide string

const (
	// DealBuy credits the customer's FCY account.
	DealBuy DealSide = "BUY"
	// DealSell debits the customer's FCY account.
	DealSell DealSide = "SELL"
)

// FXDeal is a posted transaction mixing local and foreign currency legs.
type FXDeal struct {
	DealDate  time.Time
	BaseID    string
	AccountNo string
	Currency  string
	Side      DealSide
	Status    TransactionStatus
	FCYAmount decimal.Decimal
	DealRate  decimal.Decimal
}

// Validate checks the deal before settlement.
func (d *FXDeal) Validate(lcy string) error {
	if d.BaseID == "" {
		return ErrMissingTransactionID
	}
	if d.Currency == "" || d.Currency == lcy {
		return ErrInvalidCurrency
	}
	if d.Side != DealBuy && d.Side != DealSell {
		return ErrInvalidDealSide
	}
	if d.FCYAmount.LessThanOrEqual(decimal.Zero) || d.DealRate.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

// SettlementGainLoss computes fcy x (deal - wae) in LCY, rounded to 2 decimals.
func SettlementGainLoss(fcy, dealRate, waeRate decimal.Decimal) decimal.Decimal {
	return fcy.Mul(dealRate.Sub(waeRate)).Round(2)
}

// SettlementRecord is the audit trail of a realized gain or loss on a sell.
type SettlementRecord struct {
	SettledAt  time.Time
	DealDate   time.Time
	ID         string
	BaseID     string
	AccountNo  string
	Currency   string
	GainLossGL string
	FCYAmount  decimal.Decimal
	DealRate   decimal.Decimal
	WAERate    decimal.Decimal
	GainLoss   decimal.Decimal
}

// RevaluationStatus tracks whether a revaluation has been reversed at BOD.
type RevaluationStatus string

const (
	RevaluationPosted   RevaluationStatus = "Posted"
	RevaluationReversed RevaluationStatus = "Reversed"
)

// RevaluationRecord is one day's mark-to-market of a foreign-currency position.
// Today's MTM becomes tomorrow's booked amount.
type RevaluationRecord struct {
	RevalDate  time.Time
	CreatedAt  time.Time
	ID         string
	EntityID   string
	GLNum      string
	Currency   string
	Status     RevaluationStatus
	FCYBalance decimal.Decimal
	MidRate    decimal.Decimal
	BookedLCY  decimal.Decimal
	MTMLCY     decimal.Decimal
	Difference decimal.Decimal
	Legs       []*GLMovement
}

// MarkToMarket values a signed FCY balance at the mid rate, rounded to 2 decimals.
func MarkToMarket(fcyBalance, midRate decimal.Decimal) decimal.Decimal {
	return fcyBalance.Mul(midRate).Round(2)
}

// RevaluationSides returns which side the position GL and the unrealized
// GL take for a difference. Balances are signed credit-minus-debit, so an
// asset carries a negative balance and its natural value is the negation.
// Asset and liability treatments mirror each other.
func RevaluationSides(glRoot byte, diff decimal.Decimal) (position DrCr, gain bool) {
	natural := diff
	if glRoot == GLRootAsset {
		natural = diff.Neg()
		// asset worth more in LCY: debit the position, credit unrealized gain
		if natural.IsPositive() {
			return Debit, true
		}
		return Credit, false
	}
	// liability owes more in LCY: credit the position, debit unrealized loss
	if natural.IsPositive() {
		return Credit, false
	}
	return Debit, true
}
