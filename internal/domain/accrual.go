package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DayCountBasis is the fixed day-count denominator (365 days x 100 percent).
var DayCountBasis = decimal.NewFromInt(36500)

// AccrualStatus tracks projection of an accrual entry into the GL.
type AccrualStatus string

const (
	AccrualStatusPending AccrualStatus = "Pending"
	AccrualStatusPosted  AccrualStatus = "Posted"
)

// AccrualKind separates daily accruals from value-date and capitalization entries.
type AccrualKind string

const (
	AccrualKindDaily          AccrualKind = "daily"
	AccrualKindValueDate      AccrualKind = "value_date"
	AccrualKindCapitalization AccrualKind = "capitalization"
)

// Identifier prefixes of accrual entries.
const (
	AccrualPrefixDaily          = "S"
	AccrualPrefixValueDate      = "V"
	AccrualPrefixCapitalization = "C"
)

// InterestAccrual is one leg of a paired debit/credit accrual.
type InterestAccrual struct {
	AccrualDate     time.Time
	ID              string
	AccountNo       string
	GLNum           string
	Currency        string
	SourceID        string
	DrCr            DrCr
	OriginalDrCr    DrCr
	Kind            AccrualKind
	Status          AccrualStatus
	FCYAmount       decimal.Decimal
	ExchangeRate    decimal.Decimal
	LCYAmount       decimal.Decimal
	Rate            decimal.Decimal
	BalanceSheetLeg bool
}

// AccrualID builds the deterministic identifier
// <prefix><yyyymmdd><9-digit sequence>-<leg>.
func AccrualID(prefix string, date time.Time, seq, leg int) string {
	return fmt.Sprintf("%s%s%09d-%d", prefix, date.Format("20060102"), seq, leg)
}

// DailyInterest computes |balance| x rate / 36500 rounded to 2 decimals.
func DailyInterest(balance, rate decimal.Decimal) decimal.Decimal {
	return balance.Abs().Mul(rate).Div(DayCountBasis).Round(2)
}

// GapInterest computes |principal| x rate x days / 36500 rounded to 2 decimals.
func GapInterest(principal, rate decimal.Decimal, days int) decimal.Decimal {
	return principal.Abs().Mul(rate).Mul(decimal.NewFromInt(int64(days))).Div(DayCountBasis).Round(2)
}

// ValueDateInterest is interest owed for the gap between a transaction's value
// date and its posting date.
type ValueDateInterest struct {
	TranDate      time.Time
	ValueDate     time.Time
	ID            string
	TransactionID string
	AccountNo     string
	GLNum         string
	Currency      string
	OriginalDrCr  DrCr
	Rate          decimal.Decimal
	Principal     decimal.Decimal
	Amount        decimal.Decimal
	ExchangeRate  decimal.Decimal
	LCYAmount     decimal.Decimal
	GapDays       int
}

// ValueDateInterestID derives the record id from the transaction line id.
func ValueDateInterestID(transactionID string) string {
	return "VDI-" + transactionID
}

// ValueDateImpactSign is the single sign table for value-date interest.
// Liability accounts: deposit (credit) adds, withdrawal (debit) subtracts.
// Asset accounts: advance (debit) subtracts, repayment (credit) adds.
// It returns 0 for other GL categories.
func ValueDateImpactSign(glRoot byte, original DrCr) int {
	switch glRoot {
	case GLRootLiability:
		if original == Credit {
			return 1
		}
		return -1
	case GLRootAsset:
		if original == Debit {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// ValueDateLegs returns the direction of the balance-sheet leg and the profit
// and loss leg for a value-date interest record. A positive impact credits the
// balance-sheet accrual GL.
func ValueDateLegs(glRoot byte, original DrCr) (balanceSheet, profitLoss DrCr, ok bool) {
	switch ValueDateImpactSign(glRoot, original) {
	case 1:
		return Credit, Debit, true
	case -1:
		return Debit, Credit, true
	default:
		return "", "", false
	}
}
