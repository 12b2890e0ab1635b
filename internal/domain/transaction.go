package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DrCr is the debit/credit flag of a posting.
type DrCr string

const (
	Debit  DrCr = "D"
	Credit DrCr = "C"
)

// Flip returns the opposite side.
func (d DrCr) Flip() DrCr {
	if d == Debit {
		return Credit
	}
	return Debit
}

// Valid reports whether d is a known flag.
func (d DrCr) Valid() bool {
	return d == Debit || d == Credit
}

// TransactionStatus tracks a transaction line through capture and verification.
type TransactionStatus string

const (
	TransactionStatusEntry    TransactionStatus = "Entry"
	TransactionStatusPosted   TransactionStatus = "Posted"
	TransactionStatusFuture   TransactionStatus = "Future"
	TransactionStatusVerified TransactionStatus = "Verified"
)

// Transaction is one line of a multi-line ledger transaction. Lines sharing a
// BaseID balance in local currency. GL-only lines have an empty AccountNo.
type Transaction struct {
	TranDate     time.Time
	ValueDate    time.Time
	ID           string
	BaseID       string
	AccountNo    string
	GLNum        string
	Currency     string
	Narration    string
	DrCr         DrCr
	Status       TransactionStatus
	FCYAmount    decimal.Decimal
	ExchangeRate decimal.Decimal
	LCYAmount    decimal.Decimal
}

// IsVerified reports whether the line counts towards balances.
func (t *Transaction) IsVerified() bool {
	return t.Status == TransactionStatusVerified
}

// IsBackValued reports whether the line is economically effective before it was posted.
func (t *Transaction) IsBackValued() bool {
	return !t.ValueDate.IsZero() && t.ValueDate.Before(t.TranDate)
}

// AmountFor returns the amount basis used for an account denominated in
// accountCurrency: FCY amounts for foreign-currency accounts, LCY otherwise.
func (t *Transaction) AmountFor(accountCurrency, localCurrency string) decimal.Decimal {
	if accountCurrency != "" && accountCurrency != localCurrency {
		return t.FCYAmount
	}
	return t.LCYAmount
}

// ValidateBalanced checks that the lines of one base transaction balance in LCY.
func ValidateBalanced(lines []*Transaction) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range lines {
		if !l.DrCr.Valid() {
			return ErrInvalidDrCr
		}
		if l.DrCr == Debit {
			debits = debits.Add(l.LCYAmount)
		} else {
			credits = credits.Add(l.LCYAmount)
		}
	}
	if !debits.Equal(credits) {
		return ErrUnbalancedTransaction
	}
	return nil
}
