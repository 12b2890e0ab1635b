package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementStream identifies the source of a GL movement.
type MovementStream string

const (
	StreamTransaction MovementStream = "transaction"
	StreamAccrual     MovementStream = "accrual"
)

// GLMovement is a single GL posting in local currency.
type GLMovement struct {
	TranDate     time.Time
	ValueDate    time.Time
	ID           string
	SourceID     string
	GLNum        string
	Currency     string
	Narration    string
	Reference    string
	Stream       MovementStream
	DrCr         DrCr
	FCYAmount    decimal.Decimal
	ExchangeRate decimal.Decimal
	LCYAmount    decimal.Decimal
}

// MovementFromTransaction projects a verified transaction line.
func MovementFromTransaction(t *Transaction) *GLMovement {
	return &GLMovement{
		ID:           t.ID,
		SourceID:     t.BaseID,
		Stream:       StreamTransaction,
		GLNum:        t.GLNum,
		Currency:     t.Currency,
		DrCr:         t.DrCr,
		FCYAmount:    t.FCYAmount,
		ExchangeRate: t.ExchangeRate,
		LCYAmount:    t.LCYAmount,
		TranDate:     t.TranDate,
		ValueDate:    t.ValueDate,
		Narration:    t.Narration,
	}
}

// MovementFromAccrual projects an interest accrual entry.
func MovementFromAccrual(a *InterestAccrual) *GLMovement {
	return &GLMovement{
		ID:           a.ID,
		SourceID:     a.AccountNo,
		Stream:       StreamAccrual,
		GLNum:        a.GLNum,
		Currency:     a.Currency,
		DrCr:         a.DrCr,
		FCYAmount:    a.FCYAmount,
		ExchangeRate: a.ExchangeRate,
		LCYAmount:    a.LCYAmount,
		TranDate:     a.AccrualDate,
		ValueDate:    a.AccrualDate,
		Narration:    string(a.Kind) + " interest accrual",
	}
}

// MovementTotals holds debit and credit sums of one GL on one date.
type MovementTotals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Add returns the element-wise sum.
func (m MovementTotals) Add(o MovementTotals) MovementTotals {
	return MovementTotals{Debit: m.Debit.Add(o.Debit), Credit: m.Credit.Add(o.Credit)}
}
