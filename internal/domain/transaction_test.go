package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidateBalanced(t *testing.T) {
	line := func(side DrCr, lcy string) *Transaction {
		return &Transaction{DrCr: side, LCYAmount: decimal.RequireFromString(lcy)}
	}

	tests := []struct {
		name    string
		lines   []*Transaction
		wantErr error
	}{
		{"two legs", []*Transaction{line(Debit, "100"), line(Credit, "100")}, nil},
		{"split credit", []*Transaction{line(Debit, "100"), line(Credit, "60.5"), line(Credit, "39.5")}, nil},
		{"unbalanced", []*Transaction{line(Debit, "100"), line(Credit, "99.99")}, ErrUnbalancedTransaction},
		{"bad flag", []*Transaction{line("X", "100"), line(Credit, "100")}, ErrInvalidDrCr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateBalanced(tt.lines); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBalanced() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_AmountFor(t *testing.T) {
	tx := &Transaction{FCYAmount: decimal.NewFromInt(100), LCYAmount: decimal.NewFromInt(11000)}

	if got := tx.AmountFor("USD", "BDT"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("foreign account amount = %s, want 100", got)
	}
	if got := tx.AmountFor("BDT", "BDT"); !got.Equal(decimal.NewFromInt(11000)) {
		t.Errorf("local account amount = %s, want 11000", got)
	}
	if got := tx.AmountFor("", "BDT"); !got.Equal(decimal.NewFromInt(11000)) {
		t.Errorf("unknown currency amount = %s, want 11000", got)
	}
}

func TestTransaction_IsBackValued(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	if !(&Transaction{TranDate: day, ValueDate: day.AddDate(0, 0, -1)}).IsBackValued() {
		t.Error("earlier value date must be back valued")
	}
	if (&Transaction{TranDate: day, ValueDate: day}).IsBackValued() {
		t.Error("same-day value date is not back valued")
	}
	if (&Transaction{TranDate: day}).IsBackValued() {
		t.Error("missing value date is not back valued")
	}
}

func TestDrCr_Flip(t *testing.T) {
	if Debit.Flip() != Credit || Credit.Flip() != Debit {
		t.Error("Flip must swap sides")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 2, 20, 13, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 10 {
		t.Errorf("DaysBetween = %d, want 10 across leap february", got)
	}
}
