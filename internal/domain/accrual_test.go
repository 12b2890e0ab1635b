package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccrualID(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		prefix string
		seq    int
		leg    int
		want   string
	}{
		{AccrualPrefixDaily, 1, 1, "S20250310000000001-1"},
		{AccrualPrefixDaily, 42, 2, "S20250310000000042-2"},
		{AccrualPrefixValueDate, 123456789, 1, "V20250310123456789-1"},
	}

	for _, tt := range tests {
		if got := AccrualID(tt.prefix, date, tt.seq, tt.leg); got != tt.want {
			t.Errorf("AccrualID(%s, %d, %d) = %s, want %s", tt.prefix, tt.seq, tt.leg, got, tt.want)
		}
	}
}

func TestDailyInterest(t *testing.T) {
	tests := []struct {
		balance string
		rate    string
		want    string
	}{
		{"36500", "5", "5"},
		{"-36500", "5", "5"},
		{"100000", "7.3", "20"},
		{"1000", "4.5", "0.12"},
		{"1", "1", "0"},
	}

	for _, tt := range tests {
		got := DailyInterest(decimal.RequireFromString(tt.balance), decimal.RequireFromString(tt.rate))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("DailyInterest(%s, %s) = %s, want %s", tt.balance, tt.rate, got, tt.want)
		}
	}
}

func TestGapInterest(t *testing.T) {
	got := GapInterest(decimal.NewFromInt(-3650), decimal.NewFromInt(5), 10)
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("GapInterest = %s, want 5", got)
	}
}

func TestValueDateImpactSign(t *testing.T) {
	tests := []struct {
		name     string
		root     byte
		original DrCr
		sign     int
		bs, pl   DrCr
	}{
		{"liability deposit", GLRootLiability, Credit, 1, Credit, Debit},
		{"liability withdrawal", GLRootLiability, Debit, -1, Debit, Credit},
		{"asset advance", GLRootAsset, Debit, -1, Debit, Credit},
		{"asset repayment", GLRootAsset, Credit, 1, Credit, Debit},
		{"income gl", GLRootIncome, Credit, 0, "", ""},
		{"expenditure gl", GLRootExpenditure, Debit, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValueDateImpactSign(tt.root, tt.original); got != tt.sign {
				t.Errorf("sign = %d, want %d", got, tt.sign)
			}
			bs, pl, ok := ValueDateLegs(tt.root, tt.original)
			if ok != (tt.sign != 0) || bs != tt.bs || pl != tt.pl {
				t.Errorf("legs = %s/%s/%v, want %s/%s", bs, pl, ok, tt.bs, tt.pl)
			}
		})
	}
}
