package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AccountKind distinguishes customer accounts from office (internal) accounts.
type AccountKind string

const (
	AccountKindCustomer AccountKind = "customer"
	AccountKindOffice   AccountKind = "office"
)

// GL root digits of the chart of accounts.
const (
	GLRootLiability   = '1'
	GLRootAsset       = '2'
	GLRootIncome      = '3'
	GLRootExpenditure = '4'
)

// InterestTerms is the product interest configuration resolved for an account.
type InterestTerms struct {
	RateCode string
	// ReceivableExpenditureGL receives the debit leg of an accrual: interest
	// receivable for assets, interest expenditure for liabilities.
	ReceivableExpenditureGL string
	// PayableIncomeGL receives the credit leg: interest payable for
	// liabilities, interest income for assets.
	PayableIncomeGL string
	Increment       decimal.Decimal
	FixedRate       decimal.Decimal
	Bearing         bool
}

// AccountInfo bundles everything the jobs need to know about an account,
// resolved eagerly from the account and product masters.
type AccountInfo struct {
	AccountNo   string
	GLNum       string
	Currency    string
	ProductCode string
	Kind        AccountKind
	Interest    InterestTerms
	Active      bool
}

// GLRoot returns the leading digit of the account's GL.
func (a *AccountInfo) GLRoot() byte {
	return GLRoot(a.GLNum)
}

// IsLiability reports whether the account sits under a liability GL.
func (a *AccountInfo) IsLiability() bool {
	return a.GLRoot() == GLRootLiability
}

// IsAsset reports whether the account sits under an asset GL.
func (a *AccountInfo) IsAsset() bool {
	return a.GLRoot() == GLRootAsset
}

// IsForeignCurrency reports whether the account is denominated in a currency
// other than lcy.
func (a *AccountInfo) IsForeignCurrency(lcy string) bool {
	return a.Currency != "" && a.Currency != lcy
}

// AccrualGL is the balance-sheet GL that carries the account's accrued
// interest: payable for liabilities, receivable for assets.
func (a *AccountInfo) AccrualGL() string {
	if a.IsAsset() {
		return a.Interest.ReceivableExpenditureGL
	}
	return a.Interest.PayableIncomeGL
}

// ProfitLossGL is the income or expenditure counterpart of AccrualGL.
func (a *AccountInfo) ProfitLossGL() string {
	if a.IsAsset() {
		return a.Interest.PayableIncomeGL
	}
	return a.Interest.ReceivableExpenditureGL
}

// AccountClass separates fixed-tenor deals from running accounts.
type AccountClass string

const (
	AccountClassDeal    AccountClass = "deal"
	AccountClassRunning AccountClass = "running"
)

// Classify returns AccountClassDeal when glNum matches one of dealPrefixes.
func Classify(glNum string, dealPrefixes []string) AccountClass {
	for _, p := range dealPrefixes {
		p = strings.TrimSpace(p)
		if p != "" && strings.HasPrefix(glNum, p) {
			return AccountClassDeal
		}
	}
	return AccountClassRunning
}

// GLRoot returns the category digit of a GL number, or 0 when empty.
func GLRoot(glNum string) byte {
	if glNum == "" {
		return 0
	}
	return glNum[0]
}
