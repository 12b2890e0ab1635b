package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidGLNumber = errors.New("invalid gl number")
	ErrInvalidRate     = errors.New("rate must be positive")
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
	"BDT": true, "SAR": true, "AED": true, "MYR": true,
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateGLNumber checks that a GL number is numeric and starts with a known root.
func ValidateGLNumber(gl string) error {
	if gl == "" {
		return fmt.Errorf("%w: empty", ErrInvalidGLNumber)
	}
	for _, r := range gl {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %s is not numeric", ErrInvalidGLNumber, gl)
		}
	}
	switch gl[0] {
	case GLRootLiability, GLRootAsset, GLRootIncome, GLRootExpenditure:
		return nil
	}
	return fmt.Errorf("%w: %s has unknown root", ErrInvalidGLNumber, gl)
}

// ValidateRate rejects zero and negative exchange rates.
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}
