package usecase

import (
	"context"
	"errors"

	"github.com/iho/eodledger/internal/domain"
)

// AccountLookup resolves an account number against the customer master
// first and the office master second.
type AccountLookup struct {
	master        AccountMasterRepository
	localCurrency string
}

// NewAccountLookup creates a new AccountLookup.
func NewAccountLookup(master AccountMasterRepository, localCurrency string) *AccountLookup {
	return &AccountLookup{master: master, localCurrency: localCurrency}
}

// Info returns the account master of accountNo.
func (l *AccountLookup) Info(ctx context.Context, accountNo string) (*domain.AccountInfo, error) {
	info, err := l.master.GetCustomerAccount(ctx, accountNo)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	return l.master.GetOfficeAccount(ctx, accountNo)
}

// Currency returns the account currency, defaulting to local currency when
// the account is unknown to both masters.
func (l *AccountLookup) Currency(ctx context.Context, accountNo string) (string, error) {
	info, err := l.Info(ctx, accountNo)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return l.localCurrency, nil
	}
	if err != nil {
		return "", err
	}
	if info.Currency == "" {
		return l.localCurrency, nil
	}
	return info.Currency, nil
}
