package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
)

const selectMasterSQL = `SELECT a.account_no, a.gl_num, a.currency, COALESCE(a.product_code, ''), a.active,
       COALESCE(p.interest_bearing, FALSE), COALESCE(p.rate_code, ''), COALESCE(p.rate_increment, 0),
       COALESCE(p.fixed_rate, 0), COALESCE(p.receivable_expenditure_gl, ''), COALESCE(p.payable_income_gl, '')
FROM %s a
LEFT JOIN products p ON p.product_code = a.product_code`

// AccountMasterRepository implements usecase.AccountMasterRepository.
type AccountMasterRepository struct {
	db DBTX
}

// NewAccountMasterRepository creates a new AccountMasterRepository.
func NewAccountMasterRepository(db DBTX) *AccountMasterRepository {
	return &AccountMasterRepository{db: db}
}

// GetCustomerAccount returns a customer account with its product terms.
func (r *AccountMasterRepository) GetCustomerAccount(ctx context.Context, accountNo string) (*domain.AccountInfo, error) {
	return r.get(ctx, "customer_accounts", domain.AccountKindCustomer, accountNo)
}

// GetOfficeAccount returns an office account with its product terms.
func (r *AccountMasterRepository) GetOfficeAccount(ctx context.Context, accountNo string) (*domain.AccountInfo, error) {
	return r.get(ctx, "office_accounts", domain.AccountKindOffice, accountNo)
}

func (r *AccountMasterRepository) get(ctx context.Context, table string, kind domain.AccountKind, accountNo string) (*domain.AccountInfo, error) {
	sql := fmt.Sprintf(selectMasterSQL, table) + "\nWHERE a.account_no = $1"
	info, err := scanAccountInfo(r.db.QueryRow(ctx, sql, accountNo), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return info, err
}

// ListInterestBearing lists active customer accounts on interest-bearing products.
func (r *AccountMasterRepository) ListInterestBearing(ctx context.Context) ([]*domain.AccountInfo, error) {
	sql := fmt.Sprintf(selectMasterSQL, "customer_accounts") + `
WHERE a.active AND p.interest_bearing
ORDER BY a.account_no`
	return r.list(ctx, domain.AccountKindCustomer, sql)
}

// ListProductGLs lists every GL referenced by an account or a product.
func (r *AccountMasterRepository) ListProductGLs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT gl FROM (
    SELECT gl_num AS gl FROM customer_accounts
    UNION SELECT gl_num FROM office_accounts
    UNION SELECT receivable_expenditure_gl FROM products
    UNION SELECT payable_income_gl FROM products
) gls
WHERE gl IS NOT NULL AND gl <> ''
ORDER BY gl`)
}

// ListForeignCurrencyAccounts lists active customer and office accounts not
// denominated in localCurrency.
func (r *AccountMasterRepository) ListForeignCurrencyAccounts(ctx context.Context, localCurrency string) ([]*domain.AccountInfo, error) {
	var out []*domain.AccountInfo
	for _, src := range []struct {
		table string
		kind  domain.AccountKind
	}{
		{"customer_accounts", domain.AccountKindCustomer},
		{"office_accounts", domain.AccountKindOffice},
	} {
		sql := fmt.Sprintf(selectMasterSQL, src.table) + `
WHERE a.active AND a.currency <> $1
ORDER BY a.account_no`
		infos, err := r.list(ctx, src.kind, sql, localCurrency)
		if err != nil {
			return nil, err
		}
		out = append(out, infos...)
	}
	return out, nil
}

func (r *AccountMasterRepository) list(ctx context.Context, kind domain.AccountKind, sql string, args ...any) ([]*domain.AccountInfo, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AccountInfo
	for rows.Next() {
		info, err := scanAccountInfo(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func scanAccountInfo(row pgx.Row, kind domain.AccountKind) (*domain.AccountInfo, error) {
	var (
		info             domain.AccountInfo
		increment, fixed pgtype.Numeric
	)
	if err := row.Scan(&info.AccountNo, &info.GLNum, &info.Currency, &info.ProductCode, &info.Active,
		&info.Interest.Bearing, &info.Interest.RateCode, &increment, &fixed,
		&info.Interest.ReceivableExpenditureGL, &info.Interest.PayableIncomeGL); err != nil {
		return nil, err
	}

	info.Kind = kind
	info.Interest.Increment = numericToDecimal(increment)
	info.Interest.FixedRate = numericToDecimal(fixed)
	return &info, nil
}

// RateRepository implements usecase.RateRepository.
type RateRepository struct {
	db DBTX
}

// NewRateRepository creates a new RateRepository.
func NewRateRepository(db DBTX) *RateRepository {
	return &RateRepository{db: db}
}

// LatestInterestRate returns the rate of rateCode effective on date.
func (r *RateRepository) LatestInterestRate(ctx context.Context, rateCode string, date time.Time) (decimal.Decimal, error) {
	return r.latest(ctx, `SELECT rate
FROM interest_rates
WHERE rate_code = $1 AND effective_date <= $2
ORDER BY effective_date DESC
LIMIT 1`, rateCode, date)
}

// MidRate returns the most recent mid rate of currency on or before date.
func (r *RateRepository) MidRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	return r.latest(ctx, `SELECT mid_rate
FROM fx_rates
WHERE currency = $1 AND rate_date <= $2
ORDER BY rate_date DESC
LIMIT 1`, currency, date)
}

func (r *RateRepository) latest(ctx context.Context, sql, code string, date time.Time) (decimal.Decimal, error) {
	var rate pgtype.Numeric
	if err := r.db.QueryRow(ctx, sql, code, timeToPgDate(date)).Scan(&rate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrRateNotFound
		}
		return decimal.Zero, err
	}
	return numericToDecimal(rate), nil
}
