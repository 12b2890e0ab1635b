package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

const selectTransactionSQL = `SELECT id, base_id, tran_date, value_date, COALESCE(account_no, ''), gl_num, currency,
       narration, dr_cr, status, fcy_amount, exchange_rate, lcy_amount
FROM transactions`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts one transaction line.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO transactions (id, base_id, tran_date, value_date, account_no, gl_num,
    currency, narration, dr_cr, status, fcy_amount, exchange_rate, lcy_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID,
		t.BaseID,
		timeToPgDate(t.TranDate),
		timeToPgDate(t.ValueDate),
		nullableText(t.AccountNo),
		t.GLNum,
		t.Currency,
		t.Narration,
		string(t.DrCr),
		string(t.Status),
		decimalToNumeric(t.FCYAmount),
		decimalToNumeric(t.ExchangeRate),
		decimalToNumeric(t.LCYAmount),
	)
	return mapError(err)
}

// ListAccountsWithActivity lists the accounts with any line dated date.
func (r *TransactionRepository) ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT account_no
FROM transactions
WHERE tran_date = $1 AND account_no IS NOT NULL
ORDER BY account_no`, timeToPgDate(date))
}

// ListByAccountAndDate lists every line of accountNo dated date.
func (r *TransactionRepository) ListByAccountAndDate(ctx context.Context, accountNo string, date time.Time) ([]*domain.Transaction, error) {
	return r.list(ctx, selectTransactionSQL+`
WHERE account_no = $1 AND tran_date = $2
ORDER BY id`, accountNo, timeToPgDate(date))
}

// ListVerifiedByDate lists the verified lines dated date.
func (r *TransactionRepository) ListVerifiedByDate(ctx context.Context, date time.Time) ([]*domain.Transaction, error) {
	return r.list(ctx, selectTransactionSQL+`
WHERE tran_date = $1 AND status = $2
ORDER BY id`, timeToPgDate(date), string(domain.TransactionStatusVerified))
}

// ListBackValued lists verified account lines of date whose value date is earlier.
func (r *TransactionRepository) ListBackValued(ctx context.Context, date time.Time) ([]*domain.Transaction, error) {
	return r.list(ctx, selectTransactionSQL+`
WHERE tran_date = $1 AND status = $2 AND account_no IS NOT NULL AND value_date < tran_date
ORDER BY id`, timeToPgDate(date), string(domain.TransactionStatusVerified))
}

func (r *TransactionRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t                    domain.Transaction
		tranDate, valueDate  pgtype.Date
		drCr, status         string
		fcy, rate, lcyAmount pgtype.Numeric
	)
	if err := row.Scan(&t.ID, &t.BaseID, &tranDate, &valueDate, &t.AccountNo, &t.GLNum, &t.Currency,
		&t.Narration, &drCr, &status, &fcy, &rate, &lcyAmount); err != nil {
		return nil, err
	}

	t.TranDate = pgDateToTime(tranDate)
	t.ValueDate = pgDateToTime(valueDate)
	t.DrCr = domain.DrCr(drCr)
	t.Status = domain.TransactionStatus(status)
	t.FCYAmount = numericToDecimal(fcy)
	t.ExchangeRate = numericToDecimal(rate)
	t.LCYAmount = numericToDecimal(lcyAmount)
	return &t, nil
}
