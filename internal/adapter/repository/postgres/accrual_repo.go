package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

const selectAccrualSQL = `SELECT id, accrual_date, account_no, gl_num, currency, source_id, dr_cr,
       COALESCE(original_dr_cr, ''), kind, status, fcy_amount, exchange_rate, lcy_amount, rate, balance_sheet_leg
FROM interest_accruals`

// InterestAccrualRepository implements usecase.InterestAccrualRepository.
type InterestAccrualRepository struct {
	db DBTX
}

// NewInterestAccrualRepository creates a new InterestAccrualRepository.
func NewInterestAccrualRepository(db DBTX) *InterestAccrualRepository {
	return &InterestAccrualRepository{db: db}
}

// Upsert writes an accrual leg. A leg already posted to the GL stays Posted.
func (r *InterestAccrualRepository) Upsert(ctx context.Context, tx usecase.Transaction, a *domain.InterestAccrual) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO interest_accruals (id, accrual_date, account_no, gl_num, currency,
    source_id, dr_cr, original_dr_cr, kind, status, fcy_amount, exchange_rate, lcy_amount, rate, balance_sheet_leg)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
    gl_num = EXCLUDED.gl_num,
    currency = EXCLUDED.currency,
    dr_cr = EXCLUDED.dr_cr,
    original_dr_cr = EXCLUDED.original_dr_cr,
    fcy_amount = EXCLUDED.fcy_amount,
    exchange_rate = EXCLUDED.exchange_rate,
    lcy_amount = EXCLUDED.lcy_amount,
    rate = EXCLUDED.rate,
    status = CASE WHEN interest_accruals.status = 'Posted' THEN 'Posted' ELSE EXCLUDED.status END`,
		a.ID,
		timeToPgDate(a.AccrualDate),
		a.AccountNo,
		a.GLNum,
		a.Currency,
		a.SourceID,
		string(a.DrCr),
		nullableText(string(a.OriginalDrCr)),
		string(a.Kind),
		string(a.Status),
		decimalToNumeric(a.FCYAmount),
		decimalToNumeric(a.ExchangeRate),
		decimalToNumeric(a.LCYAmount),
		decimalToNumeric(a.Rate),
		a.BalanceSheetLeg,
	)
	return mapError(err)
}

// ListPendingByDate lists the Pending legs of date.
func (r *InterestAccrualRepository) ListPendingByDate(ctx context.Context, date time.Time) ([]*domain.InterestAccrual, error) {
	return r.list(ctx, selectAccrualSQL+`
WHERE accrual_date = $1 AND status = $2
ORDER BY id`, timeToPgDate(date), string(domain.AccrualStatusPending))
}

// MarkPosted flags a leg as posted to the GL.
func (r *InterestAccrualRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string) error {
	tag, err := conn(r.db, tx).Exec(ctx, `UPDATE interest_accruals SET status = $2 WHERE id = $1`,
		id, string(domain.AccrualStatusPosted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("accrual %s not found", id)
	}
	return nil
}

// ListAccountsWithActivity lists the accounts with legs dated date.
func (r *InterestAccrualRepository) ListAccountsWithActivity(ctx context.Context, date time.Time) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT account_no
FROM interest_accruals
WHERE accrual_date = $1
ORDER BY account_no`, timeToPgDate(date))
}

// ListByAccountAndDate lists the legs of accountNo dated date.
func (r *InterestAccrualRepository) ListByAccountAndDate(ctx context.Context, accountNo string, date time.Time) ([]*domain.InterestAccrual, error) {
	return r.list(ctx, selectAccrualSQL+`
WHERE account_no = $1 AND accrual_date = $2
ORDER BY id`, accountNo, timeToPgDate(date))
}

func (r *InterestAccrualRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.InterestAccrual, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.InterestAccrual
	for rows.Next() {
		a, err := scanAccrual(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccrual(row pgx.Row) (*domain.InterestAccrual, error) {
	var (
		a                               domain.InterestAccrual
		date                            pgtype.Date
		drCr, original, kind, status    string
		fcy, exRate, lcyAmount, ratePct pgtype.Numeric
	)
	if err := row.Scan(&a.ID, &date, &a.AccountNo, &a.GLNum, &a.Currency, &a.SourceID, &drCr,
		&original, &kind, &status, &fcy, &exRate, &lcyAmount, &ratePct, &a.BalanceSheetLeg); err != nil {
		return nil, err
	}

	a.AccrualDate = pgDateToTime(date)
	a.DrCr = domain.DrCr(drCr)
	a.OriginalDrCr = domain.DrCr(original)
	a.Kind = domain.AccrualKind(kind)
	a.Status = domain.AccrualStatus(status)
	a.FCYAmount = numericToDecimal(fcy)
	a.ExchangeRate = numericToDecimal(exRate)
	a.LCYAmount = numericToDecimal(lcyAmount)
	a.Rate = numericToDecimal(ratePct)
	return &a, nil
}

// ValueDateInterestRepository implements usecase.ValueDateInterestRepository.
type ValueDateInterestRepository struct {
	db DBTX
}

// NewValueDateInterestRepository creates a new ValueDateInterestRepository.
func NewValueDateInterestRepository(db DBTX) *ValueDateInterestRepository {
	return &ValueDateInterestRepository{db: db}
}

// Upsert writes the gap-interest record of a back-valued line.
func (r *ValueDateInterestRepository) Upsert(ctx context.Context, tx usecase.Transaction, v *domain.ValueDateInterest) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO value_date_interest (id, transaction_id, tran_date, value_date,
    account_no, gl_num, currency, original_dr_cr, rate, principal, amount, exchange_rate, lcy_amount, gap_days)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
    rate = EXCLUDED.rate,
    principal = EXCLUDED.principal,
    amount = EXCLUDED.amount,
    exchange_rate = EXCLUDED.exchange_rate,
    lcy_amount = EXCLUDED.lcy_amount,
    gap_days = EXCLUDED.gap_days`,
		v.ID,
		v.TransactionID,
		timeToPgDate(v.TranDate),
		timeToPgDate(v.ValueDate),
		v.AccountNo,
		v.GLNum,
		v.Currency,
		string(v.OriginalDrCr),
		decimalToNumeric(v.Rate),
		decimalToNumeric(v.Principal),
		decimalToNumeric(v.Amount),
		decimalToNumeric(v.ExchangeRate),
		decimalToNumeric(v.LCYAmount),
		v.GapDays,
	)
	return mapError(err)
}

// ListByTranDate lists the records raised by lines dated date.
func (r *ValueDateInterestRepository) ListByTranDate(ctx context.Context, date time.Time) ([]*domain.ValueDateInterest, error) {
	rows, err := r.db.Query(ctx, `SELECT id, transaction_id, tran_date, value_date, account_no, gl_num, currency,
       original_dr_cr, rate, principal, amount, exchange_rate, lcy_amount, gap_days
FROM value_date_interest
WHERE tran_date = $1
ORDER BY id`, timeToPgDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ValueDateInterest
	for rows.Next() {
		var (
			v                                   domain.ValueDateInterest
			tranDate, valueDate                 pgtype.Date
			original                            string
			rate, principal, amount, ex, lcyAmt pgtype.Numeric
		)
		if err := rows.Scan(&v.ID, &v.TransactionID, &tranDate, &valueDate, &v.AccountNo, &v.GLNum, &v.Currency,
			&original, &rate, &principal, &amount, &ex, &lcyAmt, &v.GapDays); err != nil {
			return nil, err
		}
		v.TranDate = pgDateToTime(tranDate)
		v.ValueDate = pgDateToTime(valueDate)
		v.OriginalDrCr = domain.DrCr(original)
		v.Rate = numericToDecimal(rate)
		v.Principal = numericToDecimal(principal)
		v.Amount = numericToDecimal(amount)
		v.ExchangeRate = numericToDecimal(ex)
		v.LCYAmount = numericToDecimal(lcyAmt)
		out = append(out, &v)
	}
	return out, rows.Err()
}
