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
	"github.com/iho/eodledger/internal/usecase"
)

// snapshotTable describes one of the daily balance tables. GL snapshots have
// no separate GL column and carry no interest amount.
type snapshotTable struct {
	name     string
	key      string
	glCol    string
	interest string
}

var (
	accountBalancesTable = snapshotTable{name: "account_balances", key: "account_no", glCol: "gl_num", interest: "interest_amount"}
	accrualBalancesTable = snapshotTable{name: "accrual_balances", key: "account_no", glCol: "gl_num", interest: "interest_amount"}
	glBalancesTable      = snapshotTable{name: "gl_balances", key: "gl_num", glCol: "gl_num", interest: "0::numeric"}
)

func (t snapshotTable) selectSQL() string {
	return fmt.Sprintf(`SELECT %s, balance_date, %s, currency, opening, debit_sum, credit_sum, closing,
       current_balance, available_balance, %s, updated_at
FROM %s`, t.key, t.glCol, t.interest, t.name)
}

func (t snapshotTable) getSQL() string {
	return t.selectSQL() + fmt.Sprintf("\nWHERE %s = $1 AND balance_date = $2", t.key)
}

func (t snapshotTable) latestBeforeSQL() string {
	return t.selectSQL() + fmt.Sprintf("\nWHERE %s = $1 AND balance_date < $2\nORDER BY balance_date DESC\nLIMIT 1", t.key)
}

func scanSnapshot(row pgx.Row) (*domain.BalanceSnapshot, error) {
	var (
		s                                                   domain.BalanceSnapshot
		date                                                pgtype.Date
		updatedAt                                           pgtype.Timestamptz
		opening, debit, credit, closing, current, available pgtype.Numeric
		interest                                            pgtype.Numeric
	)
	if err := row.Scan(&s.EntityID, &date, &s.GLNum, &s.Currency, &opening, &debit, &credit, &closing,
		&current, &available, &interest, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}

	s.Date = pgDateToTime(date)
	s.UpdatedAt = updatedAt.Time
	s.Opening = numericToDecimal(opening)
	s.DebitSum = numericToDecimal(debit)
	s.CreditSum = numericToDecimal(credit)
	s.Closing = numericToDecimal(closing)
	s.CurrentBalance = numericToDecimal(current)
	s.AvailableBalance = numericToDecimal(available)
	s.InterestAmount = numericToDecimal(interest)
	return &s, nil
}

// snapshotReader implements usecase.SnapshotReader over one table.
type snapshotReader struct {
	db    DBTX
	table snapshotTable
}

// Get returns the snapshot of entityID on date.
func (r *snapshotReader) Get(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	return scanSnapshot(r.db.QueryRow(ctx, r.table.getSQL(), entityID, timeToPgDate(date)))
}

// LatestBefore returns the most recent snapshot strictly before date.
func (r *snapshotReader) LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	return scanSnapshot(r.db.QueryRow(ctx, r.table.latestBeforeSQL(), entityID, timeToPgDate(date)))
}

// GetForUpdate reads and row-locks the snapshot of (entityID, date).
func (r *snapshotReader) GetForUpdate(ctx context.Context, tx usecase.Transaction, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	return scanSnapshot(conn(r.db, tx).QueryRow(ctx, r.table.getSQL()+"\nFOR UPDATE", entityID, timeToPgDate(date)))
}

func (r *snapshotReader) upsert(ctx context.Context, tx usecase.Transaction, s *domain.BalanceSnapshot) error {
	sql := fmt.Sprintf(`INSERT INTO %s (account_no, balance_date, gl_num, currency, opening, debit_sum, credit_sum,
    closing, current_balance, available_balance, interest_amount, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (account_no, balance_date) DO UPDATE SET
    gl_num = EXCLUDED.gl_num,
    currency = EXCLUDED.currency,
    opening = EXCLUDED.opening,
    debit_sum = EXCLUDED.debit_sum,
    credit_sum = EXCLUDED.credit_sum,
    closing = EXCLUDED.closing,
    current_balance = EXCLUDED.current_balance,
    available_balance = EXCLUDED.available_balance,
    interest_amount = EXCLUDED.interest_amount,
    updated_at = EXCLUDED.updated_at`, r.table.name)

	_, err := conn(r.db, tx).Exec(ctx, sql,
		s.EntityID,
		timeToPgDate(s.Date),
		s.GLNum,
		s.Currency,
		decimalToNumeric(s.Opening),
		decimalToNumeric(s.DebitSum),
		decimalToNumeric(s.CreditSum),
		decimalToNumeric(s.Closing),
		decimalToNumeric(s.CurrentBalance),
		decimalToNumeric(s.AvailableBalance),
		decimalToNumeric(s.InterestAmount),
		timeToPgTimestamptz(s.UpdatedAt),
	)
	return mapError(err)
}

// AccountBalanceRepository implements usecase.AccountBalanceRepository.
type AccountBalanceRepository struct {
	snapshotReader
}

// NewAccountBalanceRepository creates a new AccountBalanceRepository.
func NewAccountBalanceRepository(db DBTX) *AccountBalanceRepository {
	return &AccountBalanceRepository{snapshotReader{db: db, table: accountBalancesTable}}
}

// Upsert inserts or replaces the snapshot of (account, date).
func (r *AccountBalanceRepository) Upsert(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	return r.upsert(ctx, tx, snapshot)
}

// ListEntitiesByDate lists the accounts that have a snapshot on date.
func (r *AccountBalanceRepository) ListEntitiesByDate(ctx context.Context, date time.Time) ([]string, error) {
	return queryStrings(ctx, r.db,
		`SELECT account_no FROM account_balances WHERE balance_date = $1 ORDER BY account_no`,
		timeToPgDate(date))
}

// CountByDate counts the account snapshots of date.
func (r *AccountBalanceRepository) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM account_balances WHERE balance_date = $1`, timeToPgDate(date)).Scan(&n)
	return n, err
}

// AccrualBalanceRepository implements usecase.AccrualBalanceRepository.
type AccrualBalanceRepository struct {
	snapshotReader
}

// NewAccrualBalanceRepository creates a new AccrualBalanceRepository.
func NewAccrualBalanceRepository(db DBTX) *AccrualBalanceRepository {
	return &AccrualBalanceRepository{snapshotReader{db: db, table: accrualBalancesTable}}
}

// Upsert inserts or replaces the snapshot of (account, date).
func (r *AccrualBalanceRepository) Upsert(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	return r.upsert(ctx, tx, snapshot)
}

// GLBalanceRepository implements usecase.GLBalanceRepository.
type GLBalanceRepository struct {
	snapshotReader
}

// NewGLBalanceRepository creates a new GLBalanceRepository.
func NewGLBalanceRepository(db DBTX) *GLBalanceRepository {
	return &GLBalanceRepository{snapshotReader{db: db, table: glBalancesTable}}
}

// Create inserts a new snapshot. A concurrent insert of the same key yields
// domain.ErrDuplicateKey.
func (r *GLBalanceRepository) Create(ctx context.Context, tx usecase.Transaction, s *domain.BalanceSnapshot) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO gl_balances (gl_num, balance_date, currency, opening, debit_sum,
    credit_sum, closing, current_balance, available_balance, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.EntityID,
		timeToPgDate(s.Date),
		s.Currency,
		decimalToNumeric(s.Opening),
		decimalToNumeric(s.DebitSum),
		decimalToNumeric(s.CreditSum),
		decimalToNumeric(s.Closing),
		decimalToNumeric(s.CurrentBalance),
		decimalToNumeric(s.AvailableBalance),
		timeToPgTimestamptz(s.UpdatedAt),
	)
	return mapError(err)
}

// Update rewrites the sums of an existing snapshot.
func (r *GLBalanceRepository) Update(ctx context.Context, tx usecase.Transaction, s *domain.BalanceSnapshot) error {
	tag, err := conn(r.db, tx).Exec(ctx, `UPDATE gl_balances SET
    currency = $3,
    opening = $4,
    debit_sum = $5,
    credit_sum = $6,
    closing = $7,
    current_balance = $8,
    available_balance = $9,
    updated_at = $10
WHERE gl_num = $1 AND balance_date = $2`,
		s.EntityID,
		timeToPgDate(s.Date),
		s.Currency,
		decimalToNumeric(s.Opening),
		decimalToNumeric(s.DebitSum),
		decimalToNumeric(s.CreditSum),
		decimalToNumeric(s.Closing),
		decimalToNumeric(s.CurrentBalance),
		decimalToNumeric(s.AvailableBalance),
		timeToPgTimestamptz(s.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

// Delete removes the snapshot of (glNum, date) outside any transaction.
func (r *GLBalanceRepository) Delete(ctx context.Context, glNum string, date time.Time) error {
	_, err := r.db.Exec(ctx, `DELETE FROM gl_balances WHERE gl_num = $1 AND balance_date = $2`, glNum, timeToPgDate(date))
	return err
}

// SumLatestClosing sums, over every GL, the closing balance of its most
// recent snapshot on or before date.
func (r *GLBalanceRepository) SumLatestClosing(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(closing), 0)
FROM (
    SELECT DISTINCT ON (gl_num) closing
    FROM gl_balances
    WHERE balance_date <= $1
    ORDER BY gl_num, balance_date DESC
) latest`, timeToPgDate(date)).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total), nil
}
