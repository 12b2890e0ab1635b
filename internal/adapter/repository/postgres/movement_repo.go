package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

// GLMovementRepository implements usecase.GLMovementRepository. Both
// movement streams share one table split by the stream column.
type GLMovementRepository struct {
	db DBTX
}

// NewGLMovementRepository creates a new GLMovementRepository.
func NewGLMovementRepository(db DBTX) *GLMovementRepository {
	return &GLMovementRepository{db: db}
}

// Create inserts a movement and reports false when its id already exists.
func (r *GLMovementRepository) Create(ctx context.Context, tx usecase.Transaction, m *domain.GLMovement) (bool, error) {
	tag, err := conn(r.db, tx).Exec(ctx, `INSERT INTO gl_movements (id, stream, source_id, reference, gl_num, currency,
    dr_cr, fcy_amount, exchange_rate, lcy_amount, tran_date, value_date, narration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO NOTHING`,
		m.ID,
		string(m.Stream),
		m.SourceID,
		m.Reference,
		m.GLNum,
		m.Currency,
		string(m.DrCr),
		decimalToNumeric(m.FCYAmount),
		decimalToNumeric(m.ExchangeRate),
		decimalToNumeric(m.LCYAmount),
		timeToPgDate(m.TranDate),
		timeToPgDate(m.ValueDate),
		m.Narration,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListGLNumsByDate lists the GLs that moved in stream on date.
func (r *GLMovementRepository) ListGLNumsByDate(ctx context.Context, stream domain.MovementStream, date time.Time) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT gl_num
FROM gl_movements
WHERE stream = $1 AND tran_date = $2
ORDER BY gl_num`, string(stream), timeToPgDate(date))
}

// Totals sums the debit and credit LCY movements of glNum on date.
func (r *GLMovementRepository) Totals(ctx context.Context, stream domain.MovementStream, glNum string, date time.Time) (domain.MovementTotals, error) {
	var debit, credit pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT
    COALESCE(SUM(lcy_amount) FILTER (WHERE dr_cr = 'D'), 0),
    COALESCE(SUM(lcy_amount) FILTER (WHERE dr_cr = 'C'), 0)
FROM gl_movements
WHERE stream = $1 AND gl_num = $2 AND tran_date = $3`, string(stream), glNum, timeToPgDate(date)).Scan(&debit, &credit)
	if err != nil {
		return domain.MovementTotals{}, err
	}
	return domain.MovementTotals{Debit: numericToDecimal(debit), Credit: numericToDecimal(credit)}, nil
}

// listByReference loads the movements booked under reference on date.
func listByReference(ctx context.Context, db DBTX, reference string, date time.Time) ([]*domain.GLMovement, error) {
	rows, err := db.Query(ctx, `SELECT id, stream, source_id, reference, gl_num, currency, dr_cr, fcy_amount,
       exchange_rate, lcy_amount, tran_date, value_date, narration
FROM gl_movements
WHERE reference = $1 AND tran_date = $2
ORDER BY id`, reference, timeToPgDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.GLMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovement(row pgx.Row) (*domain.GLMovement, error) {
	var (
		m                    domain.GLMovement
		stream, drCr         string
		fcy, rate, lcyAmount pgtype.Numeric
		tranDate, valueDate  pgtype.Date
	)
	if err := row.Scan(&m.ID, &stream, &m.SourceID, &m.Reference, &m.GLNum, &m.Currency, &drCr, &fcy,
		&rate, &lcyAmount, &tranDate, &valueDate, &m.Narration); err != nil {
		return nil, err
	}

	m.Stream = domain.MovementStream(stream)
	m.DrCr = domain.DrCr(drCr)
	m.FCYAmount = numericToDecimal(fcy)
	m.ExchangeRate = numericToDecimal(rate)
	m.LCYAmount = numericToDecimal(lcyAmount)
	m.TranDate = pgDateToTime(tranDate)
	m.ValueDate = pgDateToTime(valueDate)
	return &m, nil
}
