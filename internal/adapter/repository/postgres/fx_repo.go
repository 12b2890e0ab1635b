package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

// WAERepository implements usecase.WAERepository.
type WAERepository struct {
	db DBTX
}

// NewWAERepository creates a new WAERepository.
func NewWAERepository(db DBTX) *WAERepository {
	return &WAERepository{db: db}
}

// GetForUpdate reads and row-locks the position of pair. A pair without a
// position gets a zero row first, so the first deal on a pair is serialised
// by the row lock like every later one.
func (r *WAERepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, pair domain.CurrencyPair) (*domain.WAEState, error) {
	db := conn(r.db, tx)
	if _, err := db.Exec(ctx, `INSERT INTO wae_positions (foreign_currency, local_currency, fcy_balance, lcy_balance)
VALUES ($1, $2, 0, 0)
ON CONFLICT (foreign_currency, local_currency) DO NOTHING`, pair.Foreign, pair.Local); err != nil {
		return nil, fmt.Errorf("seed wae position: %w", err)
	}

	var (
		fcy, lcyBalance pgtype.Numeric
		updatedAt       pgtype.Timestamptz
	)
	err := db.QueryRow(ctx, `SELECT fcy_balance, lcy_balance, updated_at
FROM wae_positions
WHERE foreign_currency = $1 AND local_currency = $2
FOR UPDATE`, pair.Foreign, pair.Local).Scan(&fcy, &lcyBalance, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWAEStateNotFound
		}
		return nil, err
	}

	return &domain.WAEState{
		Pair:       pair,
		FCYBalance: numericToDecimal(fcy),
		LCYBalance: numericToDecimal(lcyBalance),
		UpdatedAt:  updatedAt.Time,
	}, nil
}

// Save inserts or replaces the position of state.Pair.
func (r *WAERepository) Save(ctx context.Context, tx usecase.Transaction, state *domain.WAEState) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO wae_positions (foreign_currency, local_currency, fcy_balance, lcy_balance, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (foreign_currency, local_currency) DO UPDATE SET
    fcy_balance = EXCLUDED.fcy_balance,
    lcy_balance = EXCLUDED.lcy_balance,
    updated_at = EXCLUDED.updated_at`,
		state.Pair.Foreign,
		state.Pair.Local,
		decimalToNumeric(state.FCYBalance),
		decimalToNumeric(state.LCYBalance),
		timeToPgTimestamptz(state.UpdatedAt),
	)
	return err
}

// SettlementRepository implements usecase.SettlementRepository.
type SettlementRepository struct {
	db DBTX
}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(db DBTX) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create stores a realized gain/loss record.
func (r *SettlementRepository) Create(ctx context.Context, tx usecase.Transaction, s *domain.SettlementRecord) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO fx_settlements (id, base_id, deal_date, account_no, currency,
    gain_loss_gl, fcy_amount, deal_rate, wae_rate, gain_loss, settled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID,
		s.BaseID,
		timeToPgDate(s.DealDate),
		s.AccountNo,
		s.Currency,
		s.GainLossGL,
		decimalToNumeric(s.FCYAmount),
		decimalToNumeric(s.DealRate),
		decimalToNumeric(s.WAERate),
		decimalToNumeric(s.GainLoss),
		timeToPgTimestamptz(s.SettledAt),
	)
	return mapError(err)
}

const selectRevaluationSQL = `SELECT id, reval_date, entity_id, gl_num, currency, status, fcy_balance, mid_rate,
       booked_lcy, mtm_lcy, difference, created_at
FROM fx_revaluations`

// RevaluationRepository implements usecase.RevaluationRepository. Legs are
// stored as transaction-stream GL movements referencing the record id.
type RevaluationRepository struct {
	db DBTX
}

// NewRevaluationRepository creates a new RevaluationRepository.
func NewRevaluationRepository(db DBTX) *RevaluationRepository {
	return &RevaluationRepository{db: db}
}

// Create stores a mark-to-market record.
func (r *RevaluationRepository) Create(ctx context.Context, tx usecase.Transaction, rec *domain.RevaluationRecord) error {
	_, err := conn(r.db, tx).Exec(ctx, `INSERT INTO fx_revaluations (id, reval_date, entity_id, gl_num, currency, status,
    fcy_balance, mid_rate, booked_lcy, mtm_lcy, difference, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID,
		timeToPgDate(rec.RevalDate),
		rec.EntityID,
		rec.GLNum,
		rec.Currency,
		string(rec.Status),
		decimalToNumeric(rec.FCYBalance),
		decimalToNumeric(rec.MidRate),
		decimalToNumeric(rec.BookedLCY),
		decimalToNumeric(rec.MTMLCY),
		decimalToNumeric(rec.Difference),
		timeToPgTimestamptz(rec.CreatedAt),
	)
	return mapError(err)
}

// Exists reports whether entityID was revalued on date.
func (r *RevaluationRepository) Exists(ctx context.Context, entityID string, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
    SELECT 1 FROM fx_revaluations WHERE entity_id = $1 AND reval_date = $2
)`, entityID, timeToPgDate(date)).Scan(&exists)
	return exists, err
}

// LatestBefore returns the most recent record of entityID before date, or nil.
func (r *RevaluationRepository) LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.RevaluationRecord, error) {
	rec, err := scanRevaluation(r.db.QueryRow(ctx, selectRevaluationSQL+`
WHERE entity_id = $1 AND reval_date < $2
ORDER BY reval_date DESC
LIMIT 1`, entityID, timeToPgDate(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListPostedBefore returns Posted records dated before date with their legs.
func (r *RevaluationRepository) ListPostedBefore(ctx context.Context, date time.Time) ([]*domain.RevaluationRecord, error) {
	rows, err := r.db.Query(ctx, selectRevaluationSQL+`
WHERE status = $1 AND reval_date < $2
ORDER BY reval_date, entity_id`, string(domain.RevaluationPosted), timeToPgDate(date))
	if err != nil {
		return nil, err
	}

	var records []*domain.RevaluationRecord
	for rows.Next() {
		rec, err := scanRevaluation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		legs, err := listByReference(ctx, r.db, rec.ID, rec.RevalDate)
		if err != nil {
			return nil, fmt.Errorf("load legs of %s: %w", rec.ID, err)
		}
		rec.Legs = legs
	}
	return records, nil
}

// ListGLNumsBookedOn lists the GLs of revaluation and reversal legs dated
// date. Both reference the revaluation record id.
func (r *RevaluationRepository) ListGLNumsBookedOn(ctx context.Context, date time.Time) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT m.gl_num
FROM gl_movements m
JOIN fx_revaluations v ON v.id = m.reference
WHERE m.tran_date = $1
ORDER BY m.gl_num`, timeToPgDate(date))
}

// MarkReversed flags a record whose legs were reversed.
func (r *RevaluationRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	tag, err := conn(r.db, tx).Exec(ctx, `UPDATE fx_revaluations SET status = $2 WHERE id = $1`,
		id, string(domain.RevaluationReversed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revaluation %s not found", id)
	}
	return nil
}

func scanRevaluation(row pgx.Row) (*domain.RevaluationRecord, error) {
	var (
		rec                         domain.RevaluationRecord
		date                        pgtype.Date
		status                      string
		fcy, mid, booked, mtm, diff pgtype.Numeric
		createdAt                   pgtype.Timestamptz
	)
	if err := row.Scan(&rec.ID, &date, &rec.EntityID, &rec.GLNum, &rec.Currency, &status, &fcy, &mid,
		&booked, &mtm, &diff, &createdAt); err != nil {
		return nil, err
	}

	rec.RevalDate = pgDateToTime(date)
	rec.Status = domain.RevaluationStatus(status)
	rec.FCYBalance = numericToDecimal(fcy)
	rec.MidRate = numericToDecimal(mid)
	rec.BookedLCY = numericToDecimal(booked)
	rec.MTMLCY = numericToDecimal(mtm)
	rec.Difference = numericToDecimal(diff)
	rec.CreatedAt = createdAt.Time
	return &rec, nil
}
