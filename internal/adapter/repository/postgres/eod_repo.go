package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/eodledger/internal/domain"
)

// JobLogRepository implements usecase.JobLogRepository. Every statement runs
// on the pool so a log row survives the rollback of the job it describes.
type JobLogRepository struct {
	db DBTX
}

// NewJobLogRepository creates a new JobLogRepository.
func NewJobLogRepository(db DBTX) *JobLogRepository {
	return &JobLogRepository{db: db}
}

// Create appends a new attempt.
func (r *JobLogRepository) Create(ctx context.Context, log *domain.JobExecutionLog) error {
	_, err := r.db.Exec(ctx, `INSERT INTO eod_job_logs (id, business_date, job_number, job_name, user_id, status,
    started_at, finished_at, records_processed, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID,
		timeToPgDate(log.BusinessDate),
		log.JobNumber,
		log.JobName,
		log.UserID,
		string(log.Status),
		timeToPgTimestamptz(log.StartedAt),
		finishedAt(log.FinishedAt),
		log.RecordsProcessed,
		log.ErrorMessage,
	)
	return mapError(err)
}

// Update records the outcome of an attempt.
func (r *JobLogRepository) Update(ctx context.Context, log *domain.JobExecutionLog) error {
	tag, err := r.db.Exec(ctx, `UPDATE eod_job_logs SET
    status = $2,
    finished_at = $3,
    records_processed = $4,
    error_message = $5
WHERE id = $1`,
		log.ID,
		string(log.Status),
		finishedAt(log.FinishedAt),
		log.RecordsProcessed,
		log.ErrorMessage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Latest returns the most recent attempt of jobNumber, or nil.
func (r *JobLogRepository) Latest(ctx context.Context, jobNumber int) (*domain.JobExecutionLog, error) {
	var (
		log      domain.JobExecutionLog
		date     pgtype.Date
		status   string
		started  pgtype.Timestamptz
		finished pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, `SELECT id, business_date, job_number, job_name, user_id, status, started_at,
       finished_at, records_processed, error_message
FROM eod_job_logs
WHERE job_number = $1
ORDER BY started_at DESC
LIMIT 1`, jobNumber).Scan(&log.ID, &date, &log.JobNumber, &log.JobName, &log.UserID, &status, &started,
		&finished, &log.RecordsProcessed, &log.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	log.BusinessDate = pgDateToTime(date)
	log.Status = domain.JobLogStatus(status)
	log.StartedAt = started.Time
	if finished.Valid {
		t := finished.Time
		log.FinishedAt = &t
	}
	return &log, nil
}

func finishedAt(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return timeToPgTimestamptz(*t)
}

// BusinessClock implements usecase.BusinessClock over the single-row
// business_calendar table.
type BusinessClock struct {
	db DBTX
}

// NewBusinessClock creates a new BusinessClock.
func NewBusinessClock(db DBTX) *BusinessClock {
	return &BusinessClock{db: db}
}

// Today returns the current business date.
func (c *BusinessClock) Today(ctx context.Context) (time.Time, error) {
	return c.scanDate(c.db.QueryRow(ctx, `SELECT business_date FROM business_calendar WHERE id = 1`))
}

// Advance moves the business date from from to the next calendar day. The
// update only matches while the stored date is still from, so two processes
// finishing job 9 together cannot skip a day.
func (c *BusinessClock) Advance(ctx context.Context, from time.Time) (time.Time, error) {
	next, err := c.scanDate(c.db.QueryRow(ctx, `UPDATE business_calendar
SET business_date = business_date + 1, updated_at = NOW()
WHERE id = 1 AND business_date = $1
RETURNING business_date`, timeToPgDate(from)))
	if errors.Is(err, domain.ErrBusinessDateMissing) {
		return time.Time{}, fmt.Errorf("%w: expected %s", domain.ErrBusinessDateMoved, domain.FormatDay(from))
	}
	return next, err
}

// Initialize sets the business date, creating the calendar row when needed.
func (c *BusinessClock) Initialize(ctx context.Context, date time.Time) error {
	_, err := c.db.Exec(ctx, `INSERT INTO business_calendar (id, business_date)
VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET business_date = EXCLUDED.business_date, updated_at = NOW()`, timeToPgDate(date))
	return err
}

func (c *BusinessClock) scanDate(row pgx.Row) (time.Time, error) {
	var date pgtype.Date
	if err := row.Scan(&date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrBusinessDateMissing
		}
		return time.Time{}, err
	}
	return pgDateToTime(date), nil
}
