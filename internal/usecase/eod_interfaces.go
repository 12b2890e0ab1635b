package usecase

import (
	"context"
	"time"

	"github.com/iho/eodledger/internal/domain"
)

// JobLogRepository is the append-only execution log. Every call runs in its
// own database transaction so a crashed job still leaves its record behind.
type JobLogRepository interface {
	Create(ctx context.Context, log *domain.JobExecutionLog) error
	Update(ctx context.Context, log *domain.JobExecutionLog) error
	// Latest returns the most recent attempt of a job, or nil when it never ran.
	Latest(ctx context.Context, jobNumber int) (*domain.JobExecutionLog, error)
}

// BusinessClock owns the business date. Advance is the only mutation and is
// performed by the date increment job. It moves the date from the given day
// to the next and returns domain.ErrBusinessDateMoved when the stored date
// is no longer from.
type BusinessClock interface {
	Today(ctx context.Context) (time.Time, error)
	Advance(ctx context.Context, from time.Time) (time.Time, error)
}

// Locker serialises critical sections by key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// OutboxRepository defines data access for outbox events. A nil tx writes
// the event on its own.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// ReportGenerator renders end-of-day statements from closing balances.
type ReportGenerator interface {
	Generate(ctx context.Context, date time.Time) (int, error)
}

// Job is one step of the EOD cycle operating on an explicit business date.
type Job interface {
	Number() int
	Run(ctx context.Context, date time.Time) (JobReport, error)
}

// JobReport summarises one job run.
type JobReport struct {
	Message   string
	Processed int
	Failed    int
}
