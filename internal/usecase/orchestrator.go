package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

// Orchestrator executes the nine EOD jobs in order, at most once per business
// date each, and at most one at a time.
type Orchestrator struct {
	mu      sync.Mutex
	jobs    map[int]Job
	logs    JobLogRepository
	clock   BusinessClock
	locker  Locker
	outbox  OutboxRepository
	idGen   IDGenerator
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLocker serialises job execution across processes.
func WithLocker(l Locker) OrchestratorOption {
	return func(o *Orchestrator) { o.locker = l }
}

// WithOutbox emits job and business date events.
func WithOutbox(r OutboxRepository) OrchestratorOption {
	return func(o *Orchestrator) { o.outbox = r }
}

// WithNow overrides the wall clock used for log timestamps.
func WithNow(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates a new Orchestrator. jobs holds jobs 1 to 8; the
// date increment job is built in.
func NewOrchestrator(
	jobs []Job,
	logs JobLogRepository,
	clock BusinessClock,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		jobs:    make(map[int]Job, len(jobs)+1),
		logs:    logs,
		clock:   clock,
		idGen:   idGen,
		metrics: m,
		logger:  logger.With().Str("component", "eod").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, j := range jobs {
		o.jobs[j.Number()] = j
	}
	o.jobs[domain.JobDateIncrement] = &dateIncrementJob{o: o}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteJob runs job n for the current business date on behalf of userID.
// Job failures are reported in the result; the error is reserved for invalid
// input and infrastructure failures.
func (o *Orchestrator) ExecuteJob(ctx context.Context, n int, userID string) (domain.EODJobResult, error) {
	if !domain.ValidJobNumber(n) {
		return domain.EODJobResult{}, fmt.Errorf("%w: %d", domain.ErrInvalidJobNumber, n)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.locker == nil {
		return o.execute(ctx, n, userID)
	}

	var result domain.EODJobResult
	err := o.locker.WithLock(ctx, CycleLockKey, func(ctx context.Context) error {
		var err error
		result, err = o.execute(ctx, n, userID)
		return err
	})
	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, n int, userID string) (domain.EODJobResult, error) {
	name := domain.JobName(n)

	today, err := o.clock.Today(ctx)
	if err != nil {
		return domain.EODJobResult{}, fmt.Errorf("read business date: %w", err)
	}

	latest, err := o.logs.Latest(ctx, n)
	if err != nil {
		return domain.EODJobResult{}, fmt.Errorf("read job log: %w", err)
	}
	if domain.DeriveJobState(latest, today) == domain.JobStateCompleted {
		return domain.EODJobResult{
			JobNumber: n,
			Outcome:   domain.OutcomeAlreadyExecuted,
			Message:   fmt.Sprintf("Job %d (%s) already executed for %s", n, name, domain.FormatDay(today)),
		}, nil
	}

	if n > domain.FirstJob {
		prev, err := o.logs.Latest(ctx, n-1)
		if err != nil {
			return domain.EODJobResult{}, fmt.Errorf("read job log: %w", err)
		}
		if domain.DeriveJobState(prev, today) != domain.JobStateCompleted {
			return domain.EODJobResult{
				JobNumber: n,
				Outcome:   domain.OutcomeBlocked,
				Message:   fmt.Sprintf("Job %d (%s) must complete before job %d", n-1, domain.JobName(n-1), n),
			}, nil
		}
	}

	job, ok := o.jobs[n]
	if !ok {
		return domain.EODJobResult{}, fmt.Errorf("%w: job %d is not registered", domain.ErrInvalidJobNumber, n)
	}

	// log writes must survive cancellation of the caller
	logCtx := context.WithoutCancel(ctx)

	entry := &domain.JobExecutionLog{
		ID:           o.idGen.Generate(),
		BusinessDate: today,
		JobNumber:    n,
		JobName:      name,
		UserID:       userID,
		Status:       domain.JobLogRunning,
		StartedAt:    o.now(),
	}
	if err := o.logs.Create(logCtx, entry); err != nil {
		return domain.EODJobResult{}, fmt.Errorf("record job start: %w", err)
	}

	o.logger.Info().Int("job_number", n).Str("job_name", name).Str("user", userID).
		Str("business_date", domain.FormatDay(today)).Msg("job started")

	tracker := o.metrics.Track(fmt.Sprintf("job_%d", n))
	report, runErr := o.run(ctx, job, today)
	_ = tracker.End(runErr)

	finished := o.now()
	entry.FinishedAt = &finished
	entry.RecordsProcessed = report.Processed

	if runErr != nil {
		entry.Status = domain.JobLogFailed
		entry.ErrorMessage = runErr.Error()
		if err := o.logs.Update(logCtx, entry); err != nil {
			o.logger.Error().Err(err).Int("job_number", n).Msg("failed to record job failure")
		}
		o.emitJobEvent(logCtx, entry)

		o.logger.Error().Err(runErr).Int("job_number", n).Str("job_name", name).Msg("job failed")
		return domain.EODJobResult{
			JobNumber:        n,
			Outcome:          domain.OutcomeFailed,
			Message:          runErr.Error(),
			RecordsProcessed: report.Processed,
		}, nil
	}

	entry.Status = domain.JobLogSuccess
	if err := o.logs.Update(logCtx, entry); err != nil {
		return domain.EODJobResult{}, fmt.Errorf("record job success: %w", err)
	}
	o.emitJobEvent(logCtx, entry)

	message := report.Message
	if message == "" {
		message = fmt.Sprintf("Job %d (%s) completed", n, name)
	}

	o.logger.Info().Int("job_number", n).Str("job_name", name).Int("records", report.Processed).
		Dur("elapsed", finished.Sub(entry.StartedAt)).Msg("job completed")

	return domain.EODJobResult{
		JobNumber:        n,
		Outcome:          domain.OutcomeSuccess,
		Message:          message,
		RecordsProcessed: report.Processed,
		Success:          true,
	}, nil
}

// run executes a job and turns a panic into a job failure.
func (o *Orchestrator) run(ctx context.Context, job Job, date time.Time) (report JobReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Int("job_number", job.Number()).Msg("job panicked")
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return job.Run(ctx, date)
}

// RunCycle executes every job that is still pending for the business date in
// order. It stops at the first failed or blocked job.
func (o *Orchestrator) RunCycle(ctx context.Context, userID string) ([]domain.EODJobResult, error) {
	results := make([]domain.EODJobResult, 0, domain.LastJob)
	for n := domain.FirstJob; n <= domain.LastJob; n++ {
		result, err := o.ExecuteJob(ctx, n, userID)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if result.Outcome == domain.OutcomeFailed || result.Outcome == domain.OutcomeBlocked {
			break
		}
	}
	return results, nil
}

// JobStatuses returns the dashboard view of all nine jobs.
func (o *Orchestrator) JobStatuses(ctx context.Context) ([]domain.JobStatus, error) {
	today, err := o.clock.Today(ctx)
	if err != nil {
		return nil, fmt.Errorf("read business date: %w", err)
	}

	statuses := make([]domain.JobStatus, 0, domain.LastJob)
	prevState := domain.JobStateCompleted
	for n := domain.FirstJob; n <= domain.LastJob; n++ {
		latest, err := o.logs.Latest(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("read job log: %w", err)
		}
		state := domain.DeriveJobState(latest, today)

		status := domain.JobStatus{
			JobNumber:  n,
			Name:       domain.JobName(n),
			State:      state,
			CanExecute: state != domain.JobStateCompleted && prevState == domain.JobStateCompleted,
		}
		if latest != nil && state != domain.JobStatePending {
			started := latest.StartedAt
			status.LastRun = &started
			status.RecordsProcessed = latest.RecordsProcessed
			status.Error = latest.ErrorMessage
		}

		statuses = append(statuses, status)
		prevState = state
	}
	return statuses, nil
}

// BusinessDate returns the current business date.
func (o *Orchestrator) BusinessDate(ctx context.Context) (time.Time, error) {
	return o.clock.Today(ctx)
}

func (o *Orchestrator) emitJobEvent(ctx context.Context, entry *domain.JobExecutionLog) {
	eventType := domain.EventTypeJobCompleted
	if entry.Status == domain.JobLogFailed {
		eventType = domain.EventTypeJobFailed
	}

	o.emit(ctx, entry.ID, domain.AggregateTypeJob, eventType, map[string]any{
		"job_number":        entry.JobNumber,
		"job_name":          entry.JobName,
		"business_date":     domain.FormatDay(entry.BusinessDate),
		"status":            string(entry.Status),
		"records_processed": entry.RecordsProcessed,
		"error":             entry.ErrorMessage,
	})
}

func (o *Orchestrator) emit(ctx context.Context, aggregateID, aggregateType, eventType string, payload map[string]any) {
	if o.outbox == nil {
		return
	}

	event := domain.NewOutboxEvent(o.idGen.Generate(), aggregateType, aggregateID, eventType, payload, o.now())
	if err := o.outbox.Create(ctx, nil, event); err != nil {
		o.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to write outbox event")
	}
}

// dateIncrementJob is job 9. It advances the business date once jobs 1 to 8
// have all completed for the current date.
type dateIncrementJob struct {
	o *Orchestrator
}

func (j *dateIncrementJob) Number() int { return domain.JobDateIncrement }

func (j *dateIncrementJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	for n := domain.FirstJob; n < domain.JobDateIncrement; n++ {
		latest, err := j.o.logs.Latest(ctx, n)
		if err != nil {
			return JobReport{}, fmt.Errorf("read job log: %w", err)
		}
		if domain.DeriveJobState(latest, date) != domain.JobStateCompleted {
			return JobReport{}, fmt.Errorf("%w: job %d (%s)", domain.ErrPreviousJobsIncomplete, n, domain.JobName(n))
		}
	}

	next, err := j.o.clock.Advance(ctx, date)
	if err != nil {
		return JobReport{}, fmt.Errorf("advance business date: %w", err)
	}
	if !next.After(date) {
		return JobReport{}, errors.New("business date did not move forward")
	}

	j.o.metrics.SetBusinessDate(next)
	j.o.emit(context.WithoutCancel(ctx), domain.FormatDay(next), domain.AggregateTypeCycle, domain.EventTypeBusinessDateAdvanced, map[string]any{
		"previous_date": domain.FormatDay(date),
		"new_date":      domain.FormatDay(next),
	})

	return JobReport{
		Processed: 1,
		Message:   fmt.Sprintf("Business date advanced from %s to %s", domain.FormatDay(date), domain.FormatDay(next)),
	}, nil
}
