package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
)

const (
	// QueueEOD is the queue the nightly cycle runs on.
	QueueEOD = "eod"
	// TaskEODCycle runs every pending job of the business date.
	TaskEODCycle = "eod:cycle"
)

// CyclePayload carries scheduling metadata.
type CyclePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	UserID       string    `json:"user_id"`
}

// NewCycleTask constructs an asynq task for the EOD cycle. The task is
// unique for ttl so overlapping cron ticks collapse into one run.
//
// ttl is also the wall-clock limit of the run. asynq applies its own 30
// minute limit to a task without one, so a zero ttl is not unbounded. A
// cycle cut off by the limit records the running job as failed and the next
// run resumes from it.
func NewCycleTask(payload CyclePayload, ttl time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueEOD), asynq.MaxRetry(3)}
	if ttl > 0 {
		opts = append(opts, asynq.Timeout(ttl), asynq.Unique(ttl))
	}
	return asynq.NewTask(TaskEODCycle, body, opts...), nil
}

// NewCycleCron registers the cycle on spec. The payload is fixed so that
// asynq's uniqueness check collapses ticks that overlap a running cycle.
func NewCycleCron(spec, userID string, ttl time.Duration) ([]CronRegistration, error) {
	if spec == "" {
		return nil, nil
	}
	task, err := NewCycleTask(CyclePayload{UserID: userID}, ttl)
	if err != nil {
		return nil, fmt.Errorf("build cycle task: %w", err)
	}
	return []CronRegistration{{Spec: spec, Task: task}}, nil
}

// CycleRunner executes the EOD cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, userID string) ([]domain.EODJobResult, error)
}

// CycleHandler processes TaskEODCycle tasks.
type CycleHandler struct {
	runner     CycleRunner
	systemUser string
	logger     zerolog.Logger
}

// NewCycleHandler creates a new CycleHandler.
func NewCycleHandler(runner CycleRunner, systemUser string, logger zerolog.Logger) *CycleHandler {
	return &CycleHandler{
		runner:     runner,
		systemUser: systemUser,
		logger:     logger,
	}
}

// Handle runs the cycle. A job that failed or is blocked needs an operator,
// so those outcomes are not retried; infrastructure errors are.
func (h *CycleHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CyclePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode cycle payload: %v: %w", err, asynq.SkipRetry)
	}
	userID := payload.UserID
	if userID == "" {
		userID = h.systemUser
	}

	results, err := h.runner.RunCycle(ctx, userID)
	if errors.Is(err, domain.ErrLockNotAcquired) {
		h.logger.Warn().Err(err).Msg("eod cycle already running elsewhere")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("run eod cycle: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	last := results[len(results)-1]
	event := h.logger.Info()
	if !last.Success && last.Outcome != domain.OutcomeAlreadyExecuted {
		event = h.logger.Error()
	}
	event.
		Time("scheduled_for", payload.ScheduledFor).
		Int("last_job", last.JobNumber).
		Str("outcome", string(last.Outcome)).
		Str("message", last.Message).
		Msg("eod cycle finished")

	switch last.Outcome {
	case domain.OutcomeFailed, domain.OutcomeBlocked:
		return fmt.Errorf("job %d %s: %s: %w", last.JobNumber, last.Outcome, last.Message, asynq.SkipRetry)
	}
	return nil
}
