package domain

import "time"

// Job numbers of the EOD cycle.
const (
	JobAccountBalance    = 1
	JobInterestAccrual   = 2
	JobAccrualGLMovement = 3
	JobGLMovement        = 4
	JobGLBalance         = 5
	JobAccrualBalance    = 6
	JobFXRevaluation     = 7
	JobReports           = 8
	JobDateIncrement     = 9

	FirstJob = JobAccountBalance
	LastJob  = JobDateIncrement
)

var jobNames = map[int]string{
	JobAccountBalance:    "Account Balance Update",
	JobInterestAccrual:   "Interest Accrual Transaction Update",
	JobAccrualGLMovement: "Interest Accrual GL Movement Update",
	JobGLMovement:        "GL Movement Update",
	JobGLBalance:         "GL Balance Update",
	JobAccrualBalance:    "Interest Accrual Account Balance Update",
	JobFXRevaluation:     "MCT Revaluation",
	JobReports:           "Financial Reports",
	JobDateIncrement:     "System Date Increment",
}

// JobName returns the display name of a job number.
func JobName(n int) string {
	if name, ok := jobNames[n]; ok {
		return name
	}
	return "Unknown Job"
}

// ValidJobNumber reports whether n is part of the cycle.
func ValidJobNumber(n int) bool {
	return n >= FirstJob && n <= LastJob
}

// JobLogStatus is the persisted outcome of one job attempt.
type JobLogStatus string

const (
	JobLogRunning JobLogStatus = "Running"
	JobLogSuccess JobLogStatus = "Success"
	JobLogFailed  JobLogStatus = "Failed"
)

// JobExecutionLog is one row per (business date, job, attempt).
type JobExecutionLog struct {
	BusinessDate     time.Time
	StartedAt        time.Time
	FinishedAt       *time.Time
	ID               string
	JobName          string
	UserID           string
	ErrorMessage     string
	Status           JobLogStatus
	JobNumber        int
	RecordsProcessed int
}

// JobState is the derived state of a job for the current business date.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// DeriveJobState maps the latest log of a job onto its state for today.
// A log from an earlier business date means the job is pending again.
func DeriveJobState(latest *JobExecutionLog, today time.Time) JobState {
	if latest == nil || Day(latest.BusinessDate).Before(Day(today)) {
		return JobStatePending
	}
	switch latest.Status {
	case JobLogRunning:
		return JobStateRunning
	case JobLogSuccess:
		return JobStateCompleted
	case JobLogFailed:
		return JobStateFailed
	default:
		return JobStatePending
	}
}

// JobOutcome classifies the result of an execute request.
type JobOutcome string

const (
	OutcomeSuccess         JobOutcome = "success"
	OutcomeFailed          JobOutcome = "failed"
	OutcomeAlreadyExecuted JobOutcome = "already_executed"
	OutcomeBlocked         JobOutcome = "blocked"
)

// EODJobResult is returned by the orchestrator for every execute request.
type EODJobResult struct {
	Outcome          JobOutcome
	Message          string
	JobNumber        int
	RecordsProcessed int
	Success          bool
}

// JobStatus is the dashboard view of one job.
type JobStatus struct {
	LastRun          *time.Time
	Name             string
	Error            string
	State            JobState
	JobNumber        int
	RecordsProcessed int
	CanExecute       bool
}
