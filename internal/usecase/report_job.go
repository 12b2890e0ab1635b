package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
)

// ReportJob hands the closed balances to a report generator (job 8).
type ReportJob struct {
	generator ReportGenerator
	logger    zerolog.Logger
}

// NewReportJob creates a new ReportJob.
func NewReportJob(generator ReportGenerator, logger zerolog.Logger) *ReportJob {
	return &ReportJob{generator: generator, logger: logger.With().Str("job", "reports").Logger()}
}

// Number implements Job.
func (j *ReportJob) Number() int { return domain.JobReports }

// Run implements Job.
func (j *ReportJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	n, err := j.generator.Generate(ctx, date)
	if err != nil {
		return JobReport{}, fmt.Errorf("generate reports: %w", err)
	}

	j.logger.Info().Str("date", domain.FormatDay(date)).Int("statements", n).Msg("reports generated")
	return JobReport{Processed: n, Message: fmt.Sprintf("%d account statements generated", n)}, nil
}

// SnapshotReportGenerator produces one statement per account snapshot of the
// day. Rendering is left to downstream consumers of the snapshots.
type SnapshotReportGenerator struct {
	balances AccountBalanceRepository
}

// NewSnapshotReportGenerator creates a new SnapshotReportGenerator.
func NewSnapshotReportGenerator(balances AccountBalanceRepository) *SnapshotReportGenerator {
	return &SnapshotReportGenerator{balances: balances}
}

// Generate implements ReportGenerator.
func (g *SnapshotReportGenerator) Generate(ctx context.Context, date time.Time) (int, error) {
	return g.balances.CountByDate(ctx, date)
}
