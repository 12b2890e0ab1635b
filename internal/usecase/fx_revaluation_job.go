package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

const fxRevaluationLabel = "fx_revaluation"

// FXRevaluationJob marks every foreign-currency position to market (job 7).
// It first reverses the previous revaluations, then books the difference
// between today's MTM and the previously booked value, and finally refreshes
// the GL snapshots it touched.
type FXRevaluationJob struct {
	uow          *UnitOfWork
	master       AccountMasterRepository
	balances     AccountBalanceRepository
	revaluations RevaluationRepository
	movements    GLMovementRepository
	rates        *RateResolver
	resolver     *BalanceResolver
	glBalances   *GLBalanceJob
	idGen        IDGenerator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	settings     Settings
}

// NewFXRevaluationJob creates a new FXRevaluationJob.
func NewFXRevaluationJob(
	uow *UnitOfWork,
	master AccountMasterRepository,
	balances AccountBalanceRepository,
	revaluations RevaluationRepository,
	movements GLMovementRepository,
	rates *RateResolver,
	resolver *BalanceResolver,
	glBalances *GLBalanceJob,
	idGen IDGenerator,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *FXRevaluationJob {
	return &FXRevaluationJob{
		uow:          uow,
		master:       master,
		balances:     balances,
		revaluations: revaluations,
		movements:    movements,
		rates:        rates,
		resolver:     resolver,
		glBalances:   glBalances,
		idGen:        idGen,
		settings:     settings,
		metrics:      m,
		logger:       logger.With().Str("job", fxRevaluationLabel).Logger(),
	}
}

// Number implements Job.
func (j *FXRevaluationJob) Number() int { return domain.JobFXRevaluation }

// glSet collects touched GLs from concurrent workers.
type glSet struct {
	mu  sync.Mutex
	gls map[string]struct{}
}

func (s *glSet) add(movements []*domain.GLMovement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range movements {
		s.gls[m.GLNum] = struct{}{}
	}
}

func (s *glSet) addGLs(glNums []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, gl := range glNums {
		s.gls[gl] = struct{}{}
	}
}

func (s *glSet) sorted() []string {
	out := make([]string, 0, len(s.gls))
	for gl := range s.gls {
		out = append(out, gl)
	}
	sort.Strings(out)
	return out
}

// Run implements Job.
func (j *FXRevaluationJob) Run(ctx context.Context, date time.Time) (JobReport, error) {
	if j.settings.UnrealizedGainGL == "" || j.settings.UnrealizedLossGL == "" {
		return JobReport{}, fmt.Errorf("%w: unrealized gain/loss gl", domain.ErrMissingGLConfig)
	}

	touched := &glSet{gls: make(map[string]struct{})}

	reversed, err := j.ReversePrevious(ctx, date, touched)
	if err != nil {
		return JobReport{}, err
	}

	accounts, err := j.master.ListForeignCurrencyAccounts(ctx, j.settings.LocalCurrency)
	if err != nil {
		return JobReport{}, fmt.Errorf("list foreign currency accounts: %w", err)
	}

	byNo := make(map[string]*domain.AccountInfo, len(accounts))
	keys := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		byNo[acc.AccountNo] = acc
		keys = append(keys, acc.AccountNo)
	}
	sort.Strings(keys)

	result, err := runBatch(ctx, j.settings.workers(), keys, func(ctx context.Context, accountNo string) error {
		legs, err := j.Revalue(ctx, byNo[accountNo], date)
		j.metrics.EntityResult(fxRevaluationLabel, err == nil)
		if err == nil {
			touched.add(legs)
		}
		return err
	})
	if err != nil {
		return JobReport{}, err
	}

	for _, f := range result.Failures {
		j.logger.Error().Err(f.Err).Str("account", f.Key).Msg("revaluation failed")
	}

	report := JobReport{Processed: result.Succeeded, Failed: len(result.Failures)}
	if result.AllFailed() {
		return report, fmt.Errorf("%w: %d positions failed", domain.ErrNoEntitySucceeded, len(result.Failures))
	}

	// A rerun after a failed GL refresh skips every account that already has
	// a record, so the stored legs of the date are refreshed as well.
	booked, err := j.revaluations.ListGLNumsBookedOn(ctx, date)
	if err != nil {
		return report, fmt.Errorf("list revaluation gls: %w", err)
	}
	touched.addGLs(booked)

	if gls := touched.sorted(); len(gls) > 0 {
		recomputed, err := j.glBalances.RecomputeGLs(ctx, date, gls)
		if err != nil {
			return report, err
		}
		if len(recomputed.Failures) > 0 {
			return report, fmt.Errorf("refresh gl balances: %d of %d gls failed", len(recomputed.Failures), recomputed.Total)
		}
	}

	report.Message = fmt.Sprintf("%d positions revalued, %d reversed, %d failed", report.Processed, reversed, report.Failed)
	return report, nil
}

// ReversePrevious flips every leg of each Posted revaluation dated before
// date and marks the record Reversed.
func (j *FXRevaluationJob) ReversePrevious(ctx context.Context, date time.Time, touched *glSet) (int, error) {
	records, err := j.revaluations.ListPostedBefore(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("list posted revaluations: %w", err)
	}

	for _, rec := range records {
		reversal := make([]*domain.GLMovement, 0, len(rec.Legs))
		for _, leg := range rec.Legs {
			reversal = append(reversal, &domain.GLMovement{
				ID:           leg.ID + "-R",
				SourceID:     leg.SourceID,
				Reference:    rec.ID,
				Stream:       domain.StreamTransaction,
				GLNum:        leg.GLNum,
				Currency:     leg.Currency,
				DrCr:         leg.DrCr.Flip(),
				FCYAmount:    leg.FCYAmount,
				ExchangeRate: leg.ExchangeRate,
				LCYAmount:    leg.LCYAmount,
				TranDate:     domain.Day(date),
				ValueDate:    domain.Day(date),
				Narration:    "BOD reversal of " + rec.ID,
			})
		}

		err := j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
			for _, m := range reversal {
				if _, err := j.movements.Create(ctx, tx, m); err != nil {
					return err
				}
			}
			return j.revaluations.MarkReversed(ctx, tx, rec.ID)
		})
		if err != nil {
			return 0, fmt.Errorf("reverse revaluation %s: %w", rec.ID, err)
		}
		touched.add(reversal)
	}

	return len(records), nil
}

// Revalue books today's mark-to-market difference of one account and
// returns the legs written. A second run on the same date writes nothing;
// Run still refreshes the GLs of the legs stored by the first.
func (j *FXRevaluationJob) Revalue(ctx context.Context, acc *domain.AccountInfo, date time.Time) ([]*domain.GLMovement, error) {
	exists, err := j.revaluations.Exists(ctx, acc.AccountNo, date)
	if err != nil {
		return nil, fmt.Errorf("check revaluation: %w", err)
	}
	if exists {
		return nil, nil
	}

	balance, err := j.resolver.Closing(ctx, j.balances, acc.AccountNo, date)
	if err != nil {
		return nil, fmt.Errorf("closing balance: %w", err)
	}
	if balance.IsZero() {
		return nil, nil
	}

	mid, err := j.rates.ExchangeRate(ctx, acc.Currency, date)
	if err != nil {
		return nil, err
	}

	mtm := domain.MarkToMarket(balance, mid)
	booked := mtm

	prev, err := j.revaluations.LatestBefore(ctx, acc.AccountNo, date)
	if err != nil {
		return nil, fmt.Errorf("previous revaluation: %w", err)
	}
	if prev != nil {
		booked = prev.MTMLCY
	}

	record := &domain.RevaluationRecord{
		ID:         j.idGen.Generate(),
		RevalDate:  domain.Day(date),
		CreatedAt:  time.Now().UTC(),
		EntityID:   acc.AccountNo,
		GLNum:      acc.GLNum,
		Currency:   acc.Currency,
		Status:     domain.RevaluationPosted,
		FCYBalance: balance,
		MidRate:    mid,
		BookedLCY:  booked,
		MTMLCY:     mtm,
		Difference: mtm.Sub(booked),
	}
	record.Legs = j.legs(record, acc)

	err = j.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
		if err := j.revaluations.Create(ctx, tx, record); err != nil {
			return err
		}
		for _, m := range record.Legs {
			if _, err := j.movements.Create(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save revaluation: %w", err)
	}

	j.metrics.RevaluationPosted(acc.Currency)
	return record.Legs, nil
}

func (j *FXRevaluationJob) legs(record *domain.RevaluationRecord, acc *domain.AccountInfo) []*domain.GLMovement {
	if record.Difference.IsZero() {
		return nil
	}

	positionSide, gain := domain.RevaluationSides(acc.GLRoot(), record.Difference)
	counterGL := j.settings.UnrealizedLossGL
	if gain {
		counterGL = j.settings.UnrealizedGainGL
	}
	amount := record.Difference.Abs()

	leg := func(n int, glNum string, side domain.DrCr) *domain.GLMovement {
		return &domain.GLMovement{
			ID:        fmt.Sprintf("%s-%d", record.ID, n),
			SourceID:  acc.AccountNo,
			Reference: record.ID,
			Stream:    domain.StreamTransaction,
			GLNum:     glNum,
			Currency:  j.settings.LocalCurrency,
			DrCr:      side,
			FCYAmount: amount,
			LCYAmount: amount,
			TranDate:  record.RevalDate,
			ValueDate: record.RevalDate,
			Narration: "MCT revaluation " + acc.Currency,
		}
	}

	return []*domain.GLMovement{
		leg(1, acc.GLNum, positionSide),
		leg(2, counterGL, positionSide.Flip()),
	}
}
