package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
)

// ResolveOpening computes the opening balance of entityID on date using the
// three-tier fallback: the closing of date-1, else the closing of the most
// recent earlier snapshot, else zero.
func ResolveOpening(ctx context.Context, reader SnapshotReader, entityID string, date time.Time) (domain.OpeningBalance, error) {
	date = domain.Day(date)
	prevDay := date.AddDate(0, 0, -1)

	prev, err := reader.Get(ctx, entityID, prevDay)
	if err == nil {
		return domain.OpeningBalance{
			SourceDate: prevDay,
			Amount:     prev.Closing,
			Tier:       domain.TierPreviousDay,
		}, nil
	}
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		return domain.OpeningBalance{}, err
	}

	last, err := reader.LatestBefore(ctx, entityID, date)
	if err == nil {
		return domain.OpeningBalance{
			SourceDate: domain.Day(last.Date),
			Amount:     last.Closing,
			Tier:       domain.TierLastAvailable,
			GapDays:    domain.DaysBetween(last.Date, date),
		}, nil
	}
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		return domain.OpeningBalance{}, err
	}

	return domain.OpeningBalance{Amount: decimal.Zero, Tier: domain.TierNewEntity}, nil
}

// BalanceResolver wraps ResolveOpening and logs gaps in the snapshot history.
type BalanceResolver struct {
	logger zerolog.Logger
}

// NewBalanceResolver creates a new BalanceResolver.
func NewBalanceResolver(logger zerolog.Logger) *BalanceResolver {
	return &BalanceResolver{logger: logger}
}

// Opening resolves the opening balance of entityID on date.
func (r *BalanceResolver) Opening(ctx context.Context, reader SnapshotReader, entityID string, date time.Time) (domain.OpeningBalance, error) {
	opening, err := ResolveOpening(ctx, reader, entityID, date)
	if err != nil {
		return opening, err
	}

	if opening.Tier == domain.TierLastAvailable {
		r.logger.Warn().
			Str("entity", entityID).
			Str("date", domain.FormatDay(date)).
			Str("source_date", domain.FormatDay(opening.SourceDate)).
			Int("days_since_last_record", opening.GapDays).
			Msg("opening balance taken across a gap")
	}

	return opening, nil
}

// Closing returns the closing balance of entityID as of date: the snapshot of
// date itself when present, else the latest earlier one, else zero.
func (r *BalanceResolver) Closing(ctx context.Context, reader SnapshotReader, entityID string, date time.Time) (decimal.Decimal, error) {
	opening, err := r.Opening(ctx, reader, entityID, domain.Day(date).AddDate(0, 0, 1))
	if err != nil {
		return decimal.Zero, err
	}
	return opening.Amount, nil
}
