package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

// MultiCurrencyUseCase settles FX deals against the weighted-average cost of
// the currency position. Buys move the WAE; sells realize gain or loss
// against it.
type MultiCurrencyUseCase struct {
	uow          *UnitOfWork
	locker       Locker
	wae          WAERepository
	transactions TransactionRepository
	settlements  SettlementRepository
	outbox       OutboxRepository
	idGen        IDGenerator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	settings     Settings
}

// NewMultiCurrencyUseCase creates a new MultiCurrencyUseCase. outbox may be nil.
func NewMultiCurrencyUseCase(
	uow *UnitOfWork,
	locker Locker,
	wae WAERepository,
	transactions TransactionRepository,
	settlements SettlementRepository,
	outbox OutboxRepository,
	idGen IDGenerator,
	settings Settings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *MultiCurrencyUseCase {
	return &MultiCurrencyUseCase{
		uow:          uow,
		locker:       locker,
		wae:          wae,
		transactions: transactions,
		settlements:  settlements,
		outbox:       outbox,
		idGen:        idGen,
		settings:     settings,
		metrics:      m,
		logger:       logger,
	}
}

// SettlementResult describes what a deal posted.
type SettlementResult struct {
	Record   *domain.SettlementRecord
	Lines    []*domain.Transaction
	WAE      *domain.WAEState
	WAERate  decimal.Decimal
	GainLoss decimal.Decimal
}

// Settle posts the position legs of a deal and updates or consumes the WAE.
// Deals on the same currency pair are serialised.
func (uc *MultiCurrencyUseCase) Settle(ctx context.Context, deal domain.FXDeal) (*SettlementResult, error) {
	if err := deal.Validate(uc.settings.LocalCurrency); err != nil {
		return nil, err
	}
	if uc.settings.PositionGL == "" || uc.settings.PositionLCYGL == "" {
		return nil, fmt.Errorf("%w: fx position gl", domain.ErrMissingGLConfig)
	}
	if deal.DealDate.IsZero() {
		deal.DealDate = time.Now().UTC()
	}
	deal.DealDate = domain.Day(deal.DealDate)

	pair := domain.CurrencyPair{Foreign: deal.Currency, Local: uc.settings.LocalCurrency}

	var result *SettlementResult
	err := uc.locker.WithLock(ctx, "wae:"+pair.String(), func(ctx context.Context) error {
		return uc.uow.Do(ctx, func(ctx context.Context, tx Transaction) error {
			var err error
			result, err = uc.settle(ctx, tx, deal, pair)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.SettlementPosted(deal.Currency, string(deal.Side))
	uc.logger.Info().
		Str("base_id", deal.BaseID).
		Str("pair", pair.String()).
		Str("side", string(deal.Side)).
		Str("wae_rate", result.WAERate.String()).
		Str("gain_loss", result.GainLoss.String()).
		Msg("fx deal settled")

	return result, nil
}

func (uc *MultiCurrencyUseCase) settle(ctx context.Context, tx Transaction, deal domain.FXDeal, pair domain.CurrencyPair) (*SettlementResult, error) {
	state, err := uc.wae.GetForUpdate(ctx, tx, pair)
	if errors.Is(err, domain.ErrWAEStateNotFound) {
		state = &domain.WAEState{Pair: pair}
	} else if err != nil {
		return nil, fmt.Errorf("load wae: %w", err)
	}

	result := &SettlementResult{WAE: state}

	switch deal.Side {
	case domain.DealBuy:
		lcy := deal.FCYAmount.Mul(deal.DealRate).Round(2)
		result.Lines = []*domain.Transaction{
			uc.fcyLine(deal, "P1", domain.Debit, deal.DealRate, lcy),
			uc.lcyLine(deal, "P2", uc.settings.PositionLCYGL, domain.Credit, lcy),
		}
		state.ApplyBuy(deal.FCYAmount, lcy)
		state.UpdatedAt = time.Now().UTC()
		if err := uc.wae.Save(ctx, tx, state); err != nil {
			return nil, fmt.Errorf("save wae: %w", err)
		}
		result.WAERate = state.Rate()

	case domain.DealSell:
		waeRate := state.Rate()
		if waeRate.IsZero() {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmptyPosition, pair)
		}
		result.WAERate = waeRate

		lcyAtWAE := deal.FCYAmount.Mul(waeRate).Round(2)
		result.Lines = []*domain.Transaction{
			uc.fcyLine(deal, "P1", domain.Credit, waeRate, lcyAtWAE),
			uc.lcyLine(deal, "P2", uc.settings.PositionLCYGL, domain.Debit, lcyAtWAE),
		}

		gainLoss := domain.SettlementGainLoss(deal.FCYAmount, deal.DealRate, waeRate)
		result.GainLoss = gainLoss
		if !gainLoss.IsZero() {
			record, lines, err := uc.realize(deal, waeRate, gainLoss)
			if err != nil {
				return nil, err
			}
			result.Lines = append(result.Lines, lines...)
			result.Record = record
		}
	}

	if err := domain.ValidateBalanced(result.Lines); err != nil {
		return nil, err
	}
	for _, line := range result.Lines {
		if err := uc.transactions.Create(ctx, tx, line); err != nil {
			return nil, fmt.Errorf("create transaction line: %w", err)
		}
	}

	if result.Record != nil {
		if err := uc.settlements.Create(ctx, tx, result.Record); err != nil {
			return nil, fmt.Errorf("save settlement: %w", err)
		}
		if uc.outbox != nil {
			if err := uc.outbox.Create(ctx, tx, uc.settlementEvent(result.Record)); err != nil {
				return nil, fmt.Errorf("write outbox event: %w", err)
			}
		}
	}

	return result, nil
}

// realize posts a gain (Dr position LCY, Cr realized gain) or a loss
// (Dr realized loss, Cr position LCY).
func (uc *MultiCurrencyUseCase) realize(deal domain.FXDeal, waeRate, gainLoss decimal.Decimal) (*domain.SettlementRecord, []*domain.Transaction, error) {
	amount := gainLoss.Abs()

	var glNum string
	var lines []*domain.Transaction
	if gainLoss.IsPositive() {
		glNum = uc.settings.RealizedGainGL
		lines = []*domain.Transaction{
			uc.lcyLine(deal, "G1", uc.settings.PositionLCYGL, domain.Debit, amount),
			uc.lcyLine(deal, "G2", glNum, domain.Credit, amount),
		}
	} else {
		glNum = uc.settings.RealizedLossGL
		lines = []*domain.Transaction{
			uc.lcyLine(deal, "G1", glNum, domain.Debit, amount),
			uc.lcyLine(deal, "G2", uc.settings.PositionLCYGL, domain.Credit, amount),
		}
	}
	if glNum == "" {
		return nil, nil, fmt.Errorf("%w: realized gain/loss gl", domain.ErrMissingGLConfig)
	}

	record := &domain.SettlementRecord{
		ID:         uc.idGen.Generate(),
		SettledAt:  time.Now().UTC(),
		DealDate:   deal.DealDate,
		BaseID:     deal.BaseID,
		AccountNo:  deal.AccountNo,
		Currency:   deal.Currency,
		GainLossGL: glNum,
		FCYAmount:  deal.FCYAmount,
		DealRate:   deal.DealRate,
		WAERate:    waeRate,
		GainLoss:   gainLoss,
	}
	return record, lines, nil
}

func (uc *MultiCurrencyUseCase) fcyLine(deal domain.FXDeal, suffix string, side domain.DrCr, rate, lcy decimal.Decimal) *domain.Transaction {
	return &domain.Transaction{
		ID:           deal.BaseID + "-" + suffix,
		BaseID:       deal.BaseID,
		TranDate:     deal.DealDate,
		ValueDate:    deal.DealDate,
		GLNum:        uc.settings.PositionGL,
		Currency:     deal.Currency,
		DrCr:         side,
		Status:       domain.TransactionStatusVerified,
		FCYAmount:    deal.FCYAmount,
		ExchangeRate: rate,
		LCYAmount:    lcy,
		Narration:    fmt.Sprintf("FX %s %s position", deal.Side, deal.Currency),
	}
}

func (uc *MultiCurrencyUseCase) lcyLine(deal domain.FXDeal, suffix, glNum string, side domain.DrCr, lcy decimal.Decimal) *domain.Transaction {
	return &domain.Transaction{
		ID:           deal.BaseID + "-" + suffix,
		BaseID:       deal.BaseID,
		TranDate:     deal.DealDate,
		ValueDate:    deal.DealDate,
		GLNum:        glNum,
		Currency:     uc.settings.LocalCurrency,
		DrCr:         side,
		Status:       domain.TransactionStatusVerified,
		FCYAmount:    lcy,
		ExchangeRate: decimal.NewFromInt(1),
		LCYAmount:    lcy,
		Narration:    fmt.Sprintf("FX %s %s position", deal.Side, deal.Currency),
	}
}

func (uc *MultiCurrencyUseCase) settlementEvent(r *domain.SettlementRecord) *domain.OutboxEvent {
	return domain.NewOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeSettlement, r.ID, domain.EventTypeSettlementPosted, map[string]any{
		"base_id":    r.BaseID,
		"account_no": r.AccountNo,
		"currency":   r.Currency,
		"fcy_amount": r.FCYAmount.String(),
		"deal_rate":  r.DealRate.String(),
		"wae_rate":   r.WAERate.String(),
		"gain_loss":  r.GainLoss.String(),
	}, r.SettledAt)
}
