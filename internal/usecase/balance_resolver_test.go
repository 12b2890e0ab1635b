package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
	"github.com/iho/eodledger/internal/usecase/mocks"
)

func TestResolveOpening(t *testing.T) {
	tests := []struct {
		name       string
		seed       []*domain.BalanceSnapshot
		wantTier   domain.ResolutionTier
		wantAmount string
		wantGap    int
	}{
		{
			name: "previous day snapshot",
			seed: []*domain.BalanceSnapshot{
				{EntityID: "A1", Date: bizDate.AddDate(0, 0, -1), Closing: dec("250.50")},
				{EntityID: "A1", Date: bizDate.AddDate(0, 0, -5), Closing: dec("10")},
			},
			wantTier:   domain.TierPreviousDay,
			wantAmount: "250.5",
		},
		{
			name: "gap falls back to last available",
			seed: []*domain.BalanceSnapshot{
				{EntityID: "A1", Date: bizDate.AddDate(0, 0, -4), Closing: dec("99")},
				{EntityID: "A1", Date: bizDate.AddDate(0, 0, -9), Closing: dec("10")},
			},
			wantTier:   domain.TierLastAvailable,
			wantAmount: "99",
			wantGap:    4,
		},
		{
			name: "future snapshots are ignored",
			seed: []*domain.BalanceSnapshot{
				{EntityID: "A1", Date: bizDate.AddDate(0, 0, 1), Closing: dec("99")},
			},
			wantTier:   domain.TierNewEntity,
			wantAmount: "0",
		},
		{
			name:       "new entity",
			wantTier:   domain.TierNewEntity,
			wantAmount: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockAccountBalanceRepository()
			for _, s := range tt.seed {
				store.Seed(s)
			}

			got, err := usecase.ResolveOpening(context.Background(), store, "A1", bizDate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("tier = %v, want %v", got.Tier, tt.wantTier)
			}
			if !got.Amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", got.Amount, tt.wantAmount)
			}
			if got.GapDays != tt.wantGap {
				t.Errorf("gap = %d, want %d", got.GapDays, tt.wantGap)
			}
		})
	}
}

type failingReader struct{ err error }

func (r failingReader) Get(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	return nil, r.err
}

func (r failingReader) LatestBefore(ctx context.Context, entityID string, date time.Time) (*domain.BalanceSnapshot, error) {
	return nil, r.err
}

func TestResolveOpening_PropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")

	_, err := usecase.ResolveOpening(context.Background(), failingReader{err: boom}, "A1", bizDate)
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestBalanceResolver_Closing(t *testing.T) {
	store := mocks.NewMockAccountBalanceRepository()
	store.Seed(&domain.BalanceSnapshot{EntityID: "A1", Date: bizDate.AddDate(0, 0, -2), Closing: dec("40")})

	resolver := usecase.NewBalanceResolver(zerolog.Nop())

	got, err := resolver.Closing(context.Background(), store, "A1", bizDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("40")) {
		t.Errorf("closing without today's snapshot = %s, want 40", got)
	}

	store.Seed(&domain.BalanceSnapshot{EntityID: "A1", Date: bizDate, Closing: dec("75")})

	got, err = resolver.Closing(context.Background(), store, "A1", bizDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("75")) {
		t.Errorf("closing with today's snapshot = %s, want 75", got)
	}
}
