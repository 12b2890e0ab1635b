package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

type settlementServiceStub struct {
	settleFn func(ctx context.Context, deal domain.FXDeal) (*usecase.SettlementResult, error)
}

func (s *settlementServiceStub) Settle(ctx context.Context, deal domain.FXDeal) (*usecase.SettlementResult, error) {
	return s.settleFn(ctx, deal)
}

type capitalizationServiceStub struct {
	capitalizeFn func(ctx context.Context, accountNo string) (*usecase.CapitalizationResult, error)
}

func (s *capitalizationServiceStub) Capitalize(ctx context.Context, accountNo string) (*usecase.CapitalizationResult, error) {
	return s.capitalizeFn(ctx, accountNo)
}

func TestPostingHandler_SettleDeal(t *testing.T) {
	var captured domain.FXDeal
	h := NewPostingHandler(&settlementServiceStub{
		settleFn: func(ctx context.Context, deal domain.FXDeal) (*usecase.SettlementResult, error) {
			captured = deal
			return &usecase.SettlementResult{
				Record:   &domain.SettlementRecord{ID: "SET-1"},
				WAE:      &domain.WAEState{FCYBalance: decimal.NewFromInt(500), LCYBalance: decimal.NewFromInt(55000)},
				WAERate:  decimal.NewFromInt(110),
				GainLoss: decimal.NewFromInt(1000),
				Lines: []*domain.Transaction{
					{ID: "FX1-1", BaseID: "FX1", GLNum: "210900001", DrCr: domain.Debit, TranDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
				},
			}, nil
		},
	}, nil)

	body, _ := json.Marshal(dto.SettleDealRequest{
		BaseID:    "FX1",
		AccountNo: "100000003",
		Currency:  "USD",
		Side:      "SELL",
		FCYAmount: decimal.NewFromInt(500),
		DealRate:  decimal.NewFromInt(112),
		DealDate:  "2025-03-10",
	})
	rec := httptest.NewRecorder()
	h.SettleDeal(rec, httptest.NewRequest(http.MethodPost, "/fx/deals", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Side != domain.DealSell || !captured.DealRate.Equal(decimal.NewFromInt(112)) {
		t.Fatalf("deal not propagated: %+v", captured)
	}
	if !captured.DealDate.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected deal date 2025-03-10, got %v", captured.DealDate)
	}

	var resp dto.SettlementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SettlementID != "SET-1" || !resp.GainLoss.Equal(decimal.NewFromInt(1000)) || len(resp.Lines) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPostingHandler_SettleDealErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"malformed body", "{", nil, http.StatusBadRequest},
		{"bad deal date", `{"base_id":"FX1","deal_date":"10/03/2025"}`, nil, http.StatusBadRequest},
		{"invalid side", `{"base_id":"FX1","currency":"USD","side":"HOLD"}`, domain.ErrInvalidDealSide, http.StatusBadRequest},
		{"empty position", `{"base_id":"FX1","currency":"USD","side":"SELL"}`, domain.ErrEmptyPosition, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPostingHandler(&settlementServiceStub{
				settleFn: func(ctx context.Context, deal domain.FXDeal) (*usecase.SettlementResult, error) {
					return nil, tt.err
				},
			}, nil)

			rec := httptest.NewRecorder()
			h.SettleDeal(rec, httptest.NewRequest(http.MethodPost, "/fx/deals", bytes.NewBufferString(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestPostingHandler_Capitalize(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		result     *usecase.CapitalizationResult
		err        error
		wantStatus int
	}{
		{
			name: "posts entry",
			result: &usecase.CapitalizationResult{
				Date: date, AccountNo: "100000001", Amount: decimal.RequireFromString("12.34"),
				Entry: &domain.InterestAccrual{ID: "C20250310-100000001"},
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "nothing accrued",
			result:     &usecase.CapitalizationResult{Date: date, AccountNo: "100000001"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not interest bearing",
			err:        domain.ErrNotInterestBearing,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown account",
			err:        domain.ErrAccountNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAccount string
			h := NewPostingHandler(nil, &capitalizationServiceStub{
				capitalizeFn: func(ctx context.Context, accountNo string) (*usecase.CapitalizationResult, error) {
					gotAccount = accountNo
					return tt.result, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/accounts/100000001/capitalize", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("accountNo", "100000001")
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rec := httptest.NewRecorder()

			h.Capitalize(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if gotAccount != "100000001" {
				t.Fatalf("expected account 100000001, got %q", gotAccount)
			}
		})
	}
}
