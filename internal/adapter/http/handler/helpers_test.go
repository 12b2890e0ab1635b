package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iho/eodledger/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"account not found", domain.ErrAccountNotFound, http.StatusNotFound},
		{"rate not found", fmt.Errorf("wrapped: %w", domain.ErrRateNotFound), http.StatusNotFound},
		{"invalid job", domain.ErrInvalidJobNumber, http.StatusBadRequest},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"lock held", fmt.Errorf("%w: eod:cycle", domain.ErrLockNotAcquired), http.StatusConflict},
		{"empty position", domain.ErrEmptyPosition, http.StatusConflict},
		{"date moved", fmt.Errorf("advance business date: %w", domain.ErrBusinessDateMoved), http.StatusConflict},
		{"gl routing", domain.ErrMissingGLConfig, http.StatusUnprocessableEntity},
		{"no business date", domain.ErrBusinessDateMissing, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestStatusForOutcome(t *testing.T) {
	tests := []struct {
		outcome  domain.JobOutcome
		expected int
	}{
		{domain.OutcomeSuccess, http.StatusOK},
		{domain.OutcomeAlreadyExecuted, http.StatusOK},
		{domain.OutcomeBlocked, http.StatusConflict},
		{domain.OutcomeFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusForOutcome(tt.outcome); got != tt.expected {
			t.Fatalf("%s: expected %d, got %d", tt.outcome, tt.expected, got)
		}
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		details string
		wantRaw string
	}{
		{"with details", "job 3 is not ready", `{"error":"failed to execute job","message":"job 3 is not ready"}`},
		{"without details", "", `{"error":"failed to execute job"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, http.StatusConflict, "failed to execute job", tt.details)

			if rr.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json, got %s", ct)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantRaw {
				t.Fatalf("expected %s, got %s", tt.wantRaw, got)
			}
		})
	}
}

func TestParseJobNumber(t *testing.T) {
	tests := []struct {
		param  string
		want   int
		wantOK bool
	}{
		{"1", 1, true},
		{"9", 9, true},
		{"0", 0, false},
		{"10", 0, false},
		{"three", 0, false},
	}

	for _, tt := range tests {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("n", tt.param)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/eod/jobs/"+tt.param+"/execute", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		got, ok := parseJobNumber(req)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("parseJobNumber(%q) = %d, %v; want %d, %v", tt.param, got, ok, tt.want, tt.wantOK)
		}
	}
}
