package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

// BooksChecker verifies that GL closing balances sum to zero.
type BooksChecker interface {
	CheckBooks(ctx context.Context, date time.Time) (*usecase.BooksCheck, error)
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	books BooksChecker
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(books BooksChecker) *LedgerHandler {
	return &LedgerHandler{books: books}
}

// CheckBooks handles GET /eod/books?date=YYYY-MM-DD.
func (h *LedgerHandler) CheckBooks(w http.ResponseWriter, r *http.Request) {
	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := domain.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err.Error())
			return
		}
		date = d
	}

	check, err := h.books.CheckBooks(r.Context(), date)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to check books", err.Error())
		return
	}

	status := http.StatusOK
	if !check.Balanced {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.BooksFromDomain(check))
}
