package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

// SettlementService settles FX deals.
type SettlementService interface {
	Settle(ctx context.Context, deal domain.FXDeal) (*usecase.SettlementResult, error)
}

// CapitalizationService capitalizes accrued interest.
type CapitalizationService interface {
	Capitalize(ctx context.Context, accountNo string) (*usecase.CapitalizationResult, error)
}

// PostingHandler handles the intraday postings that feed the EOD cycle.
type PostingHandler struct {
	settlements     SettlementService
	capitalizations CapitalizationService
}

// NewPostingHandler creates a new PostingHandler.
func NewPostingHandler(settlements SettlementService, capitalizations CapitalizationService) *PostingHandler {
	return &PostingHandler{
		settlements:     settlements,
		capitalizations: capitalizations,
	}
}

// SettleDeal handles POST /fx/deals.
func (h *PostingHandler) SettleDeal(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	deal, err := req.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deal date", err.Error())
		return
	}

	result, err := h.settlements.Settle(r.Context(), deal)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to settle deal", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.SettlementFromResult(deal, result))
}

// Capitalize handles POST /accounts/{accountNo}/capitalize.
func (h *PostingHandler) Capitalize(w http.ResponseWriter, r *http.Request) {
	accountNo := chi.URLParam(r, "accountNo")
	if accountNo == "" {
		writeError(w, http.StatusBadRequest, "account number is required", "")
		return
	}

	result, err := h.capitalizations.Capitalize(r.Context(), accountNo)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to capitalize interest", err.Error())
		return
	}

	status := http.StatusCreated
	if result.Entry == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.CapitalizationFromResult(result))
}
