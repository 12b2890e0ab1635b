package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes dto.ErrorResponse. details is omitted when empty.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Message: details})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRateNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidJobNumber),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidDealSide),
		errors.Is(err, domain.ErrMissingTransactionID),
		errors.Is(err, domain.ErrInvalidGLNumber),
		errors.Is(err, domain.ErrNotInterestBearing):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLockNotAcquired),
		errors.Is(err, domain.ErrEmptyPosition),
		errors.Is(err, domain.ErrPreviousJobsIncomplete),
		errors.Is(err, domain.ErrBusinessDateMoved):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMissingGLConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBusinessDateMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusForOutcome maps a job outcome to the response status.
func statusForOutcome(outcome domain.JobOutcome) int {
	switch outcome {
	case domain.OutcomeSuccess, domain.OutcomeAlreadyExecuted:
		return http.StatusOK
	case domain.OutcomeBlocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// parseJobNumber reads the {n} route parameter.
func parseJobNumber(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || !domain.ValidJobNumber(n) {
		return 0, false
	}
	return n, true
}
