package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/adapter/http/dto"
	"github.com/iho/eodledger/internal/adapter/http/middleware"
	"github.com/iho/eodledger/internal/domain"
)

// EODService is the orchestrator surface used by the HTTP API.
type EODService interface {
	ExecuteJob(ctx context.Context, n int, userID string) (domain.EODJobResult, error)
	RunCycle(ctx context.Context, userID string) ([]domain.EODJobResult, error)
	JobStatuses(ctx context.Context) ([]domain.JobStatus, error)
	BusinessDate(ctx context.Context) (time.Time, error)
}

// EODHandler handles EOD job requests.
type EODHandler struct {
	eod        EODService
	systemUser string
	logger     zerolog.Logger
}

// NewEODHandler creates a new EODHandler. systemUser is recorded when the
// caller cannot be identified.
func NewEODHandler(eod EODService, systemUser string, logger zerolog.Logger) *EODHandler {
	return &EODHandler{
		eod:        eod,
		systemUser: systemUser,
		logger:     logger,
	}
}

// ExecuteJob handles POST /eod/jobs/{n}/execute.
func (h *EODHandler) ExecuteJob(w http.ResponseWriter, r *http.Request) {
	n, ok := parseJobNumber(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job number", "job number must be between 1 and 9")
		return
	}

	userID := middleware.UserID(r, h.systemUser)
	result, err := h.eod.ExecuteJob(r.Context(), n, userID)
	if err != nil {
		h.logger.Error().Err(err).Int("job", n).Str("user_id", userID).Msg("execute job")
		writeError(w, mapDomainError(err), "failed to execute job", err.Error())
		return
	}

	writeJSON(w, statusForOutcome(result.Outcome), dto.JobResultFromDomain(result))
}

// RunCycle handles POST /eod/cycle.
func (h *EODHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r, h.systemUser)
	results, err := h.eod.RunCycle(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("run cycle")
		writeError(w, mapDomainError(err), "failed to run cycle", err.Error())
		return
	}

	resp := dto.CycleFromDomain(results)
	status := http.StatusOK
	if n := len(results); n > 0 && !resp.Completed {
		status = statusForOutcome(results[n-1].Outcome)
	}
	writeJSON(w, status, resp)
}

// Statuses handles GET /eod/jobs.
func (h *EODHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.eod.JobStatuses(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to read job statuses", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.JobStatusesFromDomain(statuses))
}

// BusinessDate handles GET /eod/business-date.
func (h *EODHandler) BusinessDate(w http.ResponseWriter, r *http.Request) {
	date, err := h.eod.BusinessDate(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to read business date", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BusinessDateResponse{BusinessDate: domain.FormatDay(date)})
}
