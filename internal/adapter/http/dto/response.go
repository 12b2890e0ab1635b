package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/usecase"
)

// JobResultResponse represents the outcome of an execute request.
type JobResultResponse struct {
	JobNumber        int    `json:"job_number"`
	JobName          string `json:"job_name"`
	Success          bool   `json:"success"`
	Outcome          string `json:"outcome"`
	Message          string `json:"message"`
	RecordsProcessed int    `json:"records_processed"`
}

// JobResultFromDomain converts an orchestrator result to a response.
func JobResultFromDomain(r domain.EODJobResult) *JobResultResponse {
	return &JobResultResponse{
		JobNumber:        r.JobNumber,
		JobName:          domain.JobName(r.JobNumber),
		Success:          r.Success,
		Outcome:          string(r.Outcome),
		Message:          r.Message,
		RecordsProcessed: r.RecordsProcessed,
	}
}

// CycleResponse represents the outcome of a full cycle run.
type CycleResponse struct {
	Completed bool                 `json:"completed"`
	Jobs      []*JobResultResponse `json:"jobs"`
}

// CycleFromDomain converts cycle results to a response. The cycle is
// completed when the date increment job succeeded.
func CycleFromDomain(results []domain.EODJobResult) *CycleResponse {
	resp := &CycleResponse{Jobs: make([]*JobResultResponse, len(results))}
	for i, r := range results {
		resp.Jobs[i] = JobResultFromDomain(r)
	}
	if n := len(results); n > 0 {
		last := results[n-1]
		resp.Completed = last.JobNumber == domain.LastJob && last.Success
	}
	return resp
}

// JobStatusResponse represents one job on the status board.
type JobStatusResponse struct {
	JobNumber        int        `json:"job_number"`
	Name             string     `json:"name"`
	State            string     `json:"state"`
	CanExecute       bool       `json:"can_execute"`
	LastRun          *time.Time `json:"last_run,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	Error            string     `json:"error,omitempty"`
}

// JobStatusesFromDomain converts job statuses to responses.
func JobStatusesFromDomain(statuses []domain.JobStatus) []*JobStatusResponse {
	result := make([]*JobStatusResponse, len(statuses))
	for i, s := range statuses {
		result[i] = &JobStatusResponse{
			JobNumber:        s.JobNumber,
			Name:             s.Name,
			State:            string(s.State),
			CanExecute:       s.CanExecute,
			LastRun:          s.LastRun,
			RecordsProcessed: s.RecordsProcessed,
			Error:            s.Error,
		}
	}
	return result
}

// BusinessDateResponse represents the current business date.
type BusinessDateResponse struct {
	BusinessDate string `json:"business_date"`
}

// TransactionLineResponse represents a posted transaction line.
type TransactionLineResponse struct {
	ID           string          `json:"id"`
	BaseID       string          `json:"base_id"`
	AccountNo    string          `json:"account_no,omitempty"`
	GLNum        string          `json:"gl_num"`
	Currency     string          `json:"currency"`
	DrCr         string          `json:"dr_cr"`
	TranDate     string          `json:"tran_date"`
	ValueDate    string          `json:"value_date"`
	FCYAmount    decimal.Decimal `json:"fcy_amount"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	LCYAmount    decimal.Decimal `json:"lcy_amount"`
}

// LinesFromDomain converts transaction lines to responses.
func LinesFromDomain(lines []*domain.Transaction) []*TransactionLineResponse {
	result := make([]*TransactionLineResponse, len(lines))
	for i, l := range lines {
		result[i] = &TransactionLineResponse{
			ID:           l.ID,
			BaseID:       l.BaseID,
			AccountNo:    l.AccountNo,
			GLNum:        l.GLNum,
			Currency:     l.Currency,
			DrCr:         string(l.DrCr),
			TranDate:     domain.FormatDay(l.TranDate),
			ValueDate:    domain.FormatDay(l.ValueDate),
			FCYAmount:    l.FCYAmount,
			ExchangeRate: l.ExchangeRate,
			LCYAmount:    l.LCYAmount,
		}
	}
	return result
}

// SettlementResponse represents a settled FX deal.
type SettlementResponse struct {
	BaseID       string                     `json:"base_id"`
	Currency     string                     `json:"currency"`
	WAERate      decimal.Decimal            `json:"wae_rate"`
	GainLoss     decimal.Decimal            `json:"gain_loss"`
	SettlementID string                     `json:"settlement_id,omitempty"`
	PositionFCY  decimal.Decimal            `json:"position_fcy"`
	PositionLCY  decimal.Decimal            `json:"position_lcy"`
	Lines        []*TransactionLineResponse `json:"lines"`
}

// SettlementFromResult converts a settlement result to a response.
func SettlementFromResult(deal domain.FXDeal, r *usecase.SettlementResult) *SettlementResponse {
	resp := &SettlementResponse{
		BaseID:   deal.BaseID,
		Currency: deal.Currency,
		WAERate:  r.WAERate,
		GainLoss: r.GainLoss,
		Lines:    LinesFromDomain(r.Lines),
	}
	if r.Record != nil {
		resp.SettlementID = r.Record.ID
	}
	if r.WAE != nil {
		resp.PositionFCY = r.WAE.FCYBalance
		resp.PositionLCY = r.WAE.LCYBalance
	}
	return resp
}

// CapitalizationResponse represents an interest capitalization.
type CapitalizationResponse struct {
	AccountNo string                     `json:"account_no"`
	Date      string                     `json:"date"`
	Amount    decimal.Decimal            `json:"amount"`
	EntryID   string                     `json:"entry_id,omitempty"`
	Lines     []*TransactionLineResponse `json:"lines"`
}

// CapitalizationFromResult converts a capitalization result to a response.
func CapitalizationFromResult(r *usecase.CapitalizationResult) *CapitalizationResponse {
	resp := &CapitalizationResponse{
		AccountNo: r.AccountNo,
		Date:      domain.FormatDay(r.Date),
		Amount:    r.Amount,
		Lines:     LinesFromDomain(r.Lines),
	}
	if r.Entry != nil {
		resp.EntryID = r.Entry.ID
	}
	return resp
}

// BooksResponse represents a books balance check.
type BooksResponse struct {
	Date      string          `json:"date"`
	Balanced  bool            `json:"balanced"`
	Imbalance decimal.Decimal `json:"imbalance"`
}

// BooksFromDomain converts a books check to a response.
func BooksFromDomain(c *usecase.BooksCheck) *BooksResponse {
	return &BooksResponse{
		Date:      domain.FormatDay(c.Date),
		Balanced:  c.Balanced,
		Imbalance: c.Imbalance,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
