package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
)

// SettleDealRequest represents a request to settle an FX deal.
type SettleDealRequest struct {
	BaseID    string          `json:"base_id"`
	AccountNo string          `json:"account_no"`
	Currency  string          `json:"currency"`
	Side      string          `json:"side"`
	FCYAmount decimal.Decimal `json:"fcy_amount"`
	DealRate  decimal.Decimal `json:"deal_rate"`
	DealDate  string          `json:"deal_date,omitempty"`
}

// ToDomain converts the request to a deal. An empty deal date is left zero
// and resolved by the settlement.
func (r *SettleDealRequest) ToDomain() (domain.FXDeal, error) {
	deal := domain.FXDeal{
		BaseID:    r.BaseID,
		AccountNo: r.AccountNo,
		Currency:  r.Currency,
		Side:      domain.DealSide(r.Side),
		Status:    domain.TransactionStatusVerified,
		FCYAmount: r.FCYAmount,
		DealRate:  r.DealRate,
	}
	if r.DealDate != "" {
		d, err := domain.ParseDay(r.DealDate)
		if err != nil {
			return domain.FXDeal{}, err
		}
		deal.DealDate = d
	}
	return deal, nil
}
