package dto

import (
	"time"

	"github.com/cas-inventory/backend/internal/application/finance"
	domainfinance "github.com/cas-inventory/backend/internal/domain/finance"
	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// DebtorResponse is a debtor with its derived balance and status
type DebtorResponse struct {
	domainfinance.Debtor
	Balance decimal.Decimal            `json:"balance"`
	Status  domainfinance.DebtorStatus `json:"status"`
}

// NewDebtorResponse adds the derived fields to a debtor
func NewDebtorResponse(d domainfinance.Debtor) DebtorResponse {
	return DebtorResponse{
		Debtor:  d,
		Balance: d.Balance(),
		Status:  d.Status(),
	}
}

// NewDebtorListResponse converts a debtor list
func NewDebtorListResponse(debtors []domainfinance.Debtor) []DebtorResponse {
	result := make([]DebtorResponse, len(debtors))
	for i := range debtors {
		result[i] = NewDebtorResponse(debtors[i])
	}
	return result
}

// PaidDebtorResponse is an archived debtor
type PaidDebtorResponse struct {
	DebtorResponse
	PaidAt time.Time `json:"paidAt"`
}

// NewPaidDebtorListResponse converts the paid archive
func NewPaidDebtorListResponse(paid []domainfinance.PaidDebtor) []PaidDebtorResponse {
	result := make([]PaidDebtorResponse, len(paid))
	for i := range paid {
		result[i] = PaidDebtorResponse{
			DebtorResponse: NewDebtorResponse(paid[i].Debtor),
			PaidAt:         paid[i].PaidAt,
		}
	}
	return result
}

// PaymentResponse is the outcome of a payment
type PaymentResponse struct {
	Debtor     DebtorResponse        `json:"debtor"`
	Payment    domainfinance.Payment `json:"payment"`
	NewBalance decimal.Decimal       `json:"newBalance"`
	Archived   bool                  `json:"archived"`
	PaidAt     *time.Time            `json:"paidAt,omitempty"`
}

// NewPaymentResponse converts the ledger result
func NewPaymentResponse(r *finance.PaymentResult) PaymentResponse {
	return PaymentResponse{
		Debtor:     NewDebtorResponse(r.Debtor),
		Payment:    r.Payment,
		NewBalance: r.NewBalance,
		Archived:   r.Archived,
		PaidAt:     r.PaidAt,
	}
}

// OutstandingResponse is the total still owed by active debtors
type OutstandingResponse struct {
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	ActiveDebtors    int             `json:"activeDebtors"`
}

// StockValueResponse is the shelf value
type StockValueResponse struct {
	Value decimal.Decimal `json:"value"`
	Units int             `json:"units"`
}

// StockItemResponse is a stock item with its shelf value
type StockItemResponse struct {
	inventory.StockItem
	Value decimal.Decimal `json:"value"`
}

// NewStockItemResponse adds the value to a stock item
func NewStockItemResponse(item inventory.StockItem) StockItemResponse {
	return StockItemResponse{StockItem: item, Value: item.Value()}
}

// NewStockListResponse converts a stock list
func NewStockListResponse(items []inventory.StockItem) []StockItemResponse {
	result := make([]StockItemResponse, len(items))
	for i := range items {
		result[i] = NewStockItemResponse(items[i])
	}
	return result
}

// ClearedResponse reports how many records an admin clear removed
type ClearedResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

// MessageResponse is a bare confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// StockImportResponse reports a stock sheet upload. Items is empty on a dry run.
type StockImportResponse struct {
	DryRun    bool                `json:"dryRun"`
	TotalRows int                 `json:"totalRows"`
	Imported  int                 `json:"imported"`
	Items     []StockItemResponse `json:"items"`
}
