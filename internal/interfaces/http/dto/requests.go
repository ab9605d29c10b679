package dto

import (
	"github.com/cas-inventory/backend/internal/domain/finance"
	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// CreateDebtorRequest admits a customer who took goods on credit
type CreateDebtorRequest struct {
	Name      string           `json:"name" binding:"required,max=200"`
	Contact   string           `json:"contact" binding:"required,max=100"`
	Category  string           `json:"category" binding:"required"`
	Item      string           `json:"item" binding:"required,max=200"`
	Quantity  int              `json:"quantity" binding:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unitPrice" binding:"required"`
}

// ToInput converts the request to the ledger input
func (r CreateDebtorRequest) ToInput() finance.NewDebtorInput {
	return finance.NewDebtorInput{
		Name:      r.Name,
		Contact:   r.Contact,
		Category:  r.Category,
		Item:      r.Item,
		Quantity:  r.Quantity,
		UnitPrice: *r.UnitPrice,
	}
}

// RecordPaymentRequest is a payment against an active debtor.
// Kind wins over IsFullPayment; with neither the payment is Partial.
type RecordPaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	Kind          string           `json:"kind" binding:"omitempty,max=20"`
	IsFullPayment *bool            `json:"isFullPayment"`
}

// PaymentKind resolves the kind of the payment
func (r RecordPaymentRequest) PaymentKind() (finance.PaymentKind, error) {
	if r.Kind != "" {
		return finance.ParsePaymentKind(r.Kind)
	}
	if r.IsFullPayment != nil && *r.IsFullPayment {
		return finance.PaymentKindFull, nil
	}
	return finance.PaymentKindPartial, nil
}

// RecordSaleRequest is a manual sale typed in at the counter
type RecordSaleRequest struct {
	ItemName    string           `json:"itemName" binding:"required,max=200"`
	Category    string           `json:"category" binding:"required"`
	Quantity    int              `json:"quantity" binding:"required,gt=0,max=10000"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
}

// ToInput converts the request to the ledger input
func (r RecordSaleRequest) ToInput() trade.ManualSaleInput {
	return trade.ManualSaleInput{
		ItemName:    r.ItemName,
		Category:    r.Category,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		TotalAmount: r.TotalAmount,
	}
}

// ReverseSaleRequest names the item whose last sale is undone
type ReverseSaleRequest struct {
	ItemName string `json:"itemName" binding:"required,max=200"`
}

// CreateStockRequest adds an item to the shelf
type CreateStockRequest struct {
	Name     string           `json:"name" binding:"required,max=200"`
	Category string           `json:"category" binding:"required"`
	Quantity *int             `json:"quantity" binding:"required,gte=0"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
}

// ToInput converts the request to the ledger input
func (r CreateStockRequest) ToInput() inventory.StockItemInput {
	return inventory.StockItemInput{
		Name:     r.Name,
		Category: r.Category,
		Quantity: *r.Quantity,
		Price:    *r.Price,
	}
}

// UpdateStockRequest is a partial stock update; absent fields are left alone
type UpdateStockRequest struct {
	Name     *string          `json:"name" binding:"omitempty,max=200"`
	Category *string          `json:"category"`
	Quantity *int             `json:"quantity" binding:"omitempty,gte=0"`
	Price    *decimal.Decimal `json:"price"`
}

// ToUpdate converts the request to the ledger update
func (r UpdateStockRequest) ToUpdate() inventory.StockItemUpdate {
	return inventory.StockItemUpdate{
		Name:     r.Name,
		Category: r.Category,
		Quantity: r.Quantity,
		Price:    r.Price,
	}
}

// SearchQuery filters debtor lists
type SearchQuery struct {
	Search string `form:"search" binding:"max=200"`
}

// StockQuery filters the stock list
type StockQuery struct {
	Search   string `form:"search" binding:"max=200"`
	Category string `form:"category"`
}

// PurchasesQuery optionally restricts the purchase history to one day
type PurchasesQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// DeletedSalesQuery limits the deleted-sales view
type DeletedSalesQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=0,lte=1000"`
}

// HistoryQuery limits the analytics history
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=0,lte=3660"`
}

// LoginRequest exchanges the admin passcode for a token
type LoginRequest struct {
	Passcode string `json:"passcode" binding:"required,max=128"`
}

// StockImportQuery controls a stock sheet upload
type StockImportQuery struct {
	DryRun    bool   `form:"dryRun"`
	Delimiter string `form:"delimiter" binding:"omitempty,oneof=comma semicolon tab"`
}
