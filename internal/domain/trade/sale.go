package trade

import (
	"strings"
	"time"

	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleRecord is one completed unit sale. Records are never edited; they are only
// moved to the deleted-sales or reversal archives.
type SaleRecord struct {
	ID          uuid.UUID            `json:"id"`
	ItemName    string               `json:"itemName"`
	Category    valueobject.Category `json:"category"`
	UnitPrice   decimal.Decimal      `json:"unitPrice"`
	Quantity    int                  `json:"quantity"`
	Revenue     decimal.Decimal      `json:"revenue"`
	Date        string               `json:"date"` // YYYY-MM-DD in the shop's time zone
	OccurredAt  time.Time            `json:"occurredAt"`
	StockItemID *uuid.UUID           `json:"stockItemId,omitempty"`
}

// DeletedSaleRecord is a soft-deleted sale, kept verbatim
type DeletedSaleRecord struct {
	SaleRecord
	DeletedAt time.Time `json:"deletedAt"`
}

// ReversalRecord is a sale that was undone and its unit returned to stock
type ReversalRecord struct {
	SaleRecord
	ReversedAt time.Time `json:"reversedAt"`
}

// ManualSaleInput records an aggregate sale typed in at the counter.
// Exactly one of UnitPrice and TotalAmount must be set.
type ManualSaleInput struct {
	ItemName    string
	Category    string
	Quantity    int
	UnitPrice   *decimal.Decimal
	TotalAmount *decimal.Decimal
}

// NewUnitSales expands a manual sale into one record per unit so each unit can later
// be deleted on its own. A total amount is split to the cent; leftover cents go to the
// first units.
func NewUnitSales(input ManualSaleInput, now time.Time, loc *time.Location) ([]SaleRecord, error) {
	name := strings.TrimSpace(input.ItemName)
	if name == "" {
		return nil, shared.NewValidationError("Item name cannot be empty")
	}
	category, err := valueobject.ParseCategory(input.Category)
	if err != nil {
		return nil, shared.NewValidationError("Invalid category: %v", err)
	}
	if input.Quantity <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}

	var shares []decimal.Decimal
	switch {
	case input.UnitPrice != nil && input.TotalAmount != nil:
		return nil, shared.NewValidationError("Provide either unitPrice or totalAmount, not both")
	case input.TotalAmount != nil:
		if err := valueobject.ValidateAmount(*input.TotalAmount); err != nil {
			return nil, shared.NewValidationError("Invalid total amount: %v", err)
		}
		parts, err := valueobject.NewMoneyGHS(*input.TotalAmount).Allocate(input.Quantity)
		if err != nil {
			return nil, shared.NewValidationError("Invalid quantity: %v", err)
		}
		for _, part := range parts {
			shares = append(shares, part.Amount())
		}
	case input.UnitPrice != nil:
		if err := valueobject.ValidateAmount(*input.UnitPrice); err != nil {
			return nil, shared.NewValidationError("Invalid unit price: %v", err)
		}
		for range input.Quantity {
			shares = append(shares, *input.UnitPrice)
		}
	default:
		return nil, shared.NewValidationError("Either unitPrice or totalAmount is required")
	}

	date := shared.DayKey(now, loc)
	records := make([]SaleRecord, 0, input.Quantity)
	for _, share := range shares {
		share = share.Round(valueobject.MoneyScale)
		records = append(records, SaleRecord{
			ID:         uuid.New(),
			ItemName:   name,
			Category:   category,
			UnitPrice:  share,
			Quantity:   1,
			Revenue:    share,
			Date:       date,
			OccurredAt: now,
		})
	}
	return records, nil
}

// NewStockSale records a single unit sold from a stock item at its shelf price.
// The caller is responsible for taking the unit out of stock.
func NewStockSale(item *inventory.StockItem, now time.Time, loc *time.Location) SaleRecord {
	stockID := item.ID
	return SaleRecord{
		ID:          uuid.New(),
		ItemName:    item.Name,
		Category:    item.Category,
		UnitPrice:   item.Price,
		Quantity:    1,
		Revenue:     item.Price,
		Date:        shared.DayKey(now, loc),
		OccurredAt:  now,
		StockItemID: &stockID,
	}
}

// IsOn reports whether the sale belongs to the given day key
func (s SaleRecord) IsOn(day string) bool {
	return s.Date == day
}

// IsFor reports whether the sale is for the named item (case-insensitive)
func (s SaleRecord) IsFor(itemName string) bool {
	return strings.EqualFold(strings.TrimSpace(s.ItemName), strings.TrimSpace(itemName))
}

// Delete produces the archived copy of the sale
func (s SaleRecord) Delete(at time.Time) DeletedSaleRecord {
	return DeletedSaleRecord{SaleRecord: s, DeletedAt: at}
}

// Reverse produces the reversal record of the sale
func (s SaleRecord) Reverse(at time.Time) ReversalRecord {
	return ReversalRecord{SaleRecord: s, ReversedAt: at}
}

// TotalRevenue sums revenue over sales
func TotalRevenue(sales []SaleRecord) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Revenue)
	}
	return total
}
