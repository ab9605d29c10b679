package inventory

import (
	"strings"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// StockItem is a line of merchandise on the shelf
type StockItem struct {
	shared.BaseEntity
	Name     string               `json:"name"`
	Category valueobject.Category `json:"category"`
	Quantity int                  `json:"quantity"`
	Price    decimal.Decimal      `json:"price"`
}

// StockItemInput carries the fields a stock item is created with
type StockItemInput struct {
	Name     string
	Category string
	Quantity int
	Price    decimal.Decimal
}

// StockItemUpdate is a partial update; nil fields are left alone
type StockItemUpdate struct {
	Name     *string
	Category *string
	Quantity *int
	Price    *decimal.Decimal
}

// NewStockItem validates the input and creates a stock item
func NewStockItem(input StockItemInput, now time.Time) (*StockItem, error) {
	item := &StockItem{BaseEntity: shared.NewBaseEntity(now)}
	name, category := input.Name, input.Category
	if err := item.Apply(StockItemUpdate{
		Name:     &name,
		Category: &category,
		Quantity: &input.Quantity,
		Price:    &input.Price,
	}, now); err != nil {
		return nil, err
	}
	return item, nil
}

// Apply validates and applies a partial update. On error the item is unchanged.
func (s *StockItem) Apply(update StockItemUpdate, now time.Time) error {
	next := *s

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return shared.NewValidationError("Item name cannot be empty")
		}
		next.Name = name
	}
	if update.Category != nil {
		category, err := valueobject.ParseCategory(*update.Category)
		if err != nil {
			return shared.NewValidationError("Invalid category: %v", err)
		}
		next.Category = category
	}
	if update.Quantity != nil {
		if *update.Quantity < 0 {
			return shared.NewValidationError("Quantity cannot be negative")
		}
		next.Quantity = *update.Quantity
	}
	if update.Price != nil {
		if err := valueobject.ValidateAmount(*update.Price); err != nil {
			return shared.NewValidationError("Invalid price: %v", err)
		}
		next.Price = update.Price.Round(valueobject.MoneyScale)
	}

	next.Touch(now)
	*s = next
	return nil
}

// TakeUnit removes one unit for a sale
func (s *StockItem) TakeUnit(now time.Time) error {
	if s.Quantity <= 0 {
		return shared.NewConflictError("'" + s.Name + "' is out of stock")
	}
	s.Quantity--
	s.Touch(now)
	return nil
}

// ReturnUnit puts one unit back, e.g. after a reversed sale
func (s *StockItem) ReturnUnit(now time.Time) {
	s.Quantity++
	s.Touch(now)
}

// Value returns price * quantity
func (s *StockItem) Value() decimal.Decimal {
	return valueobject.NewMoneyGHS(s.Price).MultiplyByInt(int64(s.Quantity)).Amount()
}

// Matches applies the stock list filters: a case-insensitive name search and an
// optional exact category.
func (s *StockItem) Matches(search string, category valueobject.Category) bool {
	if category != "" && s.Category != category {
		return false
	}
	search = strings.ToLower(strings.TrimSpace(search))
	return search == "" || strings.Contains(strings.ToLower(s.Name), search)
}
