package trade

import (
	"context"
	"slices"

	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockFilter narrows ListStock
type StockFilter struct {
	Search   string
	Category valueobject.Category
}

// AddStock adds a new item to the shelf
func (l *SalesLedger) AddStock(ctx context.Context, input inventory.StockItemInput) (*inventory.StockItem, error) {
	item, err := l.addStock(ctx, input)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return item, nil
}

func (l *SalesLedger) addStock(ctx context.Context, input inventory.StockItemInput) (*inventory.StockItem, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := inventory.NewStockItem(input, l.clock())
	if err != nil {
		return nil, err
	}
	next := append(slices.Clone(l.stock), *item)
	if err := l.persistStock(ctx, next); err != nil {
		return nil, err
	}
	l.stock = next

	l.logger.Info("Stock item added",
		zap.String("stock_item_id", item.ID.String()),
		zap.String("name", item.Name),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

// ImportStock adds several items in one change. Either every item is added or,
// when one is invalid, none are.
func (l *SalesLedger) ImportStock(ctx context.Context, inputs []inventory.StockItemInput) ([]inventory.StockItem, error) {
	items, err := l.importStock(ctx, inputs)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return items, nil
}

func (l *SalesLedger) importStock(ctx context.Context, inputs []inventory.StockItemInput) ([]inventory.StockItem, error) {
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("Nothing to import")
	}

	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	now := l.clock()
	items := make([]inventory.StockItem, 0, len(inputs))
	for i, input := range inputs {
		item, err := inventory.NewStockItem(input, now)
		if err != nil {
			return nil, shared.NewValidationError("Item %d (%s): %v", i+1, input.Name, err)
		}
		items = append(items, *item)
	}
	next := append(slices.Clone(l.stock), items...)
	if err := l.persistStock(ctx, next); err != nil {
		return nil, err
	}
	l.stock = next

	l.logger.Info("Stock imported", zap.Int("items", len(items)))
	return items, nil
}

// UpdateStock applies a partial update to a stock item
func (l *SalesLedger) UpdateStock(ctx context.Context, id uuid.UUID, update inventory.StockItemUpdate) (*inventory.StockItem, error) {
	item, err := l.updateStock(ctx, id, update)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return item, nil
}

func (l *SalesLedger) updateStock(ctx context.Context, id uuid.UUID, update inventory.StockItemUpdate) (*inventory.StockItem, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	idx := l.stockIndex(id)
	if idx < 0 {
		return nil, shared.NewNotFoundError("Stock item", id.String())
	}
	next := slices.Clone(l.stock)
	if err := next[idx].Apply(update, l.clock()); err != nil {
		return nil, err
	}
	if err := l.persistStock(ctx, next); err != nil {
		return nil, err
	}
	l.stock = next

	item := next[idx]
	return &item, nil
}

// DeleteStock removes a stock item
func (l *SalesLedger) DeleteStock(ctx context.Context, id uuid.UUID) error {
	if err := l.deleteStock(ctx, id); err != nil {
		return err
	}
	l.notify(ctx)
	return nil
}

func (l *SalesLedger) deleteStock(ctx context.Context, id uuid.UUID) error {
	release, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	idx := l.stockIndex(id)
	if idx < 0 {
		return shared.NewNotFoundError("Stock item", id.String())
	}
	next := slices.Delete(slices.Clone(l.stock), idx, idx+1)
	if err := l.persistStock(ctx, next); err != nil {
		return err
	}
	l.stock = next

	l.logger.Info("Stock item deleted", zap.String("stock_item_id", id.String()))
	return nil
}

// ClearStock removes every stock item and returns how many were removed
func (l *SalesLedger) ClearStock(ctx context.Context) (int, error) {
	n, err := l.clear(ctx, shared.CollectionStock)
	if err != nil {
		return 0, err
	}
	l.notify(ctx)
	return n, nil
}

// GetStock returns a stock item by id
func (l *SalesLedger) GetStock(ctx context.Context, id uuid.UUID) (*inventory.StockItem, error) {
	l.view(ctx)
	defer l.mu.Unlock()

	idx := l.stockIndex(id)
	if idx < 0 {
		return nil, shared.NewNotFoundError("Stock item", id.String())
	}
	item := l.stock[idx]
	return &item, nil
}

// ListStock returns stock items in insertion order
func (l *SalesLedger) ListStock(ctx context.Context, filter StockFilter) []inventory.StockItem {
	l.view(ctx)
	defer l.mu.Unlock()

	result := make([]inventory.StockItem, 0, len(l.stock))
	for i := range l.stock {
		if l.stock[i].Matches(filter.Search, filter.Category) {
			result = append(result, l.stock[i])
		}
	}
	return result
}

// StockValue returns the shelf value (price * quantity summed) and unit count
func (l *SalesLedger) StockValue(ctx context.Context) (decimal.Decimal, int) {
	l.view(ctx)
	defer l.mu.Unlock()

	value := valueobject.Zero(valueobject.GHS)
	units := 0
	for i := range l.stock {
		value = value.MustAdd(valueobject.NewMoneyGHS(l.stock[i].Value()))
		units += l.stock[i].Quantity
	}
	return value.Amount(), units
}

func (l *SalesLedger) persistStock(ctx context.Context, stock []inventory.StockItem) error {
	batch := shared.Batch{}
	if err := shared.PutRecords(batch, shared.CollectionStock, stock); err != nil {
		return shared.NewPersistenceError(err)
	}
	return l.persist(ctx, batch)
}
