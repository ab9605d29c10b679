package trade

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/cas-inventory/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[shared.Collection][]json.RawMessage
	batches []shared.Batch
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[shared.Collection][]json.RawMessage)}
}

func (s *memoryStore) Load(_ context.Context, c shared.Collection) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage{}, s.data[c]...), nil
}

func (s *memoryStore) Save(ctx context.Context, c shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{c: records})
}

func (s *memoryStore) SaveBatch(_ context.Context, batch shared.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, records := range batch {
		s.data[c] = records
	}
	s.batches = append(s.batches, batch)
	return nil
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSalesLedger(t *testing.T, store shared.CollectionStore) (*SalesLedger, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	ledger, err := NewSalesLedger(context.Background(), store,
		WithClock(clock.Now),
		WithLocation(time.UTC),
	)
	require.NoError(t, err)
	return ledger, clock
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func addShirt(t *testing.T, ledger *SalesLedger, quantity int) *inventory.StockItem {
	t.Helper()
	item, err := ledger.AddStock(context.Background(), inventory.StockItemInput{
		Name:     "Kente Shirt",
		Category: "Men",
		Quantity: quantity,
		Price:    decimal.RequireFromString("45.00"),
	})
	require.NoError(t, err)
	return item
}

// ==================== RecordSale Tests ====================

func TestSalesLedger_RecordSale_ExpandsUnits(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	ctx := context.Background()

	records, err := ledger.RecordSale(ctx, trade.ManualSaleInput{
		ItemName:    "Sandals",
		Category:    "Unisex",
		Quantity:    4,
		TotalAmount: decimalPtr("100"),
	})
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, r := range records {
		assert.Equal(t, "25.00", r.Revenue.StringFixed(2))
	}

	assert.Len(t, ledger.ListSales(ctx, ""), 4)
	persisted, err := shared.LoadRecords[trade.SaleRecord](ctx, store, shared.CollectionPurchases)
	require.NoError(t, err)
	assert.Len(t, persisted, 4)
}

func TestSalesLedger_RecordSale_Validation(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)

	_, err := ledger.RecordSale(context.Background(), trade.ManualSaleInput{ItemName: "Sandals", Category: "Unisex"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, store.batches)
}

// ==================== SellOneUnit Tests ====================

func TestSalesLedger_SellOneUnit(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	ctx := context.Background()
	item := addShirt(t, ledger, 2)

	sale, err := ledger.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "45.00", sale.Revenue.StringFixed(2))
	assert.Equal(t, "2026-10-17", sale.Date)

	current, err := ledger.GetStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Quantity)

	last := store.batches[len(store.batches)-1]
	assert.Contains(t, last, shared.CollectionStock)
	assert.Contains(t, last, shared.CollectionPurchases)
}

func TestSalesLedger_SellOneUnit_OutOfStock(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	item := addShirt(t, ledger, 1)

	_, err := ledger.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)

	_, err = ledger.SellOneUnit(ctx, item.ID)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, ledger.ListSales(ctx, ""), 1)
}

func TestSalesLedger_SellOneUnit_UnknownItem(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())

	_, err := ledger.SellOneUnit(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ==================== DeleteSale Tests ====================

func TestSalesLedger_DeleteSale_ArchivesVerbatim(t *testing.T) {
	store := newMemoryStore()
	ledger, clock := newTestSalesLedger(t, store)
	ctx := context.Background()
	item := addShirt(t, ledger, 3)
	sale, err := ledger.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	deleted, err := ledger.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)

	assert.Equal(t, *sale, deleted.SaleRecord)
	assert.Equal(t, clock.Now(), deleted.DeletedAt)
	assert.Empty(t, ledger.ListSales(ctx, ""))
	assert.Equal(t, 1, ledger.DeletedCount(ctx))

	archive, err := shared.LoadRecords[trade.DeletedSaleRecord](ctx, store, shared.CollectionDeletedSales)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	assert.Equal(t, sale.ID, archive[0].ID)
	assert.Equal(t, sale.ItemName, archive[0].ItemName)
	assert.Equal(t, sale.Category, archive[0].Category)
	assert.Equal(t, sale.Quantity, archive[0].Quantity)
	assert.True(t, sale.Revenue.Equal(archive[0].Revenue))
	assert.True(t, sale.OccurredAt.Equal(archive[0].OccurredAt))
}

func TestSalesLedger_DeleteSale_OnlyToday(t *testing.T) {
	ledger, clock := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	records, err := ledger.RecordSale(ctx, trade.ManualSaleInput{
		ItemName: "Socks", Category: "General", Quantity: 1, UnitPrice: decimalPtr("5"),
	})
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = ledger.DeleteSale(ctx, records[0].ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Len(t, ledger.ListSales(ctx, ""), 1)
}

func TestSalesLedger_DeleteSale_UnknownID(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())

	_, err := ledger.DeleteSale(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ==================== ReverseLastSale Tests ====================

func TestSalesLedger_ReverseLastSale(t *testing.T) {
	store := newMemoryStore()
	ledger, clock := newTestSalesLedger(t, store)
	ctx := context.Background()
	item := addShirt(t, ledger, 3)

	first, err := ledger.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)
	second, err := ledger.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	reversal, err := ledger.ReverseLastSale(ctx, "kente shirt")
	require.NoError(t, err)

	assert.Equal(t, second.ID, reversal.ID, "the most recently inserted sale is reversed")
	assert.Equal(t, clock.Now(), reversal.ReversedAt)

	remaining := ledger.ListSales(ctx, "")
	require.Len(t, remaining, 1)
	assert.Equal(t, first.ID, remaining[0].ID)

	current, err := ledger.GetStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Quantity)
	assert.Len(t, ledger.ListReversals(ctx), 1)
}

func TestSalesLedger_ReverseLastSale_ManualSaleRestocksByName(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	item := addShirt(t, ledger, 0)

	_, err := ledger.RecordSale(ctx, trade.ManualSaleInput{
		ItemName: "Kente Shirt", Category: "Men", Quantity: 1, UnitPrice: decimalPtr("45"),
	})
	require.NoError(t, err)

	_, err = ledger.ReverseLastSale(ctx, "Kente Shirt")
	require.NoError(t, err)

	current, err := ledger.GetStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Quantity)
}

func TestSalesLedger_ReverseLastSale_NoSale(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	addShirt(t, ledger, 1)
	saves := len(store.batches)

	_, err := ledger.ReverseLastSale(context.Background(), "Kente Shirt")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, saves, len(store.batches))
}

func TestSalesLedger_ReverseLastSaleOf_SameNameDifferentItems(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	mens, err := ledger.AddStock(ctx, inventory.StockItemInput{
		Name: "Shirt", Category: "Men", Quantity: 5, Price: decimal.RequireFromString("30"),
	})
	require.NoError(t, err)
	womens, err := ledger.AddStock(ctx, inventory.StockItemInput{
		Name: "Shirt", Category: "Women", Quantity: 5, Price: decimal.RequireFromString("30"),
	})
	require.NoError(t, err)

	mensSale, err := ledger.SellOneUnit(ctx, mens.ID)
	require.NoError(t, err)
	_, err = ledger.SellOneUnit(ctx, womens.ID)
	require.NoError(t, err)

	reversal, err := ledger.ReverseLastSaleOf(ctx, mens.ID)
	require.NoError(t, err)
	assert.Equal(t, mensSale.ID, reversal.ID)

	current, err := ledger.GetStock(ctx, mens.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.Quantity)
	current, err = ledger.GetStock(ctx, womens.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, current.Quantity)
}

func TestSalesLedger_ReverseLastSaleOf_ManualSaleReturnsToThatItem(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	first := addShirt(t, ledger, 0)
	second := addShirt(t, ledger, 0)

	_, err := ledger.RecordSale(ctx, trade.ManualSaleInput{
		ItemName: "Kente Shirt", Category: "Men", Quantity: 1, UnitPrice: decimalPtr("45"),
	})
	require.NoError(t, err)

	_, err = ledger.ReverseLastSaleOf(ctx, second.ID)
	require.NoError(t, err)

	current, err := ledger.GetStock(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Quantity)
	current, err = ledger.GetStock(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.Quantity)
}

func TestSalesLedger_ReverseLastSaleOf_NotFound(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	item := addShirt(t, ledger, 1)
	saves := len(store.batches)

	_, err := ledger.ReverseLastSaleOf(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = ledger.ReverseLastSaleOf(context.Background(), item.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, saves, len(store.batches))
}

// ==================== Store lock Tests ====================

// testLocker is an in-process shared.Locker with one slot per test
type testLocker struct {
	slot chan struct{}
	mu   sync.Mutex
	keys []string
}

func newTestLocker() *testLocker {
	return &testLocker{slot: make(chan struct{}, 1)}
}

func (l *testLocker) Acquire(ctx context.Context, key string) (func(), error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func() { <-l.slot }, nil
}

func TestSalesLedger_StoreLockKeepsInstancesInStep(t *testing.T) {
	store := newMemoryStore()
	locker := newTestLocker()
	ctx := context.Background()
	newInstance := func() *SalesLedger {
		ledger, err := NewSalesLedger(ctx, store, WithLocation(time.UTC), WithStoreLock(locker, time.Second))
		require.NoError(t, err)
		return ledger
	}
	a, b := newInstance(), newInstance()

	item := addShirt(t, a, 5)
	_, err := b.SellOneUnit(ctx, item.ID)
	require.NoError(t, err, "b sees the item a added")
	_, err = a.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)

	persisted, err := shared.LoadRecords[inventory.StockItem](ctx, store, shared.CollectionStock)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, 3, persisted[0].Quantity, "neither sale is lost")
	assert.Len(t, b.ListSales(ctx, ""), 2)

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Equal(t, []string{"ledger:sales", "ledger:sales", "ledger:sales"}, locker.keys)
}

func TestSalesLedger_StoreLockTimeout(t *testing.T) {
	store := newMemoryStore()
	locker := newTestLocker()
	ctx := context.Background()
	ledger, err := NewSalesLedger(ctx, store, WithStoreLock(locker, 10*time.Millisecond))
	require.NoError(t, err)

	release, err := locker.Acquire(ctx, "ledger:sales")
	require.NoError(t, err)
	defer release()

	_, err = ledger.AddStock(ctx, inventory.StockItemInput{
		Name: "Shirt", Category: "Men", Quantity: 1, Price: decimal.RequireFromString("30"),
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, store.batches)
}

// ==================== Admin / read Tests ====================

func TestSalesLedger_ListDeleted_NewestFirstWithLimit(t *testing.T) {
	ledger, clock := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	records, err := ledger.RecordSale(ctx, trade.ManualSaleInput{
		ItemName: "Socks", Category: "General", Quantity: 3, UnitPrice: decimalPtr("5"),
	})
	require.NoError(t, err)

	for _, r := range records {
		clock.Advance(time.Second)
		_, err := ledger.DeleteSale(ctx, r.ID)
		require.NoError(t, err)
	}

	latest := ledger.ListDeleted(ctx, 2)
	require.Len(t, latest, 2)
	assert.Equal(t, records[2].ID, latest[0].ID)
	assert.Equal(t, records[1].ID, latest[1].ID)
	assert.Len(t, ledger.ListDeleted(ctx, 0), 3)
}

func TestSalesLedger_ClearDeletedAndSales(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	ctx := context.Background()
	records, err := ledger.RecordSale(ctx, trade.ManualSaleInput{
		ItemName: "Socks", Category: "General", Quantity: 2, UnitPrice: decimalPtr("5"),
	})
	require.NoError(t, err)
	_, err = ledger.DeleteSale(ctx, records[0].ID)
	require.NoError(t, err)

	n, err := ledger.ClearDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, ledger.DeletedCount(ctx))

	n, err = ledger.ClearSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, ledger.ListSales(ctx, ""))

	persisted, err := store.Load(ctx, shared.CollectionPurchases)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestSalesLedger_ListSalesByDay(t *testing.T) {
	ledger, clock := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	input := trade.ManualSaleInput{ItemName: "Socks", Category: "General", Quantity: 1, UnitPrice: decimalPtr("5")}

	_, err := ledger.RecordSale(ctx, input)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = ledger.RecordSale(ctx, input)
	require.NoError(t, err)

	assert.Len(t, ledger.ListSales(ctx, "2026-10-17"), 1)
	assert.Len(t, ledger.ListSales(ctx, "2026-10-18"), 1)
	assert.Len(t, ledger.TodaysSales(ctx), 1)
	assert.Equal(t, "2026-10-18", ledger.Today())
}

// ==================== Stock Tests ====================

func TestSalesLedger_StockCRUD(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	item := addShirt(t, ledger, 3)
	_, err := ledger.AddStock(ctx, inventory.StockItemInput{
		Name: "Wrap Dress", Category: "Ladies", Quantity: 2, Price: decimal.RequireFromString("80"),
	})
	require.NoError(t, err)

	quantity := 10
	updated, err := ledger.UpdateStock(ctx, item.ID, inventory.StockItemUpdate{Quantity: &quantity})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Quantity)

	women := ledger.ListStock(ctx, StockFilter{Category: valueobject.CategoryWomen})
	require.Len(t, women, 1)
	assert.Equal(t, "Wrap Dress", women[0].Name)
	assert.Len(t, ledger.ListStock(ctx, StockFilter{Search: "shirt"}), 1)

	value, units := ledger.StockValue(ctx)
	assert.Equal(t, "610.00", value.StringFixed(2))
	assert.Equal(t, 12, units)

	require.NoError(t, ledger.DeleteStock(ctx, item.ID))
	_, err = ledger.GetStock(ctx, item.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, ledger.DeleteStock(ctx, item.ID), shared.ErrNotFound)

	n, err := ledger.ClearStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, ledger.ListStock(ctx, StockFilter{}))
}

func TestSalesLedger_ImportStock(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	ctx := context.Background()
	addShirt(t, ledger, 1)

	var notified int
	ledger.OnChange(func(context.Context) { notified++ })

	items, err := ledger.ImportStock(ctx, []inventory.StockItemInput{
		{Name: "Head Wrap", Category: "Ladies", Quantity: 5, Price: decimal.RequireFromString("12")},
		{Name: "School Socks", Category: "Children", Quantity: 0, Price: decimal.RequireFromString("3.50")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, valueobject.CategoryWomen, items[0].Category)
	assert.Len(t, ledger.ListStock(ctx, StockFilter{}), 3)
	assert.Equal(t, 1, notified)

	batches := len(store.batches)
	_, err = ledger.ImportStock(ctx, []inventory.StockItemInput{
		{Name: "Cap", Category: "Unisex", Quantity: 1, Price: decimal.RequireFromString("10")},
		{Name: "Boots", Category: "Shoes", Quantity: 1, Price: decimal.RequireFromString("10")},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "Item 2 (Boots)")
	assert.Len(t, ledger.ListStock(ctx, StockFilter{}), 3, "nothing from a rejected import is added")
	assert.Equal(t, batches, len(store.batches))

	_, err = ledger.ImportStock(ctx, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSalesLedger_UpdateStock_Validation(t *testing.T) {
	ledger, _ := newTestSalesLedger(t, newMemoryStore())
	ctx := context.Background()
	item := addShirt(t, ledger, 3)
	negative := -1

	_, err := ledger.UpdateStock(ctx, item.ID, inventory.StockItemUpdate{Quantity: &negative})
	assert.ErrorIs(t, err, shared.ErrValidation)

	current, err := ledger.GetStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, current.Quantity)

	_, err = ledger.UpdateStock(ctx, uuid.New(), inventory.StockItemUpdate{Quantity: &negative})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSalesLedger_LoadsExistingState(t *testing.T) {
	store := newMemoryStore()
	ledger, _ := newTestSalesLedger(t, store)
	ctx := context.Background()
	item := addShirt(t, ledger, 3)
	_, err := ledger.SellOneUnit(ctx, item.ID)
	require.NoError(t, err)

	reloaded, _ := newTestSalesLedger(t, store)
	assert.Len(t, reloaded.ListSales(ctx, ""), 1)
	current, err := reloaded.GetStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Quantity)
}

type failingStore struct {
	*memoryStore
}

func (s failingStore) SaveBatch(context.Context, shared.Batch) error {
	return errors.New("disk full")
}

func TestSalesLedger_PersistenceFailureLeavesStateUnchanged(t *testing.T) {
	base := newMemoryStore()
	seed, _ := newTestSalesLedger(t, base)
	item := addShirt(t, seed, 2)

	ledger, _ := newTestSalesLedger(t, failingStore{base})
	ctx := context.Background()

	_, err := ledger.SellOneUnit(ctx, item.ID)
	assert.ErrorIs(t, err, shared.ErrPersistence)

	current, err := ledger.GetStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Quantity)
	assert.Empty(t, ledger.ListSales(ctx, ""))
}
