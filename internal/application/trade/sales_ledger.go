package trade

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SalesLedger owns the shelf stock, the purchase history and its two archives
// (deleted sales and reversals). One mutex covers all four collections because
// selling and reversing touch stock and purchases together.
type SalesLedger struct {
	mu        sync.Mutex
	store     shared.CollectionStore
	storeLock shared.Locker
	lockWait  time.Duration
	logger    *zap.Logger
	clock     shared.Clock
	location  *time.Location
	listeners []shared.ChangeListener

	stock     []inventory.StockItem
	purchases []trade.SaleRecord
	deleted   []trade.DeletedSaleRecord
	reversals []trade.ReversalRecord
}

// SalesLedgerOption is a functional option for configuring SalesLedger
type SalesLedgerOption func(*SalesLedger)

// WithLogger sets the ledger logger
func WithLogger(logger *zap.Logger) SalesLedgerOption {
	return func(l *SalesLedger) {
		l.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(clock shared.Clock) SalesLedgerOption {
	return func(l *SalesLedger) {
		l.clock = clock
	}
}

// WithLocation sets the time zone that decides which day a sale belongs to
func WithLocation(loc *time.Location) SalesLedgerOption {
	return func(l *SalesLedger) {
		l.location = loc
	}
}

// WithStoreLock lets several instances share one store. Every mutation holds
// locker's lock for the ledger and reloads the collections before changing them,
// and reads reload so they see other instances' writes. wait bounds how long a
// mutation waits for the lock; non-positive values keep the default.
func WithStoreLock(locker shared.Locker, wait time.Duration) SalesLedgerOption {
	return func(l *SalesLedger) {
		l.storeLock = locker
		if wait > 0 {
			l.lockWait = wait
		}
	}
}

// storeLockKey names the lock shared by the sales ledgers of every instance
const storeLockKey = "ledger:sales"

// NewSalesLedger creates a SalesLedger and loads its collections from the store
func NewSalesLedger(ctx context.Context, store shared.CollectionStore, opts ...SalesLedgerOption) (*SalesLedger, error) {
	l := &SalesLedger{
		store:    store,
		logger:   zap.NewNop(),
		clock:    shared.SystemClock,
		location: time.Local,
		lockWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("sales_ledger")

	if err := l.reload(ctx); err != nil {
		return nil, err
	}

	l.logger.Info("Sales ledger loaded",
		zap.Int("stock_items", len(l.stock)),
		zap.Int("purchases", len(l.purchases)),
		zap.Int("deleted_sales", len(l.deleted)),
		zap.Int("reversals", len(l.reversals)),
	)
	return l, nil
}

// OnChange registers a listener called after every persisted mutation
func (l *SalesLedger) OnChange(listener shared.ChangeListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// Today returns the current day key in the ledger's time zone
func (l *SalesLedger) Today() string {
	return shared.DayKey(l.clock(), l.location)
}

// RecordSale records a manual sale, one record per unit
func (l *SalesLedger) RecordSale(ctx context.Context, input trade.ManualSaleInput) ([]trade.SaleRecord, error) {
	records, err := l.recordSale(ctx, input)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return records, nil
}

func (l *SalesLedger) recordSale(ctx context.Context, input trade.ManualSaleInput) ([]trade.SaleRecord, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := trade.NewUnitSales(input, l.clock(), l.location)
	if err != nil {
		return nil, err
	}

	next := append(slices.Clone(l.purchases), records...)
	batch := shared.Batch{}
	if err := shared.PutRecords(batch, shared.CollectionPurchases, next); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := l.persist(ctx, batch); err != nil {
		return nil, err
	}
	l.purchases = next

	l.logger.Info("Sale recorded",
		zap.String("item", records[0].ItemName),
		zap.Int("units", len(records)),
		zap.String("revenue", trade.TotalRevenue(records).StringFixed(2)),
	)
	return slices.Clone(records), nil
}

// SellOneUnit takes one unit of a stock item and records a sale at its price
func (l *SalesLedger) SellOneUnit(ctx context.Context, stockItemID uuid.UUID) (*trade.SaleRecord, error) {
	record, err := l.sellOneUnit(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return record, nil
}

func (l *SalesLedger) sellOneUnit(ctx context.Context, stockItemID uuid.UUID) (*trade.SaleRecord, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	idx := l.stockIndex(stockItemID)
	if idx < 0 {
		return nil, shared.NewNotFoundError("Stock item", stockItemID.String())
	}

	now := l.clock()
	nextStock := slices.Clone(l.stock)
	if err := nextStock[idx].TakeUnit(now); err != nil {
		return nil, err
	}
	record := trade.NewStockSale(&nextStock[idx], now, l.location)
	nextPurchases := append(slices.Clone(l.purchases), record)

	batch := shared.Batch{}
	if err := shared.PutRecords(batch, shared.CollectionStock, nextStock); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := shared.PutRecords(batch, shared.CollectionPurchases, nextPurchases); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := l.persist(ctx, batch); err != nil {
		return nil, err
	}
	l.stock = nextStock
	l.purchases = nextPurchases

	l.logger.Info("Unit sold",
		zap.String("stock_item_id", stockItemID.String()),
		zap.String("item", record.ItemName),
		zap.Int("remaining", nextStock[idx].Quantity),
	)
	return &record, nil
}

// DeleteSale soft-deletes one of today's sales into the deleted-sales archive
func (l *SalesLedger) DeleteSale(ctx context.Context, saleID uuid.UUID) (*trade.DeletedSaleRecord, error) {
	record, err := l.deleteSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return record, nil
}

func (l *SalesLedger) deleteSale(ctx context.Context, saleID uuid.UUID) (*trade.DeletedSaleRecord, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	now := l.clock()
	today := shared.DayKey(now, l.location)
	idx := slices.IndexFunc(l.purchases, func(s trade.SaleRecord) bool {
		return s.ID == saleID && s.IsOn(today)
	})
	if idx < 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Sale '"+saleID.String()+"' not found among today's sales")
	}

	archived := l.purchases[idx].Delete(now)
	nextPurchases := slices.Delete(slices.Clone(l.purchases), idx, idx+1)
	nextDeleted := append(slices.Clone(l.deleted), archived)

	batch := shared.Batch{}
	if err := shared.PutRecords(batch, shared.CollectionPurchases, nextPurchases); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := shared.PutRecords(batch, shared.CollectionDeletedSales, nextDeleted); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := l.persist(ctx, batch); err != nil {
		return nil, err
	}
	l.purchases = nextPurchases
	l.deleted = nextDeleted

	l.logger.Info("Sale deleted",
		zap.String("sale_id", saleID.String()),
		zap.String("item", archived.ItemName),
		zap.String("revenue", archived.Revenue.StringFixed(2)),
	)
	return &archived, nil
}

// ReverseLastSale undoes the most recently recorded sale of an item and returns its
// unit to stock. The unit goes back to the stock item the sale came from, or to the
// first stock item with the same name for manual sales.
func (l *SalesLedger) ReverseLastSale(ctx context.Context, itemName string) (*trade.ReversalRecord, error) {
	record, err := l.reverseLastSale(ctx, itemName)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return record, nil
}

func (l *SalesLedger) reverseLastSale(ctx context.Context, itemName string) (*trade.ReversalRecord, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	idx := l.lastSaleIndex(func(s trade.SaleRecord) bool {
		return s.IsFor(itemName)
	})
	if idx < 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "No sale found for '"+itemName+"'")
	}
	return l.reverseAt(ctx, idx, l.restockIndex(l.purchases[idx]))
}

// ReverseLastSaleOf undoes the most recent sale of one stock item: a sale taken
// from it, or a manual sale under its name. The unit always returns to that item,
// even when other items share its name.
func (l *SalesLedger) ReverseLastSaleOf(ctx context.Context, stockItemID uuid.UUID) (*trade.ReversalRecord, error) {
	record, err := l.reverseLastSaleOf(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	l.notify(ctx)
	return record, nil
}

func (l *SalesLedger) reverseLastSaleOf(ctx context.Context, stockItemID uuid.UUID) (*trade.ReversalRecord, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	stockIdx := l.stockIndex(stockItemID)
	if stockIdx < 0 {
		return nil, shared.NewNotFoundError("Stock item", stockItemID.String())
	}
	name := l.stock[stockIdx].Name
	idx := l.lastSaleIndex(func(s trade.SaleRecord) bool {
		if s.StockItemID != nil {
			return *s.StockItemID == stockItemID
		}
		return s.IsFor(name)
	})
	if idx < 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "No sale found for '"+name+"'")
	}
	return l.reverseAt(ctx, idx, stockIdx)
}

// reverseAt moves purchase idx to the reversal history and returns its unit to
// stock item stockIdx, if any. The caller holds the ledger lock.
func (l *SalesLedger) reverseAt(ctx context.Context, idx, stockIdx int) (*trade.ReversalRecord, error) {
	now := l.clock()
	sale := l.purchases[idx]
	reversal := sale.Reverse(now)
	nextPurchases := slices.Delete(slices.Clone(l.purchases), idx, idx+1)
	nextReversals := append(slices.Clone(l.reversals), reversal)
	nextStock := slices.Clone(l.stock)

	batch := shared.Batch{}
	if stockIdx >= 0 {
		nextStock[stockIdx].ReturnUnit(now)
		if err := shared.PutRecords(batch, shared.CollectionStock, nextStock); err != nil {
			return nil, shared.NewPersistenceError(err)
		}
	} else {
		l.logger.Warn("Reversed sale has no matching stock item",
			zap.String("sale_id", sale.ID.String()),
			zap.String("item", sale.ItemName),
		)
	}
	if err := shared.PutRecords(batch, shared.CollectionPurchases, nextPurchases); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := shared.PutRecords(batch, shared.CollectionReversals, nextReversals); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := l.persist(ctx, batch); err != nil {
		return nil, err
	}
	l.stock = nextStock
	l.purchases = nextPurchases
	l.reversals = nextReversals

	fields := []zap.Field{
		zap.String("sale_id", sale.ID.String()),
		zap.String("item", sale.ItemName),
		zap.Bool("restocked", stockIdx >= 0),
	}
	if stockIdx >= 0 {
		fields = append(fields, zap.String("stock_item_id", nextStock[stockIdx].ID.String()))
	}
	l.logger.Info("Sale reversed", fields...)
	return &reversal, nil
}

// ListSales returns the purchase history in insertion order. A non-empty day
// restricts it to that date (YYYY-MM-DD).
func (l *SalesLedger) ListSales(ctx context.Context, day string) []trade.SaleRecord {
	l.view(ctx)
	defer l.mu.Unlock()

	if day == "" {
		return append(make([]trade.SaleRecord, 0, len(l.purchases)), l.purchases...)
	}
	result := make([]trade.SaleRecord, 0)
	for _, s := range l.purchases {
		if s.IsOn(day) {
			result = append(result, s)
		}
	}
	return result
}

// TodaysSales returns the sales recorded today
func (l *SalesLedger) TodaysSales(ctx context.Context) []trade.SaleRecord {
	return l.ListSales(ctx, l.Today())
}

// ListDeleted returns the deleted-sales archive, newest first. limit <= 0 returns everything.
func (l *SalesLedger) ListDeleted(ctx context.Context, limit int) []trade.DeletedSaleRecord {
	l.view(ctx)
	defer l.mu.Unlock()

	result := append(make([]trade.DeletedSaleRecord, 0, len(l.deleted)), l.deleted...)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// DeletedCount returns the size of the deleted-sales archive
func (l *SalesLedger) DeletedCount(ctx context.Context) int {
	l.view(ctx)
	defer l.mu.Unlock()
	return len(l.deleted)
}

// ListReversals returns the reversal history in the order reversals happened
func (l *SalesLedger) ListReversals(ctx context.Context) []trade.ReversalRecord {
	l.view(ctx)
	defer l.mu.Unlock()
	return append(make([]trade.ReversalRecord, 0, len(l.reversals)), l.reversals...)
}

// ClearDeleted empties the deleted-sales archive and returns how many records were removed
func (l *SalesLedger) ClearDeleted(ctx context.Context) (int, error) {
	n, err := l.clear(ctx, shared.CollectionDeletedSales)
	if err != nil {
		return 0, err
	}
	l.notify(ctx)
	return n, nil
}

// ClearSales empties the purchase history and returns how many records were removed
func (l *SalesLedger) ClearSales(ctx context.Context) (int, error) {
	n, err := l.clear(ctx, shared.CollectionPurchases)
	if err != nil {
		return 0, err
	}
	l.notify(ctx)
	return n, nil
}

func (l *SalesLedger) clear(ctx context.Context, collection shared.Collection) (int, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	switch collection {
	case shared.CollectionDeletedSales:
		n = len(l.deleted)
	case shared.CollectionPurchases:
		n = len(l.purchases)
	case shared.CollectionStock:
		n = len(l.stock)
	}
	if err := l.persist(ctx, shared.Batch{collection: {}}); err != nil {
		return 0, err
	}
	switch collection {
	case shared.CollectionDeletedSales:
		l.deleted = []trade.DeletedSaleRecord{}
	case shared.CollectionPurchases:
		l.purchases = []trade.SaleRecord{}
	case shared.CollectionStock:
		l.stock = []inventory.StockItem{}
	}

	l.logger.Warn("Collection cleared",
		zap.String("collection", collection.String()),
		zap.Int("removed", n),
	)
	return n, nil
}

// lastSaleIndex returns the newest purchase matching match, or -1
func (l *SalesLedger) lastSaleIndex(match func(trade.SaleRecord) bool) int {
	for i := len(l.purchases) - 1; i >= 0; i-- {
		if match(l.purchases[i]) {
			return i
		}
	}
	return -1
}

func (l *SalesLedger) stockIndex(id uuid.UUID) int {
	return slices.IndexFunc(l.stock, func(s inventory.StockItem) bool {
		return s.ID == id
	})
}

// restockIndex finds the stock item a sale's unit should return to
func (l *SalesLedger) restockIndex(sale trade.SaleRecord) int {
	if sale.StockItemID != nil {
		if idx := l.stockIndex(*sale.StockItemID); idx >= 0 {
			return idx
		}
	}
	return slices.IndexFunc(l.stock, func(s inventory.StockItem) bool {
		return sale.IsFor(s.Name)
	})
}

// acquire opens a mutation and returns the function that ends it. With a store
// lock the collections are reloaded first so the change applies to the latest state.
func (l *SalesLedger) acquire(ctx context.Context) (func(), error) {
	if l.storeLock == nil {
		l.mu.Lock()
		return l.mu.Unlock, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.lockWait)
	release, err := l.storeLock.Acquire(lockCtx, storeLockKey)
	cancel()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	if err := l.reload(ctx); err != nil {
		l.mu.Unlock()
		release()
		return nil, shared.NewPersistenceError(err)
	}
	return func() {
		l.mu.Unlock()
		release()
	}, nil
}

// view locks the ledger for a read; the caller unlocks mu
func (l *SalesLedger) view(ctx context.Context) {
	l.mu.Lock()
	if l.storeLock == nil {
		return
	}
	if err := l.reload(ctx); err != nil {
		l.logger.Warn("Reload failed, serving the last loaded sales", zap.Error(err))
	}
}

// reload replaces the in-memory collections with the stored ones
func (l *SalesLedger) reload(ctx context.Context) error {
	stock, err := shared.LoadRecords[inventory.StockItem](ctx, l.store, shared.CollectionStock)
	if err != nil {
		return err
	}
	purchases, err := shared.LoadRecords[trade.SaleRecord](ctx, l.store, shared.CollectionPurchases)
	if err != nil {
		return err
	}
	deleted, err := shared.LoadRecords[trade.DeletedSaleRecord](ctx, l.store, shared.CollectionDeletedSales)
	if err != nil {
		return err
	}
	reversals, err := shared.LoadRecords[trade.ReversalRecord](ctx, l.store, shared.CollectionReversals)
	if err != nil {
		return err
	}
	l.stock, l.purchases, l.deleted, l.reversals = stock, purchases, deleted, reversals
	return nil
}

func (l *SalesLedger) persist(ctx context.Context, batch shared.Batch) error {
	if err := l.store.SaveBatch(ctx, batch); err != nil {
		l.logger.Error("Failed to persist sales ledger", zap.Error(err))
		return shared.NewPersistenceError(err)
	}
	return nil
}

func (l *SalesLedger) notify(ctx context.Context) {
	l.mu.Lock()
	listeners := slices.Clone(l.listeners)
	l.mu.Unlock()

	for _, listener := range listeners {
		listener(ctx)
	}
}
