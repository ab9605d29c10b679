package report

import (
	"context"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/application/trade"
	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/report"
	"github.com/cas-inventory/backend/internal/domain/shared"
	domaintrade "github.com/cas-inventory/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SalesReader is the part of the sales ledger the aggregator reads
type SalesReader interface {
	Today() string
	ListSales(ctx context.Context, day string) []domaintrade.SaleRecord
	DeletedCount(ctx context.Context) int
	ListStock(ctx context.Context, filter trade.StockFilter) []inventory.StockItem
}

// DebtReader is the part of the debt ledger the aggregator reads
type DebtReader interface {
	TotalOutstanding(ctx context.Context) decimal.Decimal
	ActiveCount(ctx context.Context) int
}

// AnalyticsService computes dashboard summaries from the ledgers and keeps the
// per-day snapshot history in the analytics collection.
type AnalyticsService struct {
	sales  SalesReader
	debts  DebtReader
	store  shared.CollectionStore
	logger *zap.Logger
	clock  shared.Clock

	mu      sync.Mutex
	history []report.DailySnapshot
}

// AnalyticsOption configures AnalyticsService
type AnalyticsOption func(*AnalyticsService)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) AnalyticsOption {
	return func(s *AnalyticsService) {
		s.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(clock shared.Clock) AnalyticsOption {
	return func(s *AnalyticsService) {
		s.clock = clock
	}
}

// NewAnalyticsService creates the service and loads the snapshot history
func NewAnalyticsService(ctx context.Context, sales SalesReader, debts DebtReader, store shared.CollectionStore, opts ...AnalyticsOption) (*AnalyticsService, error) {
	s := &AnalyticsService{
		sales:  sales,
		debts:  debts,
		store:  store,
		logger: zap.NewNop(),
		clock:  shared.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("analytics")

	history, err := shared.LoadRecords[report.DailySnapshot](ctx, store, shared.CollectionAnalytics)
	if err != nil {
		return nil, err
	}
	s.history = history
	return s, nil
}

// Summary recomputes the dashboard figures from current ledger state
func (s *AnalyticsService) Summary(ctx context.Context) report.Summary {
	state := report.LedgerState{
		Sales:           s.sales.ListSales(ctx, ""),
		DeletedCount:    s.sales.DeletedCount(ctx),
		Stock:           s.sales.ListStock(ctx, trade.StockFilter{}),
		OutstandingDebt: s.debts.TotalOutstanding(ctx),
		ActiveDebtors:   s.debts.ActiveCount(ctx),
	}
	return report.Aggregate(state, s.sales.Today())
}

// RecordDailySnapshot upserts today's row into the snapshot history
func (s *AnalyticsService) RecordDailySnapshot(ctx context.Context) (*report.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// read under mu so snapshots are stored in the order their state was read
	snapshot := s.Summary(ctx).Daily(s.clock())
	next := report.UpsertDaily(s.history, snapshot)
	batch := shared.Batch{}
	if err := shared.PutRecords(batch, shared.CollectionAnalytics, next); err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		s.logger.Error("Failed to persist analytics snapshot", zap.Error(err))
		return nil, shared.NewPersistenceError(err)
	}
	s.history = next
	return &snapshot, nil
}

// History returns the stored daily snapshots, newest first. limit <= 0 returns all.
func (s *AnalyticsService) History(_ context.Context, limit int) []report.DailySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]report.DailySnapshot, n)
	copy(result, s.history[:n])
	return result
}

// Refresh is registered as a ledger change listener. Snapshot failures are logged
// and never surface to the mutation that triggered them.
func (s *AnalyticsService) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := s.RecordDailySnapshot(ctx); err != nil {
		s.logger.Warn("Daily snapshot refresh failed", zap.Error(err))
	}
}
