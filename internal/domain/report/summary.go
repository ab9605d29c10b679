package report

import (
	"slices"
	"strings"
	"time"

	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/cas-inventory/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// LedgerState is the ledger data a summary is computed from
type LedgerState struct {
	Sales           []trade.SaleRecord
	DeletedCount    int
	Stock           []inventory.StockItem
	OutstandingDebt decimal.Decimal
	ActiveDebtors   int
}

// Summary holds the dashboard figures. It is recomputed from ledger state on every read.
type Summary struct {
	Date                 string          `json:"date"`
	TodaysSaleCount      int             `json:"todaysSaleCount"`
	TodaysRevenue        decimal.Decimal `json:"todaysRevenue"`
	TotalSalesCount      int             `json:"totalSalesCount"`
	TotalRevenueAllTime  decimal.Decimal `json:"totalRevenueAllTime"`
	TotalOutstandingDebt decimal.Decimal `json:"totalOutstandingDebt"`
	ActiveDebtorCount    int             `json:"activeDebtorCount"`
	DeletedCount         int             `json:"deletedCount"`
	StockUnits           int             `json:"stockUnits"`
	StockValue           decimal.Decimal `json:"stockValue"`
}

// Aggregate computes the summary for the given day.
// All-time revenue covers the current purchase history only; deleted sales are excluded.
func Aggregate(state LedgerState, today string) Summary {
	summary := Summary{
		Date:                 today,
		TotalOutstandingDebt: state.OutstandingDebt,
		ActiveDebtorCount:    state.ActiveDebtors,
		DeletedCount:         state.DeletedCount,
		TotalSalesCount:      len(state.Sales),
	}

	zero := valueobject.Zero(valueobject.GHS)
	allTime, todays, stock := zero, zero, zero
	for _, sale := range state.Sales {
		revenue := valueobject.NewMoneyGHS(sale.Revenue)
		allTime = allTime.MustAdd(revenue)
		if sale.IsOn(today) {
			summary.TodaysSaleCount++
			todays = todays.MustAdd(revenue)
		}
	}
	for i := range state.Stock {
		summary.StockUnits += state.Stock[i].Quantity
		stock = stock.MustAdd(valueobject.NewMoneyGHS(state.Stock[i].Value()))
	}
	summary.TotalRevenueAllTime = allTime.Amount()
	summary.TodaysRevenue = todays.Amount()
	summary.StockValue = stock.Amount()

	return summary
}

// DailySnapshot is the per-day analytics row kept in the analytics collection
type DailySnapshot struct {
	Date         string          `json:"date"`
	TotalSales   int             `json:"totalSales"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalItems   int             `json:"totalItems"`
	TotalDebtors int             `json:"totalDebtors"`
	TotalDebt    decimal.Decimal `json:"totalDebt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Daily projects a summary onto the snapshot row for its date
func (s Summary) Daily(at time.Time) DailySnapshot {
	return DailySnapshot{
		Date:         s.Date,
		TotalSales:   s.TodaysSaleCount,
		TotalRevenue: s.TodaysRevenue,
		TotalItems:   s.StockUnits,
		TotalDebtors: s.ActiveDebtorCount,
		TotalDebt:    s.TotalOutstandingDebt,
		UpdatedAt:    at,
	}
}

// UpsertDaily replaces the snapshot with the same date, or appends it.
// The returned history is sorted newest first.
func UpsertDaily(history []DailySnapshot, snapshot DailySnapshot) []DailySnapshot {
	next := make([]DailySnapshot, 0, len(history)+1)
	for _, existing := range history {
		if existing.Date != snapshot.Date {
			next = append(next, existing)
		}
	}
	next = append(next, snapshot)
	slices.SortStableFunc(next, func(a, b DailySnapshot) int {
		return strings.Compare(b.Date, a.Date)
	})
	return next
}
