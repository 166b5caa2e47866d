// Package kpi defines the four business KPIs and computes them over an in-memory snapshot.
// The store package implements the same Engine by pushing the aggregation into SQL.
package kpi

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopLimit caps the top spender ranking when the caller passes no limit to the store engine.
const DefaultTopLimit = 10

const yearMonthLayout = "2006-01"

type RepeatCustomer struct {
	MobileNumber string `json:"mobile_number"`
	OrderCount   int    `json:"order_count"`
}

type MonthlyTrend struct {
	YearMonth string `json:"year_month"`
	Orders    int    `json:"orders"`
}

type RegionRevenue struct {
	Region  *string         `json:"region"` // nil collects orders without a known region
	Revenue decimal.Decimal `json:"revenue"`
}

type TopSpender struct {
	MobileNumber string          `json:"mobile_number"`
	Spend        decimal.Decimal `json:"spend"`
}

// Engine computes every KPI over header-level orders.
type Engine interface {
	RepeatCustomers(ctx context.Context) ([]RepeatCustomer, error)
	MonthlyOrderTrends(ctx context.Context, loc *time.Location) ([]MonthlyTrend, error)
	RegionalRevenue(ctx context.Context) ([]RegionRevenue, error)
	TopCustomersWindow(ctx context.Context, windowDays int, now time.Time, limit int) ([]TopSpender, error)
}

// YearMonth formats t as YYYY-MM in loc.
func YearMonth(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(yearMonthLayout)
}

// WindowStart is the inclusive lower bound of a trailing window of whole days.
func WindowStart(now time.Time, windowDays int) time.Time {
	return now.UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)
}

// Money rounds an aggregate to cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func SortRepeatCustomers(rows []RepeatCustomer) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].OrderCount != rows[j].OrderCount {
			return rows[i].OrderCount > rows[j].OrderCount
		}
		return rows[i].MobileNumber < rows[j].MobileNumber
	})
}

func SortMonthlyTrends(rows []MonthlyTrend) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].YearMonth < rows[j].YearMonth
	})
}

// SortRegionalRevenue orders by revenue desc, then region asc with the nil bucket last.
func SortRegionalRevenue(rows []RegionRevenue) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		ri, rj := rows[i].Region, rows[j].Region
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		default:
			return strings.Compare(*ri, *rj) < 0
		}
	})
}

func SortTopSpenders(rows []TopSpender) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Spend.Cmp(rows[j].Spend); c != 0 {
			return c > 0
		}
		return rows[i].MobileNumber < rows[j].MobileNumber
	})
}

// RegionName renders a region bucket for tables and charts.
func RegionName(r *string) string {
	if r == nil {
		return "(unknown)"
	}
	return *r
}
