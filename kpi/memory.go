package kpi

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"kpiload/collapse"
	"kpiload/models"
)

// Snapshot is the pair of normalized inputs the memory engine works on.
type Snapshot struct {
	Customers []models.Customer
	Orders    []models.Order // line level; collapsed by the engine
}

// MemoryEngine recomputes the KPIs from a Snapshot without touching a store.
type MemoryEngine struct {
	headers []models.Order
	regions map[string]*string
	clock   func() time.Time
}

// NewMemoryEngine collapses the snapshot once; clock is read when a window query gets a zero now.
func NewMemoryEngine(s Snapshot, clock func() time.Time) *MemoryEngine {
	if clock == nil {
		clock = time.Now
	}
	regions := make(map[string]*string, len(s.Customers))
	for _, c := range s.Customers {
		if _, ok := regions[c.MobileNumber]; !ok {
			regions[c.MobileNumber] = c.Region
		}
	}
	return &MemoryEngine{
		headers: collapse.Headers(s.Orders),
		regions: regions,
		clock:   clock,
	}
}

// Headers returns the collapsed orders the engine aggregates over.
func (e *MemoryEngine) Headers() []models.Order {
	return e.headers
}

func (e *MemoryEngine) RepeatCustomers(ctx context.Context) ([]RepeatCustomer, error) {
	counts := make(map[string]int)
	for _, o := range e.headers {
		counts[o.MobileNumber]++
	}
	var rows []RepeatCustomer
	for mobile, n := range counts {
		if n > 1 {
			rows = append(rows, RepeatCustomer{MobileNumber: mobile, OrderCount: n})
		}
	}
	SortRepeatCustomers(rows)
	return rows, ctx.Err()
}

func (e *MemoryEngine) MonthlyOrderTrends(ctx context.Context, loc *time.Location) ([]MonthlyTrend, error) {
	counts := make(map[string]int)
	for _, o := range e.headers {
		counts[YearMonth(o.OrderDateTime, loc)]++
	}
	rows := make([]MonthlyTrend, 0, len(counts))
	for ym, n := range counts {
		rows = append(rows, MonthlyTrend{YearMonth: ym, Orders: n})
	}
	SortMonthlyTrends(rows)
	return rows, ctx.Err()
}

func (e *MemoryEngine) RegionalRevenue(ctx context.Context) ([]RegionRevenue, error) {
	var (
		byRegion = make(map[string]decimal.Decimal)
		names    = make(map[string]*string)
		unknown  decimal.Decimal
		sawNil   bool
	)
	for _, o := range e.headers {
		region := e.regions[o.MobileNumber]
		if region == nil {
			unknown = unknown.Add(o.TotalAmount)
			sawNil = true
			continue
		}
		byRegion[*region] = byRegion[*region].Add(o.TotalAmount)
		names[*region] = region
	}
	rows := make([]RegionRevenue, 0, len(byRegion)+1)
	for name, sum := range byRegion {
		rows = append(rows, RegionRevenue{Region: names[name], Revenue: Money(sum)})
	}
	if sawNil {
		rows = append(rows, RegionRevenue{Revenue: Money(unknown)})
	}
	SortRegionalRevenue(rows)
	return rows, ctx.Err()
}

// TopCustomersWindow ranks spend since now minus windowDays. A limit <= 0 returns the full ranking.
func (e *MemoryEngine) TopCustomersWindow(ctx context.Context, windowDays int, now time.Time, limit int) ([]TopSpender, error) {
	if now.IsZero() {
		now = e.clock()
	}
	start := WindowStart(now, windowDays)
	spend := make(map[string]decimal.Decimal)
	for _, o := range e.headers {
		if o.OrderDateTime.Before(start) {
			continue
		}
		spend[o.MobileNumber] = spend[o.MobileNumber].Add(o.TotalAmount)
	}
	rows := make([]TopSpender, 0, len(spend))
	for mobile, sum := range spend {
		rows = append(rows, TopSpender{MobileNumber: mobile, Spend: Money(sum)})
	}
	SortTopSpenders(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, ctx.Err()
}
