package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"kpiload/kpi"
	"kpiload/models"
)

// KPIEngine answers the KPI queries in SQL. The orders table holds one row per order_id,
// so it already is the header view.
type KPIEngine struct {
	s     *Store
	clock func() time.Time
}

func NewKPIEngine(s *Store, clock func() time.Time) *KPIEngine {
	if clock == nil {
		clock = time.Now
	}
	return &KPIEngine{s: s, clock: clock}
}

var _ kpi.Engine = (*KPIEngine)(nil)

func (e *KPIEngine) RepeatCustomers(ctx context.Context) ([]kpi.RepeatCustomer, error) {
	var rows []kpi.RepeatCustomer
	err := e.s.db.WithContext(ctx).Model(&models.Order{}).
		Select("mobile_number, COUNT(*) AS order_count").
		Group("mobile_number").
		Having("COUNT(*) > 1").
		Order("order_count DESC, mobile_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query repeat customers")
	}
	kpi.SortRepeatCustomers(rows)
	return rows, nil
}

type monthCount struct {
	Bucket *string // YYYY-MM, nil when the zone conversion failed
	Orders int
}

type instantCount struct {
	OrderDateTime time.Time
	Orders        int
}

// MonthlyOrderTrends converts to loc inside the database where it can and otherwise
// folds exact timestamps into months in Go.
func (e *KPIEngine) MonthlyOrderTrends(ctx context.Context, loc *time.Location) ([]kpi.MonthlyTrend, error) {
	if loc == nil {
		loc = time.UTC
	}
	expr := monthExpr(e.s.Dialect(), loc)
	if expr != "" {
		var months []monthCount
		err := e.s.db.WithContext(ctx).Model(&models.Order{}).
			Select(expr+" AS bucket, COUNT(*) AS orders", loc.String()).
			Group("bucket").
			Scan(&months).Error
		if err != nil {
			return nil, errors.Wrap(err, "query monthly order trends")
		}
		rows, ok := monthRows(months)
		if ok {
			return rows, nil
		}
		e.s.Logger.Warnf("database cannot convert to %s, grouping months in process", loc)
	}
	return e.foldMonths(ctx, loc)
}

// monthExpr returns the bucketing expression for dialect, or "" when months must be folded in Go.
// Local has no name the database can resolve.
func monthExpr(dialect string, loc *time.Location) string {
	if loc.String() == "Local" {
		return ""
	}
	switch dialect {
	case DriverPostgres:
		return "to_char(order_date_time AT TIME ZONE ?, 'YYYY-MM')"
	case DriverMySQL:
		return "DATE_FORMAT(CONVERT_TZ(order_date_time, '+00:00', ?), '%Y-%m')"
	}
	return ""
}

func monthRows(months []monthCount) ([]kpi.MonthlyTrend, bool) {
	rows := make([]kpi.MonthlyTrend, 0, len(months))
	for _, m := range months {
		if m.Bucket == nil {
			return nil, false
		}
		rows = append(rows, kpi.MonthlyTrend{YearMonth: *m.Bucket, Orders: m.Orders})
	}
	kpi.SortMonthlyTrends(rows)
	return rows, true
}

func (e *KPIEngine) foldMonths(ctx context.Context, loc *time.Location) ([]kpi.MonthlyTrend, error) {
	var instants []instantCount
	err := e.s.db.WithContext(ctx).Model(&models.Order{}).
		Select("order_date_time, COUNT(*) AS orders").
		Group("order_date_time").
		Scan(&instants).Error
	if err != nil {
		return nil, errors.Wrap(err, "query order timestamps")
	}
	counts := make(map[string]int)
	for _, ic := range instants {
		counts[kpi.YearMonth(ic.OrderDateTime, loc)] += ic.Orders
	}
	rows := make([]kpi.MonthlyTrend, 0, len(counts))
	for ym, n := range counts {
		rows = append(rows, kpi.MonthlyTrend{YearMonth: ym, Orders: n})
	}
	kpi.SortMonthlyTrends(rows)
	return rows, nil
}

type regionSum struct {
	Region  *string
	Revenue decimal.Decimal
}

func (e *KPIEngine) RegionalRevenue(ctx context.Context) ([]kpi.RegionRevenue, error) {
	var sums []regionSum
	err := e.s.db.WithContext(ctx).Table("orders AS o").
		Select("c.region AS region, SUM(o.total_amount) AS revenue").
		Joins("LEFT JOIN customers AS c ON c.mobile_number = o.mobile_number").
		Group("c.region").
		Scan(&sums).Error
	if err != nil {
		return nil, errors.Wrap(err, "query regional revenue")
	}
	rows := make([]kpi.RegionRevenue, len(sums))
	for i, r := range sums {
		rows[i] = kpi.RegionRevenue{Region: r.Region, Revenue: kpi.Money(r.Revenue)}
	}
	kpi.SortRegionalRevenue(rows)
	return rows, nil
}

type mobileSum struct {
	MobileNumber string
	Spend        decimal.Decimal
}

// TopCustomersWindow ranks spend since now minus windowDays, returning at most DefaultTopLimit rows when limit <= 0.
func (e *KPIEngine) TopCustomersWindow(ctx context.Context, windowDays int, now time.Time, limit int) ([]kpi.TopSpender, error) {
	if now.IsZero() {
		now = e.clock()
	}
	if limit <= 0 {
		limit = kpi.DefaultTopLimit
	}
	var sums []mobileSum
	err := e.s.db.WithContext(ctx).Model(&models.Order{}).
		// sqlite sums REAL, so rank on the rounded amount the memory engine compares.
		Select("mobile_number, ROUND(SUM(total_amount), 2) AS spend").
		Where("order_date_time >= ?", kpi.WindowStart(now, windowDays)).
		Group("mobile_number").
		Order("spend DESC, mobile_number ASC").
		Limit(limit).
		Scan(&sums).Error
	if err != nil {
		return nil, errors.Wrap(err, "query top customers")
	}
	rows := make([]kpi.TopSpender, len(sums))
	for i, m := range sums {
		rows[i] = kpi.TopSpender{MobileNumber: m.MobileNumber, Spend: kpi.Money(m.Spend)}
	}
	kpi.SortTopSpenders(rows)
	return rows, nil
}
