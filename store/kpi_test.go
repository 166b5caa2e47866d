package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiload/kpi"
	"kpiload/models"
)

var now = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

func fixture() ([]models.Customer, []models.Order) {
	day := 24 * time.Hour
	customers := []models.Customer{
		{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "a", Region: strp("North")},
		{CustomerID: "C2", CustomerName: "Ravi", MobileNumber: "b", Region: strp("South")},
		{CustomerID: "C3", CustomerName: "Meera", MobileNumber: "c", Region: strp("North")},
		{CustomerID: "C4", CustomerName: "Dev", MobileNumber: "d"},
	}
	orders := []models.Order{
		testOrder("O1", "a", now.Add(-5*day), "10.10"),
		testOrder("O1", "a", now.Add(-5*day), "10.10"),
		testOrder("O2", "a", now.Add(-60*day), "33.30"),
		testOrder("O3", "b", now.Add(-1*day), "20.20"),
		testOrder("O4", "b", now.Add(-40*day), "100.00"),
		testOrder("O5", "c", now.Add(-2*day), "20.20"),
		testOrder("O6", "ghost", now.Add(-3*day), "4.44"),
		testOrder("O7", "d", time.Date(2025, 8, 31, 20, 0, 0, 0, time.UTC), "1.01"),
		testOrder("O8", "c", now.Add(-45*day), "0.05"),
	}
	return customers, orders
}

type money interface{ StringFixed(int32) string }

func fixed(m money) string { return m.StringFixed(2) }

func regionRows(rows []kpi.RegionRevenue) [][2]string {
	out := make([][2]string, len(rows))
	for i, r := range rows {
		out[i] = [2]string{kpi.RegionName(r.Region), fixed(r.Revenue)}
	}
	return out
}

func spenderRows(rows []kpi.TopSpender) [][2]string {
	out := make([][2]string, len(rows))
	for i, r := range rows {
		out[i] = [2]string{r.MobileNumber, fixed(r.Spend)}
	}
	return out
}

func TestKPIEngine_MatchesMemoryEngine(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, IgnoreRow, 3)
	customers, orders := fixture()
	_, err := s.InsertCustomers(ctx, customers)
	require.NoError(t, err)
	_, err = s.InsertOrders(ctx, orders)
	require.NoError(t, err)

	clock := func() time.Time { return now }
	sql := NewKPIEngine(s, clock)
	mem := kpi.NewMemoryEngine(kpi.Snapshot{Customers: customers, Orders: orders}, clock)

	sqlRepeat, err := sql.RepeatCustomers(ctx)
	require.NoError(t, err)
	memRepeat, err := mem.RepeatCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, memRepeat, sqlRepeat)
	assert.Equal(t, []kpi.RepeatCustomer{{MobileNumber: "a", OrderCount: 2}, {MobileNumber: "b", OrderCount: 2}, {MobileNumber: "c", OrderCount: 2}}, sqlRepeat)

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	for _, loc := range []*time.Location{time.UTC, kolkata} {
		sqlTrend, err := sql.MonthlyOrderTrends(ctx, loc)
		require.NoError(t, err)
		memTrend, err := mem.MonthlyOrderTrends(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, memTrend, sqlTrend, loc.String())
	}

	sqlRegion, err := sql.RegionalRevenue(ctx)
	require.NoError(t, err)
	memRegion, err := mem.RegionalRevenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, regionRows(memRegion), regionRows(sqlRegion))
	assert.Equal(t, [][2]string{{"South", "120.20"}, {"North", "63.65"}, {"(unknown)", "5.45"}}, regionRows(sqlRegion))

	sqlTop, err := sql.TopCustomersWindow(ctx, 30, time.Time{}, 10)
	require.NoError(t, err)
	memTop, err := mem.TopCustomersWindow(ctx, 30, now, 10)
	require.NoError(t, err)
	assert.Equal(t, spenderRows(memTop), spenderRows(sqlTop))
	assert.Equal(t, [][2]string{{"b", "20.20"}, {"c", "20.20"}, {"a", "10.10"}, {"ghost", "4.44"}}, spenderRows(sqlTop))
}

func TestKPIEngine_TopWindowScenario(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, IgnoreRow, 10)
	day := 24 * time.Hour
	_, err := s.InsertOrders(ctx, []models.Order{
		testOrder("1", "a", now.Add(-5*day), "10"),
		testOrder("2", "b", now.Add(-1*day), "20"),
		testOrder("3", "b", now.Add(-40*day), "100"),
	})
	require.NoError(t, err)

	got, err := NewKPIEngine(s, nil).TopCustomersWindow(ctx, 30, now, 1)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"b", "20.00"}}, spenderRows(got))
}

func TestKPIEngine_DefaultTopLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, IgnoreRow, 50)
	var orders []models.Order
	for i := 0; i < kpi.DefaultTopLimit+5; i++ {
		id := string(rune('A' + i))
		orders = append(orders, testOrder(id, id, now, "1"))
	}
	_, err := s.InsertOrders(ctx, orders)
	require.NoError(t, err)

	got, err := NewKPIEngine(s, nil).TopCustomersWindow(ctx, 30, now, 0)
	require.NoError(t, err)
	assert.Len(t, got, kpi.DefaultTopLimit)
	assert.Equal(t, "A", got[0].MobileNumber)
}

func TestKPIEngine_TopRanksOnRoundedSpend(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, IgnoreRow, 10)
	day := 24 * time.Hour
	orders := []models.Order{
		testOrder("1", "b", now.Add(-1*day), "0.1"),
		testOrder("2", "b", now.Add(-2*day), "0.2"),
		testOrder("3", "a", now.Add(-3*day), "0.3"),
	}
	_, err := s.InsertOrders(ctx, orders)
	require.NoError(t, err)

	sqlTop, err := NewKPIEngine(s, nil).TopCustomersWindow(ctx, 30, now, 1)
	require.NoError(t, err)
	memTop, err := kpi.NewMemoryEngine(kpi.Snapshot{Orders: orders}, nil).TopCustomersWindow(ctx, 30, now, 1)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"a", "0.30"}}, spenderRows(sqlTop))
	assert.Equal(t, spenderRows(memTop), spenderRows(sqlTop))
}

func TestMonthExpr(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	assert.Contains(t, monthExpr(DriverPostgres, kolkata), "AT TIME ZONE")
	assert.Contains(t, monthExpr(DriverMySQL, kolkata), "CONVERT_TZ")
	assert.Empty(t, monthExpr(DriverSQLite, kolkata))
	assert.Empty(t, monthExpr(DriverPostgres, time.Local))
	assert.Empty(t, monthExpr(DriverMySQL, time.Local))
}

func TestKPIEngine_MonthlyTrendsInLocalZone(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, IgnoreRow, 10)
	customers, orders := fixture()
	_, err := s.InsertCustomers(ctx, customers)
	require.NoError(t, err)
	_, err = s.InsertOrders(ctx, orders)
	require.NoError(t, err)

	got, err := NewKPIEngine(s, nil).MonthlyOrderTrends(ctx, time.Local)
	require.NoError(t, err)
	want, err := kpi.NewMemoryEngine(kpi.Snapshot{Customers: customers, Orders: orders}, nil).MonthlyOrderTrends(ctx, time.Local)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
