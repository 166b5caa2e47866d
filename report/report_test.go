package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kpiload/collapse"
	"kpiload/kpi"
	"kpiload/models"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleResults() kpi.Results {
	north := "North"
	return kpi.Results{
		Repeat:   []kpi.RepeatCustomer{{MobileNumber: "9876543210", OrderCount: 3}},
		Monthly:  []kpi.MonthlyTrend{{YearMonth: "2025-09", Orders: 4}, {YearMonth: "2025-10", Orders: 2}},
		Regional: []kpi.RegionRevenue{{Region: &north, Revenue: decimal.RequireFromString("10.5")}, {Revenue: decimal.NewFromInt(1)}},
		Top: []kpi.TopSpender{
			{MobileNumber: "9876543210", Spend: decimal.RequireFromString("99.9")},
			{MobileNumber: "123", Spend: decimal.RequireFromString("5")},
		},
	}
}

func sampleParams() Params {
	return Params{
		Mode:          "memory",
		CustomersPath: "customers.csv",
		OrdersPath:    "orders.xml",
		Timezone:      time.UTC,
		Granularity:   collapse.Line,
		WindowDays:    30,
		NowOverride:   "2025-10-15",
		MaskPII:       true,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestMaskResults_CopiesAndMasks(t *testing.T) {
	res := sampleResults()
	masked := MaskResults(res)
	assert.Equal(t, "XXXXXX3210", masked.Repeat[0].MobileNumber)
	assert.Equal(t, "XXXXXX3210", masked.Top[0].MobileNumber)
	assert.Equal(t, "123", masked.Top[1].MobileNumber)
	assert.Equal(t, "9876543210", res.Repeat[0].MobileNumber, "input is not modified")
	assert.Equal(t, "9876543210", res.Top[0].MobileNumber)
}

func TestMaskOrders(t *testing.T) {
	in := []models.Order{{OrderID: "1", MobileNumber: "9876543210"}}
	out := MaskOrders(in)
	assert.Equal(t, "XXXXXX3210", out[0].MobileNumber)
	assert.Equal(t, "9876543210", in[0].MobileNumber)
}

func TestWriter_WriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := MaskResults(sampleResults())
	detail := MaskOrders([]models.Order{
		{OrderID: "O1", MobileNumber: "9876543210", OrderDateTime: time.Date(2025, 10, 1, 5, 0, 0, 0, time.UTC), SkuID: "S1", SkuCount: 2, TotalAmount: decimal.RequireFromString("10.50")},
		{OrderID: "O1", MobileNumber: "9876543210", OrderDateTime: time.Date(2025, 10, 1, 5, 0, 0, 0, time.UTC), SkuID: "S2", SkuCount: 1, TotalAmount: decimal.RequireFromString("10.50")},
	})

	paths, err := NewWriter(dir, quietLogger()).WriteAll(res, detail, sampleParams())
	require.NoError(t, err)
	require.Len(t, paths, 6)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	assert.Equal(t, [][]string{{"mobile_number", "order_count"}, {"XXXXXX3210", "3"}}, readCSV(t, filepath.Join(dir, RepeatCustomersFile)))
	assert.Equal(t, [][]string{{"region", "revenue"}, {"North", "10.50"}, {"", "1.00"}}, readCSV(t, filepath.Join(dir, RegionalRevenueFile)))
	top := readCSV(t, filepath.Join(dir, "top_customers_last_30_days.csv"))
	assert.Equal(t, []string{"XXXXXX3210", "99.90"}, top[1])

	f, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{repeatSheet, monthlySheet, regionalSheet, topSheet, ordersSheet}, f.GetSheetList())
	orders, err := f.GetRows(ordersSheet)
	require.NoError(t, err)
	require.Len(t, orders, 3, "line granularity keeps both lines")
	assert.Equal(t, "XXXXXX3210", orders[1][1])
	assert.Equal(t, "2025-10-01 05:00:00", orders[1][2])
	month, err := f.GetCellValue(monthlySheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "2025-10", month)

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "- Order granularity: `line`")
	assert.Contains(t, string(summary), "- Now override (UTC): `2025-10-15`")
	assert.Contains(t, string(summary), "## Top Customers (last 30 days)")
	assert.Contains(t, string(summary), "| XXXXXX3210 | 99.90 |")
	assert.NotContains(t, string(summary), "9876543210")
}

func TestWriter_EmptyResults(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir, quietLogger()).WriteAll(kpi.Results{}, nil, sampleParams())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ym", "orders"}}, readCSV(t, filepath.Join(dir, MonthlyTrendsFile)))
}

func TestPrint_Heads(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResults()
	for i := 0; i < 30; i++ {
		res.Repeat = append(res.Repeat, kpi.RepeatCustomer{MobileNumber: "m", OrderCount: 2})
	}
	Print(&buf, "sql", res, 7)
	out := buf.String()
	assert.Contains(t, out, "[SQL] Repeat customers:")
	assert.Contains(t, out, "[SQL] Top customers last 7 days:")
	section := out[strings.Index(out, "Repeat customers:"):strings.Index(out, "Monthly order trends:")]
	shown := 0
	for _, l := range strings.Split(section, "\n") {
		if strings.HasPrefix(l, "m ") || strings.HasPrefix(l, "9876543210") {
			shown++
		}
	}
	assert.Equal(t, consoleRepeatRows, shown)
}
