// Package report renders KPI results as CSV files, a chart workbook, a markdown summary and console tables.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kpiload/collapse"
	"kpiload/kpi"
	"kpiload/mask"
	"kpiload/models"
)

const (
	RepeatCustomersFile = "repeat_customers.csv"
	MonthlyTrendsFile   = "monthly_order_trends.csv"
	RegionalRevenueFile = "regional_revenue.csv"
	WorkbookFile        = "kpis.xlsx"
	SummaryFile         = "summary.md"
)

func TopCustomersFile(windowDays int) string {
	return fmt.Sprintf("top_customers_last_%d_days.csv", windowDays)
}

// Params are the run parameters echoed into the summary.
type Params struct {
	Mode          string // sql or memory
	CustomersPath string
	OrdersPath    string
	Timezone      *time.Location
	Granularity   collapse.Granularity
	WindowDays    int
	TopLimit      int
	NowOverride   string // as given, empty when the clock was used
	MaskPII       bool
}

// MaskResults returns a copy of res with every mobile number masked. res itself is untouched.
func MaskResults(res kpi.Results) kpi.Results {
	out := kpi.Results{
		Repeat:   make([]kpi.RepeatCustomer, len(res.Repeat)),
		Monthly:  append([]kpi.MonthlyTrend(nil), res.Monthly...),
		Regional: append([]kpi.RegionRevenue(nil), res.Regional...),
		Top:      make([]kpi.TopSpender, len(res.Top)),
	}
	for i, r := range res.Repeat {
		out.Repeat[i] = kpi.RepeatCustomer{MobileNumber: mask.Mask(r.MobileNumber), OrderCount: r.OrderCount}
	}
	for i, r := range res.Top {
		out.Top[i] = kpi.TopSpender{MobileNumber: mask.Mask(r.MobileNumber), Spend: r.Spend}
	}
	return out
}

// MaskOrders masks the mobile number of every order in a copy of orders.
func MaskOrders(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		o.MobileNumber = mask.Mask(o.MobileNumber)
		out[i] = o
	}
	return out
}

// Writer puts every artifact of one KPI run into dir.
type Writer struct {
	dir    string
	logger *log.Logger
}

func NewWriter(dir string, logger *log.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

func (w *Writer) path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteAll writes the CSVs, the workbook and the summary and returns their paths.
// res and detail must already be masked when masking is on.
func (w *Writer) WriteAll(res kpi.Results, detail []models.Order, p Params) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}
	var written []string
	for _, write := range []func(kpi.Results, []models.Order, Params) (string, error){
		w.writeRepeatCSV,
		w.writeMonthlyCSV,
		w.writeRegionalCSV,
		w.writeTopCSV,
		w.writeWorkbook,
		w.writeSummary,
	} {
		path, err := write(res, detail, p)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	w.logger.Infof("saved %d report files to %s", len(written), w.dir)
	return written, nil
}
