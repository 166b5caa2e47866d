package report

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"kpiload/kpi"
	"kpiload/models"
)

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

var (
	repeatHeader   = []string{"mobile_number", "order_count"}
	monthlyHeader  = []string{"ym", "orders"}
	regionalHeader = []string{"region", "revenue"}
	topHeader      = []string{"mobile_number", "spend_window"}
)

func repeatRows(rows []kpi.RepeatCustomer) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.MobileNumber, strconv.Itoa(r.OrderCount)}
	}
	return out
}

func monthlyRows(rows []kpi.MonthlyTrend) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.YearMonth, strconv.Itoa(r.Orders)}
	}
	return out
}

// the unknown region is an empty cell in CSV output
func regionalRows(rows []kpi.RegionRevenue) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		region := ""
		if r.Region != nil {
			region = *r.Region
		}
		out[i] = []string{region, r.Revenue.StringFixed(2)}
	}
	return out
}

func topRows(rows []kpi.TopSpender) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.MobileNumber, r.Spend.StringFixed(2)}
	}
	return out
}

func (w *Writer) writeRepeatCSV(res kpi.Results, _ []models.Order, _ Params) (string, error) {
	path := w.path(RepeatCustomersFile)
	return path, writeCSV(path, repeatHeader, repeatRows(res.Repeat))
}

func (w *Writer) writeMonthlyCSV(res kpi.Results, _ []models.Order, _ Params) (string, error) {
	path := w.path(MonthlyTrendsFile)
	return path, writeCSV(path, monthlyHeader, monthlyRows(res.Monthly))
}

func (w *Writer) writeRegionalCSV(res kpi.Results, _ []models.Order, _ Params) (string, error) {
	path := w.path(RegionalRevenueFile)
	return path, writeCSV(path, regionalHeader, regionalRows(res.Regional))
}

func (w *Writer) writeTopCSV(res kpi.Results, _ []models.Order, p Params) (string, error) {
	path := w.path(TopCustomersFile(p.WindowDays))
	return path, writeCSV(path, topHeader, topRows(res.Top))
}
