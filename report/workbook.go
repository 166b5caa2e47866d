package report

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"kpiload/kpi"
	"kpiload/models"
)

const (
	repeatSheet   = "repeat_customers"
	monthlySheet  = "monthly_order_trends"
	regionalSheet = "regional_revenue"
	topSheet      = "top_customers"
	ordersSheet   = "orders"
)

// chartTopRows caps the bars of the top customers chart.
const chartTopRows = 10

var ordersHeader = []string{"order_id", "mobile_number", "order_date_time", "sku_id", "sku_count", "total_amount"}

type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

func setSheet(f *excelize.File, s sheet) error {
	head := make([]interface{}, len(s.header))
	for i, h := range s.header {
		head[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &head); err != nil {
		return err
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// seriesRange is an absolute reference to rows 2..n+1 of one column.
func seriesRange(sheetName, col string, n int) string {
	return fmt.Sprintf("%s!$%s$2:$%s$%d", sheetName, col, col, n+1)
}

func addChart(f *excelize.File, sheetName string, typ excelize.ChartType, title string, n int) error {
	if n == 0 {
		return nil
	}
	return f.AddChart(sheetName, "D2", &excelize.Chart{
		Type: typ,
		Series: []excelize.ChartSeries{{
			Name:       title,
			Categories: seriesRange(sheetName, "A", n),
			Values:     seriesRange(sheetName, "B", n),
		}},
		Title: []excelize.RichTextRun{{Text: title}},
	})
}

func buildSheets(res kpi.Results, detail []models.Order, loc *time.Location) []sheet {
	repeat := sheet{name: repeatSheet, header: repeatHeader}
	for _, r := range res.Repeat {
		repeat.rows = append(repeat.rows, []interface{}{r.MobileNumber, r.OrderCount})
	}
	monthly := sheet{name: monthlySheet, header: monthlyHeader}
	for _, r := range res.Monthly {
		monthly.rows = append(monthly.rows, []interface{}{r.YearMonth, r.Orders})
	}
	regional := sheet{name: regionalSheet, header: regionalHeader}
	for _, r := range res.Regional {
		regional.rows = append(regional.rows, []interface{}{kpi.RegionName(r.Region), r.Revenue.InexactFloat64()})
	}
	top := sheet{name: topSheet, header: topHeader}
	for _, r := range res.Top {
		top.rows = append(top.rows, []interface{}{r.MobileNumber, r.Spend.InexactFloat64()})
	}
	orders := sheet{name: ordersSheet, header: ordersHeader}
	for _, o := range detail {
		orders.rows = append(orders.rows, []interface{}{
			o.OrderID,
			o.MobileNumber,
			o.OrderDateTime.In(loc).Format(time.DateTime),
			o.SkuID,
			o.SkuCount,
			o.TotalAmount.InexactFloat64(),
		})
	}
	return []sheet{repeat, monthly, regional, top, orders}
}

func (w *Writer) writeWorkbook(res kpi.Results, detail []models.Order, p Params) (string, error) {
	path := w.path(WorkbookFile)
	loc := p.Timezone
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	sheets := buildSheets(res, detail, loc)
	for i, s := range sheets {
		var err error
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), s.name)
		} else {
			_, err = f.NewSheet(s.name)
		}
		if err != nil {
			return path, errors.Wrapf(err, "add sheet %s", s.name)
		}
		if err := setSheet(f, s); err != nil {
			return path, errors.Wrapf(err, "fill sheet %s", s.name)
		}
	}

	topBars := len(res.Top)
	if topBars > chartTopRows {
		topBars = chartTopRows
	}
	charts := []struct {
		sheet string
		typ   excelize.ChartType
		title string
		n     int
	}{
		{monthlySheet, excelize.Line, "Orders by Month", len(res.Monthly)},
		{regionalSheet, excelize.Col, "Revenue by Region", len(res.Regional)},
		{topSheet, excelize.Col, fmt.Sprintf("Top Customers (last %d days)", p.WindowDays), topBars},
	}
	for _, c := range charts {
		if err := addChart(f, c.sheet, c.typ, c.title, c.n); err != nil {
			return path, errors.Wrapf(err, "add chart to %s", c.sheet)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return path, errors.Wrapf(err, "save %s", path)
	}
	return path, nil
}
