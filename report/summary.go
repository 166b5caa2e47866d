package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"kpiload/kpi"
	"kpiload/models"
)

const summaryRows = 10

func markdownTable(header []string, rows [][]string, limit int) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(header)) + "\n")
	if len(rows) == 0 {
		b.WriteString("| " + strings.TrimSpace(strings.Repeat("| ", len(header)-1)) + " |\n")
	}
	for i, r := range rows {
		if i == limit {
			break
		}
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	return b.String()
}

// Summary renders the markdown run summary.
func Summary(res kpi.Results, p Params) string {
	now := p.NowOverride
	if now == "" {
		now = "None"
	}
	tz := "UTC"
	if p.Timezone != nil {
		tz = p.Timezone.String()
	}
	var b strings.Builder
	b.WriteString("# Run Summary\n\n")
	fmt.Fprintf(&b, "- Mode: `%s`\n", p.Mode)
	fmt.Fprintf(&b, "- Customers file: `%s`\n", p.CustomersPath)
	fmt.Fprintf(&b, "- Orders file: `%s`\n", p.OrdersPath)
	fmt.Fprintf(&b, "- Timezone (monthly trends): `%s`\n", tz)
	fmt.Fprintf(&b, "- Order granularity: `%s`\n", p.Granularity)
	fmt.Fprintf(&b, "- Date window (days): `%d`\n", p.WindowDays)
	fmt.Fprintf(&b, "- Now override (UTC): `%s`\n", now)
	fmt.Fprintf(&b, "- Mask PII: `%t`\n\n", p.MaskPII)

	sections := []struct {
		title  string
		header []string
		rows   [][]string
	}{
		{"Repeat Customers (top)", repeatHeader, repeatRows(res.Repeat)},
		{"Monthly Order Trends", monthlyHeader, monthlyRows(res.Monthly)},
		{"Regional Revenue", regionalHeader, regionalRows(res.Regional)},
		{fmt.Sprintf("Top Customers (last %d days)", p.WindowDays), topHeader, topRows(res.Top)},
	}
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n", s.title, markdownTable(s.header, s.rows, summaryRows))
	}
	return b.String()
}

func (w *Writer) writeSummary(res kpi.Results, _ []models.Order, p Params) (string, error) {
	path := w.path(SummaryFile)
	if err := os.WriteFile(path, []byte(Summary(res, p)), 0o644); err != nil {
		return path, errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}
