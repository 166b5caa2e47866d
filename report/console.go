package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"kpiload/kpi"
)

// Rows shown per table on the console.
const (
	consoleRepeatRows   = 20
	consoleMonthlyRows  = 24
	consoleRegionalRows = 50
	consoleTopRows      = 20
)

func printTable(out io.Writer, title string, header []string, rows [][]string, limit int) {
	fmt.Fprintf(out, "\n%s\n", title)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, r := range rows {
		if i == limit {
			break
		}
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	if len(rows) == 0 {
		fmt.Fprintln(tw, "(empty)")
	}
	_ = tw.Flush()
}

// Print writes the head of every KPI table, tagged with the engine mode.
func Print(out io.Writer, mode string, res kpi.Results, windowDays int) {
	tag := "[" + strings.ToUpper(mode) + "]"
	printTable(out, tag+" Repeat customers:", repeatHeader, repeatRows(res.Repeat), consoleRepeatRows)
	printTable(out, tag+" Monthly order trends:", monthlyHeader, monthlyRows(res.Monthly), consoleMonthlyRows)
	printTable(out, tag+" Regional revenue:", regionalHeader, regionalRows(res.Regional), consoleRegionalRows)
	printTable(out, fmt.Sprintf("%s Top customers last %d days:", tag, windowDays), topHeader, topRows(res.Top), consoleTopRows)
}
