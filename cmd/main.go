package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"kpiload/config"
)

var nowLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateTime, time.DateOnly}

// parseNow reads a --now override. Values without an offset are UTC.
func parseNow(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range nowLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("cannot parse --now %q: use YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS", s)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func measureTimeAndPrintData(start time.Time) {
	fmt.Printf("\nRun took %s\n", time.Since(start).Round(time.Millisecond))
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kpiload",
		Usage: "load customers and orders into a database and compute order KPIs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ingest", Usage: "ingest customers and orders into the database"},
			&cli.BoolFlag{Name: "kpis-sql", Usage: "compute KPIs with SQL on the database tables"},
			&cli.BoolFlag{Name: "kpis-memory", Usage: "compute KPIs in memory from the input files"},
			&cli.StringFlag{Name: "config", Value: config.DefaultPath, Usage: "yaml config file, KPILOAD_* environment variables override it"},
			&cli.StringFlag{Name: "customers", Usage: "customers CSV or XLSX, local path or hdfs:// url"},
			&cli.StringFlag{Name: "orders", Usage: "orders XML, local path or hdfs:// url"},
			&cli.StringFlag{Name: "outdir", Usage: "directory for CSVs, workbook and summary; empty prints to the console only"},
			&cli.StringFlag{Name: "tz", Usage: "timezone of the monthly trend"},
			&cli.StringFlag{Name: "source-tz", Usage: "timezone of order timestamps without an offset"},
			&cli.StringFlag{Name: "order-granularity", Usage: "header|line, selects the orders detail sheet"},
			&cli.IntFlag{Name: "date-window", Usage: "days in the top customers window"},
			&cli.IntFlag{Name: "top-limit", Usage: "rows in the top customers ranking"},
			&cli.StringFlag{Name: "now", Usage: "override now in UTC, e.g. 2025-11-07"},
			&cli.StringFlag{Name: "mask-pii", Usage: "true|false"},
			&cli.BoolFlag{Name: "publish", Usage: "publish KPI rows to kafka"},
		},
		Action: run,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
