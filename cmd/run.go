package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"kpiload/collapse"
	"kpiload/config"
	"kpiload/ingest"
	"kpiload/kpi"
	"kpiload/logger"
	"kpiload/metrics"
	"kpiload/models"
	"kpiload/publish"
	"kpiload/report"
	"kpiload/store"
)

// applyFlags lets explicitly set flags win over the config file and the environment.
func applyFlags(c *cli.Context, conf *config.Config) {
	setString := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	setString("customers", &conf.Input.Customers)
	setString("orders", &conf.Input.Orders)
	setString("source-tz", &conf.Input.SourceTimezone)
	setString("tz", &conf.KPI.Timezone)
	setString("order-granularity", &conf.KPI.Granularity)
	setString("outdir", &conf.Output.Dir)
	if c.IsSet("date-window") {
		conf.KPI.WindowDays = c.Int("date-window")
	}
	if c.IsSet("top-limit") {
		conf.KPI.TopLimit = c.Int("top-limit")
	}
	if c.IsSet("mask-pii") {
		conf.KPI.MaskPII = parseBool(c.String("mask-pii"))
	}
}

type runner struct {
	conf        config.Config
	logger      *log.Logger
	metrics     *metrics.Registry
	displayZone *time.Location
	sourceZone  *time.Location
	granularity collapse.Granularity
	now         time.Time
	nowRaw      string
	publish     bool
}

func run(c *cli.Context) error {
	start := time.Now()
	conf, err := config.ParseConfig(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, &conf)
	if err := config.ValidateConfig(conf); err != nil {
		return err
	}
	if !c.Bool("ingest") && !c.Bool("kpis-sql") && !c.Bool("kpis-memory") {
		return cli.ShowAppHelp(c)
	}
	defer measureTimeAndPrintData(start)

	lg, err := logger.SetupLogging(conf.Logging.LogPath, conf.Logging.LogLevel)
	if err != nil {
		return err
	}
	r := &runner{conf: conf, logger: lg, metrics: metrics.NewRegistry(), nowRaw: c.String("now")}
	r.displayZone, _ = time.LoadLocation(conf.KPI.Timezone)
	r.sourceZone, _ = time.LoadLocation(conf.Input.SourceTimezone)
	if r.granularity, err = collapse.ParseGranularity(conf.KPI.Granularity); err != nil {
		return err
	}
	if r.now, err = parseNow(r.nowRaw); err != nil {
		return err
	}
	r.publish = c.Bool("publish") || len(conf.Kafka.Brokers) > 0

	ctx := c.Context
	var st *store.Store
	if c.Bool("ingest") || c.Bool("kpis-sql") {
		policy, err := store.ParseConflictPolicy(conf.Database.ConflictPolicy)
		if err != nil {
			return err
		}
		st, err = store.Open(ctx, store.Options{
			Driver:          conf.Database.Driver,
			DSN:             conf.Database.DSN,
			CreateBatchSize: conf.Database.CreateBatchSize,
			ConflictPolicy:  policy,
		}, lg)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				lg.Errorln(err)
			}
		}()
	}

	if c.Bool("ingest") {
		if err := r.ingest(ctx, st); err != nil {
			return err
		}
	}
	both := c.Bool("kpis-sql") && c.Bool("kpis-memory")
	if c.Bool("kpis-sql") {
		if err := r.kpisSQL(ctx, st, r.outdir("sql", both)); err != nil {
			return err
		}
	}
	if c.Bool("kpis-memory") {
		if err := r.kpisMemory(ctx, r.outdir("memory", both)); err != nil {
			return err
		}
	}
	return r.writeMetrics()
}

// outdir puts each mode in its own subdirectory when both run.
func (r *runner) outdir(mode string, both bool) string {
	if r.conf.Output.Dir == "" || !both {
		return r.conf.Output.Dir
	}
	return filepath.Join(r.conf.Output.Dir, mode)
}

func (r *runner) ingest(ctx context.Context, st *store.Store) error {
	if err := st.InitTables(ctx); err != nil {
		return err
	}
	sum, err := ingest.NewIngester(st, r.metrics, r.logger).Run(ctx, r.inputs())
	if err != nil {
		return err
	}
	fmt.Println("Ingestion summary:", sum)
	return nil
}

func (r *runner) inputs() ingest.Options {
	return ingest.Options{
		CustomersPath: r.conf.Input.Customers,
		OrdersPath:    r.conf.Input.Orders,
		SourceZone:    r.sourceZone,
	}
}

func (r *runner) kpisSQL(ctx context.Context, st *store.Store, outdir string) error {
	// make sure a fresh database answers with empty tables rather than an error
	if err := st.InitTables(ctx); err != nil {
		return err
	}
	orders, err := st.AllOrders(ctx)
	if err != nil {
		return err
	}
	return r.kpis(ctx, "sql", store.NewKPIEngine(st, time.Now), orders, outdir)
}

func (r *runner) kpisMemory(ctx context.Context, outdir string) error {
	snap, err := ingest.ReadSnapshot(r.inputs(), r.logger)
	if err != nil {
		return err
	}
	return r.kpis(ctx, "memory", kpi.NewMemoryEngine(snap, time.Now), snap.Orders, outdir)
}

func (r *runner) kpis(ctx context.Context, mode string, engine kpi.Engine, orders []models.Order, outdir string) error {
	params := kpi.Params{
		Location:   r.displayZone,
		WindowDays: r.conf.KPI.WindowDays,
		TopLimit:   r.conf.KPI.TopLimit,
		Now:        r.now,
	}
	started := time.Now()
	res, err := kpi.Compute(ctx, engine, params)
	if err != nil {
		return errors.Wrapf(err, "%s kpis", mode)
	}
	r.metrics.KPISeconds.WithLabelValues(mode).Observe(time.Since(started).Seconds())

	detail, err := collapse.Collapse(orders, r.granularity)
	if err != nil {
		return err
	}
	if r.conf.KPI.MaskPII {
		res = report.MaskResults(res)
		detail = report.MaskOrders(detail)
	}
	report.Print(os.Stdout, mode, res, r.conf.KPI.WindowDays)

	if outdir != "" {
		_, err := report.NewWriter(outdir, r.logger).WriteAll(res, detail, report.Params{
			Mode:          mode,
			CustomersPath: r.conf.Input.Customers,
			OrdersPath:    r.conf.Input.Orders,
			Timezone:      r.displayZone,
			Granularity:   r.granularity,
			WindowDays:    r.conf.KPI.WindowDays,
			TopLimit:      r.conf.KPI.TopLimit,
			NowOverride:   r.nowRaw,
			MaskPII:       r.conf.KPI.MaskPII,
		})
		if err != nil {
			return err
		}
		fmt.Printf("\nSaved CSVs, workbook, and summary to: %s\n", outdir)
	}
	if r.publish {
		return r.publishResults(ctx, res)
	}
	return nil
}

func (r *runner) publishResults(ctx context.Context, res kpi.Results) error {
	p, err := publish.NewPublisher(publish.Config{
		Brokers:         r.conf.Kafka.Brokers,
		Topic:           r.conf.Kafka.Topic,
		WriteTimeOutSec: r.conf.Kafka.WriteTimeOutSec,
		BatchSize:       r.conf.Kafka.MsgBatchSize,
		DumpDir:         r.conf.Dumps.DumpDir,
		MaxDumpSize:     int64(r.conf.Dumps.MaxDumpSize),
		MaxBufSize:      r.conf.Dumps.MaxBufSize,
	}, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			r.logger.Errorln(err)
		}
	}()

	msgs, err := publish.FromResults(res, r.conf.KPI.WindowDays, time.Now())
	if err != nil {
		return err
	}
	sent, err := p.Publish(ctx, msgs)
	if err != nil {
		return err
	}
	retried, err := p.Flush(ctx)
	if err != nil {
		return err
	}
	delivered := sent.Sent + retried.Sent
	r.metrics.Published.WithLabelValues("sent").Add(float64(delivered))
	r.metrics.Published.WithLabelValues("dumped").Add(float64(len(msgs) - delivered))
	r.logger.Infof("published %d of %d kpi messages to %s", delivered, len(msgs), r.conf.Kafka.Topic)
	return nil
}

func (r *runner) writeMetrics() error {
	if r.conf.Output.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.conf.Output.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	_, err := r.metrics.WriteTextfile(r.conf.Output.Dir)
	return err
}
