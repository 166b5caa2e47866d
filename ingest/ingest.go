// Package ingest loads the customer and order sources into the store and records an audit row per run.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"kpiload/kpi"
	"kpiload/metrics"
	"kpiload/models"
	"kpiload/normalize"
	"kpiload/source"
	"kpiload/store"
)

// Store is the part of store.Store ingestion writes to.
type Store interface {
	InsertCustomers(ctx context.Context, customers []models.Customer) (store.BatchResult, error)
	InsertOrders(ctx context.Context, orders []models.Order) (store.BatchResult, error)
	RecordRun(ctx context.Context, run *models.IngestRun) error
	BatchSize() int
}

type Options struct {
	CustomersPath string
	OrdersPath    string
	SourceZone    *time.Location // zone of order timestamps without an offset
}

type Summary struct {
	RunID         string                  `json:"run_id"`
	Customers     store.BatchResult       `json:"customers"`
	Orders        store.BatchResult       `json:"orders"`
	CustomerStats normalize.CustomerStats `json:"customer_stats"`
	OrderStats    normalize.OrderStats    `json:"order_stats"`
}

func (s Summary) String() string {
	return fmt.Sprintf("customers_inserted=%d customers_skipped=%d orders_inserted=%d orders_skipped=%d",
		s.Customers.Inserted, s.Customers.Skipped, s.Orders.Inserted, s.Orders.Skipped)
}

type Ingester struct {
	store   Store
	metrics *metrics.Registry
	logger  *log.Logger
	clock   func() time.Time
}

// NewIngester wires the store; reg may be nil.
func NewIngester(st Store, reg *metrics.Registry, logger *log.Logger) *Ingester {
	return &Ingester{store: st, metrics: reg, logger: logger, clock: time.Now}
}

// Run ingests customers first and then orders. Orders are streamed to the store one chunk at a time.
func (in *Ingester) Run(ctx context.Context, opts Options) (Summary, error) {
	run := models.IngestRun{
		ID:            uuid.NewString(),
		StartedAt:     in.clock().UTC(),
		CustomersPath: opts.CustomersPath,
		OrdersPath:    opts.OrdersPath,
	}
	sum := Summary{RunID: run.ID}
	var err error

	if sum.Customers, sum.CustomerStats, err = in.customers(ctx, opts.CustomersPath); err != nil {
		return sum, err
	}
	in.logger.Infof("customers: read %d, dropped %d, inserted %d, skipped %d",
		sum.CustomerStats.Read, sum.CustomerStats.Dropped, sum.Customers.Inserted, sum.Customers.Skipped)

	if sum.Orders, sum.OrderStats, err = in.orders(ctx, opts.OrdersPath, opts.SourceZone); err != nil {
		return sum, err
	}
	in.logger.Infof("orders: read %d, inserted %d, skipped %d",
		sum.OrderStats.Read, sum.Orders.Inserted, sum.Orders.Skipped)

	stats, err := json.Marshal(sum)
	if err != nil {
		return sum, errors.Wrap(err, "encode run stats")
	}
	run.FinishedAt = in.clock().UTC()
	run.Stats = datatypes.JSON(stats)
	if err := in.store.RecordRun(ctx, &run); err != nil {
		return sum, err
	}
	in.observe(sum)
	return sum, nil
}

func (in *Ingester) customers(ctx context.Context, path string) (store.BatchResult, normalize.CustomerStats, error) {
	rc, err := source.Open(path)
	if err != nil {
		return store.BatchResult{}, normalize.CustomerStats{}, err
	}
	defer rc.Close()
	customers, stats, err := normalize.LoadCustomers(rc, normalize.FormatFromPath(path), in.logger)
	if err != nil {
		return store.BatchResult{}, stats, errors.Wrapf(err, "load %s", path)
	}
	res, err := in.store.InsertCustomers(ctx, customers)
	return res, stats, errors.Wrap(err, "insert customers")
}

func (in *Ingester) orders(ctx context.Context, path string, loc *time.Location) (store.BatchResult, normalize.OrderStats, error) {
	rc, err := source.Open(path)
	if err != nil {
		return store.BatchResult{}, normalize.OrderStats{}, err
	}
	defer rc.Close()

	var (
		reader   = normalize.NewOrderReader(rc, loc)
		chunkSz  = in.store.BatchSize()
		chunk    = make([]models.Order, 0, chunkSz)
		total    store.BatchResult
		degraded int
	)
	if chunkSz <= 0 {
		chunkSz = store.DefaultBatchSize
	}
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		res, err := in.store.InsertOrders(ctx, chunk)
		if err != nil {
			return errors.Wrap(err, "insert orders")
		}
		total = total.Add(res)
		if d := reader.Stats().Degraded(); d > degraded {
			st := reader.Stats()
			in.logger.Warnf("orders batch had %d degraded fields (timestamps %d, counts %d, amounts %d so far)",
				d-degraded, st.BadTimestamps, st.BadCounts, st.BadAmounts)
			degraded = d
		}
		chunk = chunk[:0]
		return nil
	}
	for {
		o, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, reader.Stats(), errors.Wrapf(err, "load %s", path)
		}
		chunk = append(chunk, o)
		if len(chunk) == chunkSz {
			if err := flush(); err != nil {
				return total, reader.Stats(), err
			}
		}
	}
	return total, reader.Stats(), flush()
}

func (in *Ingester) observe(sum Summary) {
	if in.metrics == nil {
		return
	}
	m := in.metrics
	m.RowsRead.WithLabelValues("customers").Add(float64(sum.CustomerStats.Read))
	m.RowsRead.WithLabelValues("orders").Add(float64(sum.OrderStats.Read))
	m.RowsInserted.WithLabelValues("customers").Add(float64(sum.Customers.Inserted))
	m.RowsInserted.WithLabelValues("orders").Add(float64(sum.Orders.Inserted))
	m.RowsSkipped.WithLabelValues("customers").Add(float64(sum.Customers.Skipped))
	m.RowsSkipped.WithLabelValues("orders").Add(float64(sum.Orders.Skipped))
	m.CustomersDropped.Add(float64(sum.CustomerStats.Dropped))
	m.DegradedFields.WithLabelValues("order_date_time").Add(float64(sum.OrderStats.BadTimestamps))
	m.DegradedFields.WithLabelValues("sku_count").Add(float64(sum.OrderStats.BadCounts))
	m.DegradedFields.WithLabelValues("total_amount").Add(float64(sum.OrderStats.BadAmounts))
}

// ReadSnapshot loads both sources fully into memory for the memory engine.
func ReadSnapshot(opts Options, logger *log.Logger) (kpi.Snapshot, error) {
	crc, err := source.Open(opts.CustomersPath)
	if err != nil {
		return kpi.Snapshot{}, err
	}
	defer crc.Close()
	customers, _, err := normalize.LoadCustomers(crc, normalize.FormatFromPath(opts.CustomersPath), logger)
	if err != nil {
		return kpi.Snapshot{}, errors.Wrapf(err, "load %s", opts.CustomersPath)
	}

	orc, err := source.Open(opts.OrdersPath)
	if err != nil {
		return kpi.Snapshot{}, err
	}
	defer orc.Close()
	orders, stats, err := normalize.ReadAllOrders(orc, opts.SourceZone)
	if err != nil {
		return kpi.Snapshot{}, errors.Wrapf(err, "load %s", opts.OrdersPath)
	}
	if stats.Degraded() > 0 {
		logger.Warnf("orders had %d degraded fields (timestamps %d, counts %d, amounts %d)",
			stats.Degraded(), stats.BadTimestamps, stats.BadCounts, stats.BadAmounts)
	}
	return kpi.Snapshot{Customers: customers, Orders: orders}, nil
}
