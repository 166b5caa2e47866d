package metrics

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const FileName = "metrics.prom"

type Registry struct {
	reg              *prometheus.Registry
	RowsRead         *prometheus.CounterVec // by source
	RowsInserted     *prometheus.CounterVec // by table
	RowsSkipped      *prometheus.CounterVec // by table
	CustomersDropped prometheus.Counter
	DegradedFields   *prometheus.CounterVec // by field
	KPISeconds       *prometheus.HistogramVec
	Published        *prometheus.CounterVec // by outcome
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	read := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kpiload_rows_read_total"}, []string{"source"})
	inserted := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kpiload_rows_inserted_total"}, []string{"table"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kpiload_rows_skipped_total"}, []string{"table"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "kpiload_customers_dropped_total"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kpiload_degraded_fields_total"}, []string{"field"})
	kpiSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kpiload_kpi_compute_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kpiload_messages_published_total"}, []string{"outcome"})

	r.MustRegister(read, inserted, skipped, dropped, degraded, kpiSeconds, published)
	return &Registry{
		reg:              r,
		RowsRead:         read,
		RowsInserted:     inserted,
		RowsSkipped:      skipped,
		CustomersDropped: dropped,
		DegradedFields:   degraded,
		KPISeconds:       kpiSeconds,
		Published:        published,
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format to dir/metrics.prom.
func (r *Registry) WriteTextfile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return "", errors.Wrap(err, "write metrics textfile")
	}
	return path, nil
}
