package facevec

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector defines an interface for collecting operational metrics.
// PrometheusCollector is the built-in adapter for Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each Add and Replace.
	RecordAdd(duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordDelete is called after each DeleteByUser.
	// removed is the number of embeddings dropped.
	RecordDelete(removed int, duration time.Duration, err error)

	// RecordPersist is called after each snapshot save.
	// count is the number of embeddings written.
	RecordPersist(count int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)          {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordPersist(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount          atomic.Int64
	AddErrors         atomic.Int64
	AddTotalNanos     atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	DeleteCount       atomic.Int64
	DeleteErrors      atomic.Int64
	DeletedEmbeddings atomic.Int64
	PersistCount      atomic.Int64
	PersistErrors     atomic.Int64
	PersistTotalNanos atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(removed int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeletedEmbeddings.Add(int64(removed))
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordPersist implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPersist(_ int, duration time.Duration, err error) {
	b.PersistCount.Add(1)
	b.PersistTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PersistErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:          b.AddCount.Load(),
		AddErrors:         b.AddErrors.Load(),
		AddAvgNanos:       avg(b.AddTotalNanos.Load(), b.AddCount.Load()),
		SearchCount:       b.SearchCount.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		DeleteCount:       b.DeleteCount.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
		DeletedEmbeddings: b.DeletedEmbeddings.Load(),
		PersistCount:      b.PersistCount.Load(),
		PersistErrors:     b.PersistErrors.Load(),
		PersistAvgNanos:   avg(b.PersistTotalNanos.Load(), b.PersistCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount          int64
	AddErrors         int64
	AddAvgNanos       int64
	SearchCount       int64
	SearchErrors      int64
	SearchAvgNanos    int64
	DeleteCount       int64
	DeleteErrors      int64
	DeletedEmbeddings int64
	PersistCount      int64
	PersistErrors     int64
	PersistAvgNanos   int64
}

// PrometheusCollector exports index metrics to Prometheus.
type PrometheusCollector struct {
	Operations *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Deleted    prometheus.Counter
	Persisted  prometheus.Gauge
}

// NewPrometheusCollector creates and registers the index metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facevec_operations_total",
			Help:      "Total number of index operations by type",
		}, []string{"op"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facevec_errors_total",
			Help:      "Total number of failed index operations by type",
		}, []string{"op"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "facevec_operation_duration_seconds",
			Help:      "Duration of index operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3s
		}, []string{"op"}),
		Deleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facevec_deleted_embeddings_total",
			Help:      "Total number of embeddings removed by delete",
		}),
		Persisted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facevec_persisted_embeddings",
			Help:      "Number of embeddings in the last successful snapshot",
		}),
	}
}

func (p *PrometheusCollector) observe(op string, duration time.Duration, err error) {
	p.Operations.WithLabelValues(op).Inc()
	p.Duration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		p.Errors.WithLabelValues(op).Inc()
	}
}

// RecordAdd implements MetricsCollector.
func (p *PrometheusCollector) RecordAdd(duration time.Duration, err error) {
	p.observe("add", duration, err)
}

// RecordSearch implements MetricsCollector.
func (p *PrometheusCollector) RecordSearch(_ int, duration time.Duration, err error) {
	p.observe("search", duration, err)
}

// RecordDelete implements MetricsCollector.
func (p *PrometheusCollector) RecordDelete(removed int, duration time.Duration, err error) {
	p.observe("delete", duration, err)
	p.Deleted.Add(float64(removed))
}

// RecordPersist implements MetricsCollector.
func (p *PrometheusCollector) RecordPersist(count int, duration time.Duration, err error) {
	p.observe("persist", duration, err)
	if err == nil {
		p.Persisted.Set(float64(count))
	}
}
