// Package metrics exposes Prometheus collectors for mutations, import jobs
// and the import worker pool.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
// Tests and the CLI rely on that instead of wiring a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "giftapi"

// Metrics owns a private registry and the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	mutations     *prometheus.CounterVec
	importJobs    *prometheus.CounterVec
	importRows    prometheus.Counter
	batchDuration prometheus.Histogram

	executorActive   prometheus.Gauge
	executorWorkers  prometheus.Gauge
	executorQueued   prometheus.Gauge
	executorRejected prometheus.Counter
}

// New creates and registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Kid and gift mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		importJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_jobs_total",
			Help:      "Finished kid import jobs by outcome.",
		}, []string{"outcome"}),
		importRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Rows sent to the store by import batches, including rolled back ones.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_batch_duration_seconds",
			Help:      "Time spent executing one batch insert.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		executorActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "active_tasks",
			Help:      "Import tasks currently running.",
		}),
		executorWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "workers",
			Help:      "Live import workers.",
		}),
		executorQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "queued_tasks",
			Help:      "Import tasks waiting for a worker.",
		}),
		executorRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "rejected_total",
			Help:      "Import tasks rejected because the pool was saturated.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations,
		m.importJobs,
		m.importRows,
		m.batchDuration,
		m.executorActive,
		m.executorWorkers,
		m.executorQueued,
		m.executorRejected,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveMutation counts one mutation attempt.
func (m *Metrics) ObserveMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// ObserveBatch records one executed import batch.
func (m *Metrics) ObserveBatch(rows int64, d time.Duration) {
	if m == nil {
		return
	}
	m.importRows.Add(float64(rows))
	m.batchDuration.Observe(d.Seconds())
}

// ImportFinished counts one finished import job.
func (m *Metrics) ImportFinished(outcome string) {
	if m == nil {
		return
	}
	m.importJobs.WithLabelValues(outcome).Inc()
}

// SetExecutorState publishes the worker pool gauges.
func (m *Metrics) SetExecutorState(active, workers, queued int) {
	if m == nil {
		return
	}
	m.executorActive.Set(float64(active))
	m.executorWorkers.Set(float64(workers))
	m.executorQueued.Set(float64(queued))
}

// ExecutorRejected counts one rejected submission.
func (m *Metrics) ExecutorRejected() {
	if m == nil {
		return
	}
	m.executorRejected.Inc()
}
