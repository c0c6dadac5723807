package prometheus

import (
	"time"

	"money-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Store
	storeOps     *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	conflicts    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Journal writer
	queueDepth    *prometheus.GaugeVec
	droppedWrites *prometheus.CounterVec
	asyncWrites   *prometheus.CounterVec
	asyncLatency  *prometheus.HistogramVec

	// Ledger
	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	compensations   *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	pc := &PrometheusCollector{
		namespace: namespace,
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of document store operations per store and operation",
			},
			[]string{"store", "operation"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of failed document store operations per store and operation",
			},
			[]string{"store", "operation"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Document store operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"store", "operation"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "version_conflicts_total",
				Help:      "Total number of optimistic concurrency conflicts per collection",
			},
			[]string{"collection"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of read cache lookups per store and result",
			},
			[]string{"store", "result"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per store",
			},
			[]string{"store"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per store (0=closed, 1=open, 2=half-open)",
			},
			[]string{"store"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "journal_queue_depth",
				Help:      "Current journal writer queue depth",
			},
			[]string{"writer"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_dropped_writes_total",
				Help:      "Total number of journal entries dropped due to backpressure",
			},
			[]string{"writer"},
		),
		asyncWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_writes_total",
				Help:      "Total number of journal writes per writer and status",
			},
			[]string{"writer", "status"},
		),
		asyncLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "journal_write_duration_seconds",
				Help:      "Journal write latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"writer"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Total number of ledger mutations per entity, operation and outcome",
			},
			[]string{"entity", "operation", "outcome"},
		),
		mutationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Ledger mutation latency including every store round trip",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 15),
			},
			[]string{"entity", "operation"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Total number of saga compensation runs per saga and status",
			},
			[]string{"saga", "status"},
		),
	}

	return pc
}

func (pc *PrometheusCollector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pc.storeOps,
		pc.storeErrors,
		pc.storeLatency,
		pc.conflicts,
		pc.cacheLookups,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.droppedWrites,
		pc.asyncWrites,
		pc.asyncLatency,
		pc.mutations,
		pc.mutationLatency,
		pc.compensations,
	}
}

// Register registers all metrics with the given Prometheus registerer.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	for _, collector := range pc.collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Describe implements prometheus.Collector so the collector can be registered as a whole.
func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range pc.collectors() {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range pc.collectors() {
		collector.Collect(ch)
	}
}

// RecordStoreOp records a document store operation.
func (pc *PrometheusCollector) RecordStoreOp(store, operation string, success bool, duration time.Duration) {
	pc.storeOps.WithLabelValues(store, operation).Inc()
	if !success {
		pc.storeErrors.WithLabelValues(store, operation).Inc()
	}
	pc.storeLatency.WithLabelValues(store, operation).Observe(duration.Seconds())
}

// RecordConflict records a version conflict.
func (pc *PrometheusCollector) RecordConflict(collection string) {
	pc.conflicts.WithLabelValues(collection).Inc()
}

// RecordCacheLookup records a read cache hit or miss.
func (pc *PrometheusCollector) RecordCacheLookup(store string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pc.cacheLookups.WithLabelValues(store, result).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(store string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(store).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(store).Inc()
	}
}

// RecordQueueDepth records the current journal queue depth.
func (pc *PrometheusCollector) RecordQueueDepth(writer string, depth int) {
	pc.queueDepth.WithLabelValues(writer).Set(float64(depth))
}

// RecordWriteDropped records a dropped journal write.
func (pc *PrometheusCollector) RecordWriteDropped(writer string) {
	pc.droppedWrites.WithLabelValues(writer).Inc()
}

// RecordAsyncWrite records a journal write.
func (pc *PrometheusCollector) RecordAsyncWrite(writer string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.asyncWrites.WithLabelValues(writer, status).Inc()
	pc.asyncLatency.WithLabelValues(writer).Observe(duration.Seconds())
}

// RecordMutation records the outcome of a ledger mutation.
func (pc *PrometheusCollector) RecordMutation(entity, operation, outcome string, duration time.Duration) {
	pc.mutations.WithLabelValues(entity, operation, outcome).Inc()
	pc.mutationLatency.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// RecordCompensation records a saga compensation run.
func (pc *PrometheusCollector) RecordCompensation(saga string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.compensations.WithLabelValues(saga, status).Inc()
}
