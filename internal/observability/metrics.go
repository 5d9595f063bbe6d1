// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	HoldingsObserved prometheus.Gauge
	PortfolioValue   prometheus.Gauge

	// Enrichment metrics
	PriceLookups *prometheus.CounterVec

	// Reconciliation metrics
	RowsWritten   *prometheus.CounterVec
	EventsEmitted prometheus.Counter

	// Notification metrics
	Notifications *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "portfolio_watch"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of reconciliation cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Reconciliation cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		HoldingsObserved: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "holdings_observed",
			Help:      "Number of non-zero holdings observed in the last cycle",
		}),
		PortfolioValue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "portfolio_value_usd",
			Help:      "Sum of total values reconciled in the last cycle",
		}),

		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Total number of price lookups by result",
		}, []string{"result"}),

		RowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "rows_written_total",
			Help:      "Total number of snapshot rows written by kind",
		}, []string{"kind"}),
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "significant_changes_total",
			Help:      "Total number of significant change events emitted",
		}),

		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Total number of notifications by outcome",
		}, []string{"outcome"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of store operation errors",
		}, []string{"database", "operation"}),

		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records a finished cycle with status "ok", "error" or "panic".
func RecordCycle(status string, durationSeconds float64) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
}

// RecordCycleSuccess stamps the last successful cycle time.
func RecordCycleSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulCycle.Set(float64(unixSeconds))
}

// UpdatePortfolio sets the holdings and value gauges.
func UpdatePortfolio(holdings int, valueUSD float64) {
	DefaultMetrics.HoldingsObserved.Set(float64(holdings))
	DefaultMetrics.PortfolioValue.Set(valueUSD)
}

// RecordPriceLookup records a price lookup with result "ok" or "error".
func RecordPriceLookup(result string) {
	DefaultMetrics.PriceLookups.WithLabelValues(result).Inc()
}

// RecordRowWritten records a snapshot write of kind "insert" or "update".
func RecordRowWritten(kind string) {
	DefaultMetrics.RowsWritten.WithLabelValues(kind).Inc()
}

// RecordEvent increments the significant change counter.
func RecordEvent() {
	DefaultMetrics.EventsEmitted.Inc()
}

// RecordNotification records a notification outcome: "sent", "skipped" or "failed".
func RecordNotification(outcome string) {
	DefaultMetrics.Notifications.WithLabelValues(outcome).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
