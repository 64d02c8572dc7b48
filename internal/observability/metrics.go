// Package observability provides Prometheus metrics for monitoring.
//
// All metrics are plaintext operational counters. Nothing here may derive
// from an encrypted value: there is deliberately no "threats flagged"
// counter, because the threat verdict exists only as a ciphertext.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Operation metrics
	AnalysesTotal     prometheus.Counter
	UpdatesTotal      prometheus.Counter
	CalibrationsTotal prometheus.Counter
	MetricsReadsTotal prometheus.Counter
	OperationErrors   *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec

	// Coprocessor metrics
	CoprocessorCalls   *prometheus.CounterVec
	CoprocessorLatency *prometheus.HistogramVec
	CoprocessorErrors  *prometheus.CounterVec

	// Feed metrics
	EnvelopesReceived prometheus.Counter
	EnvelopesDropped  prometheus.Counter

	// Storage metrics
	VersionConflicts prometheus.Counter
	KnownPools       prometheus.Gauge

	// Notification metrics
	EventsPublished *prometheus.CounterVec
	NotifyErrors    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mev_sentinel"
	}

	return &Metrics{
		// Operation metrics
		AnalysesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "analyses_total",
			Help:      "Total number of swap analyses completed",
		}),
		UpdatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "updates_total",
			Help:      "Total number of pool metric updates completed",
		}),
		CalibrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "calibrations_total",
			Help:      "Total number of sensitivity calibrations applied",
		}),
		MetricsReadsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "metrics_reads_total",
			Help:      "Total number of pool metric reads",
		}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_errors_total",
			Help:      "Total number of operation errors by operation and kind",
		}, []string{"operation", "kind"}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_latency_seconds",
			Help:      "Operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Coprocessor metrics
		CoprocessorCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coprocessor",
			Name:      "calls_total",
			Help:      "Total number of coprocessor primitive calls by op",
		}, []string{"op"}),
		CoprocessorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coprocessor",
			Name:      "call_latency_seconds",
			Help:      "Coprocessor primitive call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		CoprocessorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coprocessor",
			Name:      "errors_total",
			Help:      "Total number of coprocessor errors by op and kind",
		}, []string{"op", "kind"}),

		// Feed metrics
		EnvelopesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "envelopes_received_total",
			Help:      "Total number of swap envelopes received from the venue feed",
		}),
		EnvelopesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "envelopes_dropped_total",
			Help:      "Total number of invalid swap envelopes dropped",
		}),

		// Storage metrics
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "version_conflicts_total",
			Help:      "Total number of optimistic version conflicts on metric writes",
		}),
		KnownPools: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "known_pools",
			Help:      "Number of pools with stored metrics",
		}),

		// Notification metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_published_total",
			Help:      "Total number of engine events published by type",
		}, []string{"type"}),
		NotifyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "errors_total",
			Help:      "Total number of notification delivery errors by type",
		}, []string{"type"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
