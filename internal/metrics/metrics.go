// Package metrics provides Prometheus metrics for projectdesk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "projectdesk"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Chat metrics
var (
	// ChatConnectionsActive tracks open realtime connections (websocket and SSE).
	ChatConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections_active",
			Help:      "Number of open realtime chat connections",
		},
		[]string{"transport"},
	)

	// ChatMessagesTotal counts persisted chat messages.
	ChatMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total chat messages persisted",
		},
	)

	// ChatDeliveriesTotal counts per-subscriber deliveries by result.
	ChatDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "deliveries_total",
			Help:      "Total chat deliveries to subscribers",
		},
		[]string{"result"}, // delivered, dropped
	)

	// ChatRelayErrors counts failures publishing to or reading from the relay.
	ChatRelayErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "relay_errors_total",
			Help:      "Total chat relay errors",
		},
	)
)

// File metrics
var (
	// FileOperationsTotal counts stored-file operations by kind and result.
	FileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "operations_total",
			Help:      "Total stored-file operations",
		},
		[]string{"operation", "result"}, // upload|delete, ok|failed
	)

	// FileBytesUploaded counts bytes written to the uploads tree.
	FileBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes uploaded",
		},
	)

	// FileDriftTotal counts disagreements between recorded files and disk.
	FileDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "drift_total",
			Help:      "Recorded files found missing on disk",
		},
		[]string{"source"}, // watcher, reconcile, download
	)
)

// Provisioning metrics
var (
	// ProvisionCompensations counts project creations rolled back after
	// the upload directory could not be provisioned.
	ProvisionCompensations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projects",
			Name:      "provision_compensations_total",
			Help:      "Total project creations rolled back by compensation",
		},
	)

	// ProvisionsReconciled counts leftover provisions resolved at reconcile time.
	ProvisionsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projects",
			Name:      "provisions_reconciled_total",
			Help:      "Total leftover provisions resolved by reconciliation",
		},
		[]string{"result"}, // completed, aborted
	)
)

// Auth metrics
var (
	// AuthAttemptsTotal counts authentication attempts.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total authentication attempts",
		},
		[]string{"result"}, // success, failure, locked
	)

	// AuthTokensIssued counts issued tokens.
	AuthTokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total tokens issued",
		},
		[]string{"type"}, // access, refresh
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
