package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mintix",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mintix",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mintix",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	chainInstructions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mintix",
			Subsystem: "chain",
			Name:      "instructions_total",
			Help:      "Ticket program instructions submitted, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	chainDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mintix",
			Subsystem: "chain",
			Name:      "instruction_duration_seconds",
			Help:      "Time from submission to confirmation or timeout.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"kind"},
	)

	ledgerWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mintix",
			Subsystem: "ledger",
			Name:      "write_failures_total",
			Help:      "Records that could not be persisted after the chain accepted the instruction.",
		},
		[]string{"kind"},
	)

	idempotentReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mintix",
			Subsystem: "ledger",
			Name:      "idempotent_replays_total",
			Help:      "Requests answered from an existing record instead of a new instruction.",
		},
		[]string{"kind"},
	)

	reconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mintix",
			Subsystem: "reconciler",
			Name:      "records_total",
			Help:      "Pending records advanced by the reconciler, by resulting status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		chainInstructions,
		chainDuration,
		ledgerWriteFailures,
		idempotentReplays,
		reconciled,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight and DecInFlight track concurrent HTTP requests.
func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordChainInstruction records a submitted instruction. outcome is one of
// confirmed, pending, failed or rejected.
func RecordChainInstruction(kind, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	chainInstructions.WithLabelValues(kind, outcome).Inc()
	chainDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordLedgerWriteFailure counts a chain success that could not be persisted.
func RecordLedgerWriteFailure(kind string) {
	ledgerWriteFailures.WithLabelValues(kind).Inc()
}

// RecordIdempotentReplay counts a request served from an existing record.
func RecordIdempotentReplay(kind string) {
	idempotentReplays.WithLabelValues(kind).Inc()
}

// RecordReconciled counts a pending record advanced to status.
func RecordReconciled(status string) {
	reconciled.WithLabelValues(status).Inc()
}
