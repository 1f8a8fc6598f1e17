// Package metrics registers the tracker's Prometheus collectors and the HTTP
// instrumentation middleware.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries applied, by kind.",
		},
		[]string{"kind"},
	)

	expensesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "expenses_created_total",
		Help: "Expenses recorded.",
	})

	syncExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_sync_exports_total",
			Help: "Ledger entry export attempts, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers the collectors with the default registry. Call once per
// process.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		ledgerEntriesTotal,
		expensesCreatedTotal,
		syncExportsTotal,
	)
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLedgerEntry counts an applied ledger entry.
func ObserveLedgerEntry(kind string) {
	ledgerEntriesTotal.WithLabelValues(kind).Inc()
}

// ObserveExpenseCreated counts a recorded expense.
func ObserveExpenseCreated() {
	expensesCreatedTotal.Inc()
}

// ObserveSyncExport counts an export attempt; outcome is "synced" or "error".
func ObserveSyncExport(outcome string) {
	syncExportsTotal.WithLabelValues(outcome).Inc()
}

// Instrument wraps an HTTP handler with request counting and latency
// observation.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		path := r.URL.Path

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
