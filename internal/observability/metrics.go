package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for OutcomeLedger.
type Metrics struct {
	// --- Ledger operations ---
	OpsApplied  *prometheus.CounterVec // op
	OpsRejected *prometheus.CounterVec // op, kind
	OpDuration  *prometheus.HistogramVec
	TxRetries   *prometheus.CounterVec

	// --- Outbound publishing ---
	EventsPublished prometheus.Counter
	PublishDrops    prometheus.Counter
	PublishErrors   prometheus.Counter

	// --- Market cache ---
	MarketCacheHits   prometheus.Counter
	MarketCacheMisses prometheus.Counter

	// --- HTTP ---
	HTTPRequests *prometheus.CounterVec // method, path, status
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics. Call once
// per process; promauto registers against the default registry.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_ops_applied_total",
			Help: "Ledger operations committed",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_ops_rejected_total",
			Help: "Ledger operations rejected, by error kind",
		}, []string{"op", "kind"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_op_duration_seconds",
			Help:    "End-to-end operation latency including the store transaction",
			Buckets: opBuckets,
		}, []string{"op"}),

		TxRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_tx_retries_total",
			Help: "Transaction conflicts retried transparently",
		}, []string{"op"}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Events published to NATS",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_publish_drops_total",
			Help: "Events dropped due to full publish buffer",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_publish_errors_total",
			Help: "Failed NATS publish attempts",
		}),

		MarketCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_market_cache_hits_total",
			Help: "Market metadata reads served from Redis",
		}),

		MarketCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_market_cache_misses_total",
			Help: "Market metadata reads that fell through to Postgres",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "HTTP requests by method, route, and status",
		}, []string{"method", "path", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
}

// HTTPMiddleware records request count and latency per route.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
