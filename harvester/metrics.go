package harvester

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	ProductsTotal        *prometheus.CounterVec
	RetriesTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	RateLimitWaitSeconds prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total HTTP requests issued by the harvester.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "HTTP request latency for harvester requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_products_total",
			Help: "Total product fetch outcomes by status.",
		},
		[]string{"status"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Total number of request errors by type.",
		},
		[]string{"error_type"},
	)
	rateLimitWait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_rate_limit_wait_seconds",
			Help:    "Time workers spent blocked on the rate limiter.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(requests, requestDuration, products, retries, errorsTotal, rateLimitWait)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		ProductsTotal:        products,
		RetriesTotal:         retries,
		ErrorsTotal:          errorsTotal,
		RateLimitWaitSeconds: rateLimitWait,
	}
}

// IncRequest increments the requests total counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncProducts increments the product outcome counter.
func (m *Metrics) IncProducts(status string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(status).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveRateLimitWait records time spent blocked on the limiter.
func (m *Metrics) ObserveRateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWaitSeconds.Observe(d.Seconds())
}
