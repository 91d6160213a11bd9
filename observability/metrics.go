package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stock_research"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Series metrics
	SeriesRequestsTotal *prometheus.CounterVec
	SeriesRefreshTotal  *prometheus.CounterVec
	RefreshDuration     *prometheus.HistogramVec
	CacheFallbacksTotal *prometheus.CounterVec
	CacheCorruptedTotal *prometheus.CounterVec

	// Report metrics
	ReportRequestsTotal *prometheus.CounterVec
	ReportDuration      *prometheus.HistogramVec

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// llmBuckets cover model latency, which runs far longer than market data calls
var llmBuckets = []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// NewMetrics creates and registers all metrics with reg, or the default
// registerer when reg is nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	histogram := func(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
		}, labels)
	}

	return &Metrics{
		SeriesRequestsTotal: counter("series", "requests_total",
			"Series requests by the cache status they were served with", "symbol", "status"),
		SeriesRefreshTotal: counter("series", "refreshes_total",
			"Upstream refresh attempts by result", "symbol", "result"),
		RefreshDuration: histogram("series", "refresh_duration_seconds",
			"Duration of fetch-and-analyze refreshes", defaultBuckets, "symbol"),
		CacheFallbacksTotal: counter("cache", "stale_fallbacks_total",
			"Stale cache records served after a failed refresh", "symbol"),
		CacheCorruptedTotal: counter("cache", "corrupted_total",
			"Unreadable cache records treated as misses", "symbol"),

		ReportRequestsTotal: counter("report", "requests_total",
			"Report generation requests by outcome", "provider", "status"),
		ReportDuration: histogram("report", "duration_seconds",
			"Duration of report generation", llmBuckets, "provider"),

		ExternalAPIRequestsTotal: counter("external_api", "requests_total",
			"Calls to market data and LLM providers", "service", "operation"),
		ExternalAPIErrorsTotal: counter("external_api", "errors_total",
			"Failed provider calls by error category", "service", "operation", "error_type"),
		ExternalAPIDuration: histogram("external_api", "duration_seconds",
			"Duration of provider calls", defaultBuckets, "service", "operation"),

		HTTPRequestsTotal: counter("http", "requests_total",
			"HTTP requests by route and status", "method", "path", "status_code"),
		HTTPRequestDuration: histogram("http", "request_duration_seconds",
			"Duration of HTTP requests", defaultBuckets, "method", "path"),
		HTTPResponseSize: histogram("http", "response_size_bytes",
			"Size of HTTP responses", prometheus.ExponentialBuckets(100, 10, 6), "method", "path"),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Upstream breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"service"}),
		CircuitBreakerTrips: counter("circuit_breaker", "trips_total",
			"Times an upstream breaker opened", "service"),
	}
}

// GetMetrics returns the global metrics instance, registering it with the
// default registerer on first use
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		if globalMetrics == nil {
			globalMetrics = NewMetrics(nil)
		}
	})
	return globalMetrics
}

// RecordSeriesRequest records a series request and the cache status it was served with
func (m *Metrics) RecordSeriesRequest(symbol, status string) {
	m.SeriesRequestsTotal.WithLabelValues(symbol, status).Inc()
}

// RecordRefresh records the outcome and duration of an upstream refresh
func (m *Metrics) RecordRefresh(symbol, result string, duration time.Duration) {
	m.SeriesRefreshTotal.WithLabelValues(symbol, result).Inc()
	m.RefreshDuration.WithLabelValues(symbol).Observe(duration.Seconds())
}

// RecordCacheFallback records a stale record served after a failed refresh
func (m *Metrics) RecordCacheFallback(symbol string) {
	m.CacheFallbacksTotal.WithLabelValues(symbol).Inc()
}

// RecordCacheCorruption records an unreadable cache record
func (m *Metrics) RecordCacheCorruption(symbol string) {
	m.CacheCorruptedTotal.WithLabelValues(symbol).Inc()
}

// RecordReport records a report generation attempt
func (m *Metrics) RecordReport(provider, status string, duration time.Duration) {
	m.ReportRequestsTotal.WithLabelValues(provider, status).Inc()
	m.ReportDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// ObserveRefresh records a refresh outcome with the elapsed time
func (t *Timer) ObserveRefresh(symbol, result string) {
	t.metrics.RecordRefresh(symbol, result, time.Since(t.start))
}

// ObserveReport records a report outcome with the elapsed time
func (t *Timer) ObserveReport(provider, status string) {
	t.metrics.RecordReport(provider, status, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
