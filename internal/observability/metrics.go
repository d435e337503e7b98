package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process-wide Prometheus metrics, registered once alongside the per-tenant
// gauges internal/monitor publishes. These cover the coordinator's own
// surfaces (HTTP API, provider calls, cache) rather than any one tenant's
// dashboard figures. The Record* helpers below are not called from the HTTP
// handlers, the adapters or the cache, so these series are registered but
// never recorded.
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_provider_calls_total",
			Help: "Total number of outbound provider adapter calls",
		},
		[]string{"provider", "model", "status"},
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicore_provider_call_duration_seconds",
			Help:    "Outbound provider adapter call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"outcome"}, // hit, miss
	)

	agentMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_agent_messages_total",
			Help: "Total number of agent messages sent over the Message Bus",
		},
		[]string{"agent", "kind"},
	)

	agentExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicore_agent_execution_duration_seconds",
			Help:    "Agent execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aicore_active_connections",
			Help: "Number of active connections",
		},
	)

	memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aicore_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aicore_goroutines",
			Help: "Number of goroutines",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the process-wide Prometheus metrics exactly once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			providerCallsTotal,
			providerCallDuration,
			cacheLookupsTotal,
			agentMessagesTotal,
			agentExecutionDuration,
			activeConnections,
			memoryUsage,
			goroutines,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderCall records an outbound provider adapter call.
func RecordProviderCall(provider, model, status string, duration time.Duration) {
	providerCallsTotal.WithLabelValues(provider, model, status).Inc()
	providerCallDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordCacheLookup records a response cache hit or miss.
func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordAgentMessage records a Message Bus send.
func RecordAgentMessage(agent, kind string) {
	agentMessagesTotal.WithLabelValues(agent, kind).Inc()
}

// RecordAgentExecution records an agent's task execution duration.
func RecordAgentExecution(agent string, duration time.Duration) {
	agentExecutionDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// SetActiveConnections sets the active connections gauge.
func SetActiveConnections(count int) {
	activeConnections.Set(float64(count))
}

// SetMemoryUsage sets the memory usage gauge.
func SetMemoryUsage(bytes uint64) {
	memoryUsage.Set(float64(bytes))
}

// SetGoroutines sets the goroutines gauge.
func SetGoroutines(count int) {
	goroutines.Set(float64(count))
}
