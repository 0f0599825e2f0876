package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	socketConnectionsActive prometheus.Gauge
	socketConnectionsTotal  prometheus.Counter
	socketEventsTotal       *prometheus.CounterVec
	fanoutDeliveriesTotal   *prometheus.CounterVec
	gatewayConflictsTotal   *prometheus.CounterVec
	janitorSweptTotal       *prometheus.CounterVec
	janitorRunsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by HTTP endpoints.",
		}, []string{"method", "route", "status"})

		socketConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socket_connections_active",
			Help: "Number of open realtime connections.",
		})

		socketConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socket_connections_total",
			Help: "Total number of realtime connections accepted.",
		})

		socketEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_events_total",
			Help: "Inbound realtime events by name and outcome.",
		}, []string{"event", "outcome"})

		fanoutDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_deliveries_total",
			Help: "Outbound event deliveries by result.",
		}, []string{"result"})

		gatewayConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_revision_conflicts_total",
			Help: "Optimistic concurrency conflicts observed by the persistence gateway.",
		}, []string{"op"})

		janitorSweptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitor_swept_total",
			Help: "Records expired by the lifecycle janitor.",
		}, []string{"kind"})

		janitorRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitor_runs_total",
			Help: "Lifecycle janitor ticks by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			socketConnectionsActive, socketConnectionsTotal, socketEventsTotal,
			fanoutDeliveriesTotal, gatewayConflictsTotal,
			janitorSweptTotal, janitorRunsTotal,
		)
	})
}

// HTTPRequests exposes the counter for HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for HTTP error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SocketConnectionsActive tracks currently open realtime connections.
func SocketConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return socketConnectionsActive
}

// SocketConnectionsTotal counts accepted realtime connections.
func SocketConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return socketConnectionsTotal
}

// SocketEvents counts inbound events by name and outcome.
func SocketEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return socketEventsTotal
}

// FanoutDeliveries counts delivered, dropped and relayed envelopes.
func FanoutDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return fanoutDeliveriesTotal
}

// GatewayConflicts counts stale-revision writes.
func GatewayConflicts() *prometheus.CounterVec {
	RegisterMetrics()
	return gatewayConflictsTotal
}

// JanitorSwept counts rooms, users and presences expired by the janitor.
func JanitorSwept() *prometheus.CounterVec {
	RegisterMetrics()
	return janitorSweptTotal
}

// JanitorRuns counts janitor ticks.
func JanitorRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return janitorRunsTotal
}
