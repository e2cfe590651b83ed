// Package observability holds the Prometheus metrics for the graph
// engine: HTTP traffic, session lifecycle, simulation activity, and
// query/source latencies.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter

	// Engine metrics
	SimulationTicks prometheus.Counter
	FramesEmitted   prometheus.Counter
	InputEvents     *prometheus.CounterVec

	// Read-side metrics
	QueryDuration *prometheus.HistogramVec
	FetchDuration *prometheus.HistogramVec
}

// NewCollector creates a metrics collector with its own registry under
// the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live graph sessions",
		},
	)

	sessionsCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of graph sessions created",
		},
	)

	sessionsClosed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of graph sessions closed",
		},
	)

	simulationTicks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_ticks_total",
			Help:      "Total number of force simulation ticks",
		},
	)

	framesEmitted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Total number of frames sent to clients",
		},
	)

	inputEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_events_total",
			Help:      "Total number of input events by type",
		},
		[]string{"type"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query bus dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"query", "status"},
	)

	fetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Graph source fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		sessionsActive,
		sessionsCreated,
		sessionsClosed,
		simulationTicks,
		framesEmitted,
		inputEvents,
		queryDuration,
		fetchDuration,
	)

	return &Collector{
		registry:        registry,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
		SessionsActive:  sessionsActive,
		SessionsCreated: sessionsCreated,
		SessionsClosed:  sessionsClosed,
		SimulationTicks: simulationTicks,
		FramesEmitted:   framesEmitted,
		InputEvents:     inputEvents,
		QueryDuration:   queryDuration,
		FetchDuration:   fetchDuration,
	}
}

// ObserveQuery implements the query bus observer.
func (c *Collector) ObserveQuery(queryType string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.QueryDuration.WithLabelValues(queryType, status).Observe(duration.Seconds())
}

// ObserveFetch records a source fetch duration.
func (c *Collector) ObserveFetch(source, operation string, duration time.Duration) {
	c.FetchDuration.WithLabelValues(source, operation).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
