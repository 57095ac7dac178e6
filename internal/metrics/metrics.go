// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Connection pool behavior (acquire latency, saturation, reaping)
// - Query cache efficiency
// - DuckDB query performance
// - API endpoint latency and throughput
// - Circuit breaker state

var (
	// Connection Pool Metrics
	PoolConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_connections_open",
			Help: "Current number of open database connections (in-use + idle)",
		},
	)

	PoolConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_connections_in_use",
			Help: "Current number of connections checked out by callers",
		},
	)

	PoolConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_connections_idle",
			Help: "Current number of idle connections available for checkout",
		},
	)

	PoolWaitQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_wait_queue_depth",
			Help: "Current number of callers waiting for a connection",
		},
	)

	PoolAcquireDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pool_acquire_duration_seconds",
			Help:    "Time callers spend waiting to acquire a connection",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
	)

	PoolAcquireTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_acquire_timeouts_total",
			Help: "Total number of acquire attempts that timed out waiting",
		},
	)

	PoolQueueRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_queue_rejections_total",
			Help: "Total number of acquire attempts rejected because the wait queue was full",
		},
	)

	PoolConnectionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_connections_created_total",
			Help: "Total number of database connections opened",
		},
	)

	PoolConnectionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_connections_reaped_total",
			Help: "Total number of idle connections closed by the reaper",
		},
	)

	// Query Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_cache_hits_total",
			Help: "Total number of query cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_cache_misses_total",
			Help: "Total number of query cache misses",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "query_cache_entries",
			Help: "Current number of cached query results",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"reason"}, // "capacity", "expired", "invalidated", "cleared"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAcquire records a successful connection acquire and its wait time.
func RecordAcquire(wait time.Duration) {
	PoolAcquireDuration.Observe(wait.Seconds())
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordEviction records a cache eviction with its reason.
func RecordEviction(reason string, count int) {
	CacheEvictions.WithLabelValues(reason).Add(float64(count))
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// UpdatePoolGauges refreshes the pool state gauges from a stats snapshot.
func UpdatePoolGauges(open, inUse, idle, waiting int) {
	PoolConnectionsOpen.Set(float64(open))
	PoolConnectionsInUse.Set(float64(inUse))
	PoolConnectionsIdle.Set(float64(idle))
	PoolWaitQueueDepth.Set(float64(waiting))
}
