// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package metrics exposes Prometheus instrumentation for scanners, the
// detection filter, the admin commands, the event bus and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan results used as the "result" label.
const (
	ResultDetected = "detected"
	ResultClean    = "clean"
)

var (
	// Scanner Metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyguard_scans_total",
			Help: "Total number of scanner invocations",
		},
		[]string{"service", "result"}, // result: "detected", "clean"
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxyguard_scan_duration_seconds",
			Help:    "Duration of one scanner invocation in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"service"},
	)

	LookupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyguard_lookup_errors_total",
			Help: "Total number of failed provider lookups, by reason",
		},
		[]string{"service", "reason"}, // reason: "network", "payload", "invalid_ip", "breaker_open", "rate_limited"
	)

	// Detection Metrics
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyguard_detections_total",
			Help: "Total number of clients flagged as using a proxy",
		},
		[]string{"service"},
	)

	ScansBypassed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxyguard_scans_bypassed_total",
			Help: "Total number of detection runs skipped because of the client level",
		},
	)

	ActiveScanners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proxyguard_active_scanners",
			Help: "Current number of enabled proxy services",
		},
	)

	// Command Metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyguard_commands_total",
			Help: "Total number of admin commands handled",
		},
		[]string{"command", "outcome"}, // outcome: "ok", "denied", "invalid", "failed"
	)

	// Event Metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyguard_events_total",
			Help: "Total number of client events routed",
		},
		[]string{"topic"},
	)

	// Console Callback Metrics
	ConsoleCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyguard_console_callbacks_total",
			Help: "Total number of callbacks sent to the host console",
		},
		[]string{"action", "result"}, // result: "success", "failure"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
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

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
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
)

// RecordScan records one scanner invocation.
func RecordScan(service string, detected bool, duration time.Duration) {
	result := ResultClean
	if detected {
		result = ResultDetected
	}
	ScansTotal.WithLabelValues(service, result).Inc()
	ScanDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordLookupError records a provider lookup that degraded to "not detected".
func RecordLookupError(service, reason string) {
	LookupErrors.WithLabelValues(service, reason).Inc()
}

// RecordDetection records a confirmed detection.
func RecordDetection(service string) {
	DetectionsTotal.WithLabelValues(service).Inc()
}

// RecordCommand records an admin command outcome.
func RecordCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordEvent records a routed client event.
func RecordEvent(topic string) {
	EventsTotal.WithLabelValues(topic).Inc()
}

// RecordConsoleCallback records a callback to the host console.
func RecordConsoleCallback(action string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ConsoleCallbacks.WithLabelValues(action, result).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
