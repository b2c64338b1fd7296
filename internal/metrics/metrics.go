// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client-side instrumentation for:
// - outbound API requests and reauthentication replays
// - session lifecycle (login, refresh, lockout)
// - entity cache efficiency
// - circuit breaker state

var (
	// API Request Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_api_requests_total",
			Help: "Total number of outbound API requests",
		},
		[]string{"method", "status"}, // status: HTTP code or "error"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schoolhub_api_request_duration_seconds",
			Help:    "Duration of outbound API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	APIReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_api_reauth_total",
			Help: "Requests that hit 401 and went through reauthentication",
		},
		[]string{"result"}, // "replayed", "refresh_failed"
	)

	// Auth Metrics
	AuthLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_auth_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // "success", "failure", "locked"
	)

	AuthRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_auth_refreshes_total",
			Help: "Token refresh network calls by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	AuthRefreshWaiters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schoolhub_auth_refresh_shared_total",
			Help: "Refresh callers that joined an in-flight refresh",
		},
	)

	AuthState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schoolhub_auth_state",
			Help: "Session state (0=anonymous, 1=authenticating, 2=authenticated, 3=refreshing)",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_cache_hits_total",
			Help: "Total number of entity cache hits",
		},
		[]string{"resource"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_cache_misses_total",
			Help: "Total number of entity cache misses (fetch issued)",
		},
		[]string{"resource"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_cache_invalidations_total",
			Help: "Entries marked stale by tag invalidation",
		},
		[]string{"resource"},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schoolhub_cache_entries",
			Help: "Current number of cached entries",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schoolhub_cache_evictions_total",
			Help: "Entries removed after their last subscriber left",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schoolhub_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolhub_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records one HTTP exchange. status 0 means transport error.
func RecordAPIRequest(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestsTotal.WithLabelValues(method, label).Inc()
	APIRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordLogin records a login outcome.
func RecordLogin(result string) {
	AuthLogins.WithLabelValues(result).Inc()
}

// RecordRefresh records a refresh network call.
func RecordRefresh(err error) {
	if err != nil {
		AuthRefreshes.WithLabelValues("failure").Inc()
		return
	}
	AuthRefreshes.WithLabelValues("success").Inc()
}

// RecordCacheLookup records a hit or miss for resource.
func RecordCacheLookup(resource string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(resource).Inc()
		return
	}
	CacheMisses.WithLabelValues(resource).Inc()
}
