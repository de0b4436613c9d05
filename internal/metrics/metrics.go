// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package metrics registers the Prometheus collectors for the HTTP API,
// media server clients, invitation flow and background sync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP API metrics.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zondarr_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zondarr_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zondarr_api_active_requests",
			Help: "Number of API requests currently in flight",
		},
	)

	// Media server client metrics.
	MediaRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zondarr_media_request_duration_seconds",
			Help:    "Duration of outbound media server API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server_type", "operation"},
	)

	MediaRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zondarr_media_request_errors_total",
			Help: "Total number of failed outbound media server API calls",
		},
		[]string{"server_type", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zondarr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zondarr_circuit_breaker_failures",
			Help: "Failures counted by the circuit breaker",
		},
		[]string{"breaker"},
	)

	// Invitation flow metrics.
	InvitationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zondarr_invitations_created_total",
			Help: "Total number of invitations created",
		},
	)

	InvitationRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zondarr_invitation_redemptions_total",
			Help: "Total number of invitation redemption attempts by outcome",
		},
		[]string{"outcome"}, // ok, invalid, expired, exhausted, disabled, failed
	)

	UsersProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zondarr_users_provisioned_total",
			Help: "Total number of users provisioned on media servers",
		},
		[]string{"server_type"},
	)

	// Sync metrics.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zondarr_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"status"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zondarr_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SyncUsersImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zondarr_sync_users_imported_total",
			Help: "Total number of users imported by sync",
		},
	)

	// Auth metrics.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zondarr_login_attempts_total",
			Help: "Total number of admin login attempts by outcome",
		},
		[]string{"outcome"}, // ok, bad_credentials, totp_required, totp_invalid, locked_out
	)

	// Janitor metrics.
	ExpiredUsersDisabled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zondarr_expired_users_disabled_total",
			Help: "Total number of users disabled after their access expired",
		},
	)
)

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, endpoint, statusCode).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
}

// RecordMediaRequest records one outbound media server call.
func RecordMediaRequest(serverType, operation string, duration time.Duration, err error) {
	MediaRequestDuration.WithLabelValues(serverType, operation).Observe(duration.Seconds())
	if err != nil {
		MediaRequestErrors.WithLabelValues(serverType, operation).Inc()
	}
}

// RecordSyncRun records a finished sync run.
func RecordSyncRun(status string, duration time.Duration, imported int) {
	SyncRunsTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(duration.Seconds())
	if imported > 0 {
		SyncUsersImported.Add(float64(imported))
	}
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
