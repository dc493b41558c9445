// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package metrics provides Prometheus instrumentation for the security
// engine: validation outcomes, rate limit decisions, block activity, and
// audit log volume.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationsTotal counts input validations by field kind and outcome.
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haguard_validations_total",
			Help: "Total number of input validations",
		},
		[]string{"kind", "outcome"},
	)

	// ValidationRejections counts rejections by failure reason.
	ValidationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haguard_validation_rejections_total",
			Help: "Total number of rejected inputs by reason",
		},
		[]string{"reason"},
	)

	// RateLimitChecks counts rate limit decisions.
	RateLimitChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haguard_ratelimit_checks_total",
			Help: "Total number of rate limit checks",
		},
		[]string{"outcome"}, // "allowed", "rejected", "blocked"
	)

	// BlocksActive tracks the number of currently blocked identifiers.
	BlocksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "haguard_blocked_identifiers",
			Help: "Current number of blocked identifiers",
		},
	)

	// BlocksTotal counts block creations by origin.
	BlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haguard_blocks_total",
			Help: "Total number of identifier blocks created",
		},
		[]string{"origin"}, // "manual", "automatic"
	)

	// EventsRecorded counts audit events by threat type and severity.
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haguard_security_events_total",
			Help: "Total number of security events recorded",
		},
		[]string{"threat_type", "severity"},
	)

	// SanitizeTruncations counts depth-limit truncations during sanitization.
	SanitizeTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haguard_sanitize_truncations_total",
			Help: "Total number of depth-limit truncations during sanitization",
		},
	)

	// ReportDuration observes report generation latency.
	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haguard_report_duration_seconds",
			Help:    "Security report generation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
