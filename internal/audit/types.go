// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package audit provides the append-only security event log and the
// aggregation queries used for reporting.
//
// Events are immutable once recorded. The append path is serialized behind
// a single lock so the log stays time-ordered under concurrent writers;
// reads take a shared lock.
package audit

import (
	"time"

	"github.com/haguard/haguard/internal/threat"
)

// Event is a recorded security event. Immutable once stored.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp when the event was recorded.
	Timestamp time.Time `json:"timestamp"`

	// ThreatType categorizes the event.
	ThreatType threat.Type `json:"threat_type"`

	// Severity of the event.
	Severity threat.Severity `json:"severity"`

	// SourceComponent names the engine component that emitted the event.
	SourceComponent string `json:"source_component"`

	// Description is a human-readable summary. Never contains secrets.
	Description string `json:"description"`

	// Identifier is the caller-distinguishing key involved, if any.
	Identifier string `json:"identifier,omitempty"`

	// PayloadExcerpt is a short, sanitized excerpt of the offending input.
	PayloadExcerpt string `json:"payload_excerpt,omitempty"`
}

// Filter selects events for Query, Search, and Count.
type Filter struct {
	// ThreatTypes filters by threat categories.
	ThreatTypes []threat.Type `json:"threat_types,omitempty"`

	// Severities filters by severity levels.
	Severities []threat.Severity `json:"severities,omitempty"`

	// SourceComponent filters by emitting component.
	SourceComponent string `json:"source_component,omitempty"`

	// Identifier filters by caller identifier.
	Identifier string `json:"identifier,omitempty"`

	// DescriptionContains performs a case-insensitive substring match.
	DescriptionContains string `json:"description_contains,omitempty"`

	// Since excludes events recorded before this time.
	Since time.Time `json:"since,omitempty"`

	// Until excludes events recorded after this time.
	Until time.Time `json:"until,omitempty"`

	// Limit caps the number of results. Zero means the store default.
	Limit int `json:"limit,omitempty"`
}

// Store persists audit events. Implementations must keep the append path
// safe under concurrent writers.
type Store interface {
	// Record appends an event. O(1); never mutates stored events.
	Record(event Event) error

	// Query returns events matching the filter, most recent first.
	Query(filter Filter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(filter Filter) (int64, error)

	// Prune removes events older than the given time and returns how
	// many were removed.
	Prune(olderThan time.Time) (int64, error)
}

// DefaultQueryLimit bounds result sets when the caller does not set one,
// keeping scan cost predictable on a large log.
const DefaultQueryLimit = 1000
