// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haguard/haguard/internal/logging"
	"github.com/haguard/haguard/internal/metrics"
	"github.com/haguard/haguard/internal/threat"
)

// Report is the aggregate view over a reporting period. Its JSON shape is
// the engine's external reporting contract.
type Report struct {
	ReportTimestamp    time.Time        `json:"report_timestamp"`
	PeriodHours        float64          `json:"period_hours"`
	TotalEvents        int64            `json:"total_events"`
	EventCounts        map[string]int64 `json:"event_counts"`
	SeverityCounts     map[string]int64 `json:"severity_counts"`
	Recommendations    []string         `json:"recommendations"`
	BlockedIdentifiers []string         `json:"blocked_identifiers"`
}

// Config holds audit log tunables.
type Config struct {
	// Retention is how long events are kept before the sweep prunes them.
	Retention time.Duration `json:"retention" koanf:"retention"`

	// HighSeverityThreshold is the HIGH event count above which a report
	// recommends a configuration review.
	HighSeverityThreshold int64 `json:"high_severity_threshold" koanf:"high_severity_threshold"`

	// MaxReportEvents bounds the number of events a single report scans.
	MaxReportEvents int `json:"max_report_events" koanf:"max_report_events"`
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	return Config{
		Retention:             90 * 24 * time.Hour,
		HighSeverityThreshold: 5,
		MaxReportEvents:       50_000,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	if c.HighSeverityThreshold <= 0 {
		c.HighSeverityThreshold = def.HighSeverityThreshold
	}
	if c.MaxReportEvents <= 0 {
		c.MaxReportEvents = def.MaxReportEvents
	}
	return c
}

// Log is the append-only audit log with aggregation queries.
type Log struct {
	store Store
	cfg   Config
	clock func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// NewLog creates an audit log over the given store. A nil store gets an
// in-memory default so the log is always safe to use.
func NewLog(store Store, cfg Config, opts ...Option) *Log {
	if store == nil {
		store = NewMemoryStore(0)
	}
	l := &Log{
		store: store,
		cfg:   cfg.normalize(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an event, assigning an ID and timestamp when missing.
// Recording never fails the caller: a store error is logged and the event
// count of the failure is visible in logs, because the hardening layer
// fails toward availability.
func (l *Log) Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock()
	}

	metrics.EventsRecorded.WithLabelValues(string(event.ThreatType), string(event.Severity)).Inc()

	if err := l.store.Record(event); err != nil {
		logging.Error().
			Err(err).
			Str("component", "audit").
			Str("threat_type", string(event.ThreatType)).
			Msg("failed to record security event")
	}
}

// Search returns events matching the filter, most recent first, bounded by
// the configured scan limit.
func (l *Log) Search(filter Filter) ([]Event, error) {
	if filter.Limit <= 0 || filter.Limit > l.cfg.MaxReportEvents {
		filter.Limit = l.cfg.MaxReportEvents
	}
	return l.store.Query(filter)
}

// GenerateReport aggregates events recorded within the period and derives
// ranked recommendations. blockedIdentifiers is the current block table
// snapshot supplied by the access controller.
func (l *Log) GenerateReport(period time.Duration, blockedIdentifiers []string) (*Report, error) {
	now := l.clock()

	events, err := l.store.Query(Filter{
		Since: now.Add(-period),
		Limit: l.cfg.MaxReportEvents,
	})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	report := &Report{
		ReportTimestamp:    now,
		PeriodHours:        period.Hours(),
		TotalEvents:        int64(len(events)),
		EventCounts:        make(map[string]int64),
		SeverityCounts:     make(map[string]int64),
		BlockedIdentifiers: blockedIdentifiers,
	}
	if report.BlockedIdentifiers == nil {
		report.BlockedIdentifiers = []string{}
	}

	for i := range events {
		report.EventCounts[string(events[i].ThreatType)]++
		report.SeverityCounts[string(events[i].Severity)]++
	}

	report.Recommendations = l.recommendations(report)
	return report, nil
}

// recommendations derives the ranked, deterministic recommendation list
// from fixed thresholds.
func (l *Log) recommendations(report *Report) []string {
	var recs []string

	if report.SeverityCounts[string(threat.SeverityCritical)] > 0 {
		recs = append(recs,
			"CRITICAL events detected: investigate immediately and consider blocking the offending identifiers")
	}

	if high := report.SeverityCounts[string(threat.SeverityHigh)]; high > l.cfg.HighSeverityThreshold {
		recs = append(recs, fmt.Sprintf(
			"%d high-severity events in the period: review validation and rate limit configuration", high))
	}

	if dos := report.EventCounts[string(threat.TypeDenialOfService)]; dos > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d rate limit violations recorded: verify limits match expected traffic", dos))
	}

	if len(recs) == 0 {
		recs = append(recs, "no significant security activity in the period")
	}

	return recs
}

// PruneExpired removes events older than the retention window.
func (l *Log) PruneExpired() (int64, error) {
	cutoff := l.clock().Add(-l.cfg.Retention)
	return l.store.Prune(cutoff)
}

// Retention returns the effective retention window.
func (l *Log) Retention() time.Duration {
	return l.cfg.Retention
}

// Sweeper periodically prunes expired events. It implements
// suture.Service via Serve and returns when the context is canceled.
type Sweeper struct {
	log      *Log
	interval time.Duration
}

// NewSweeper creates a retention sweeper. interval <= 0 defaults to 1h.
func NewSweeper(log *Log, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{log: log, interval: interval}
}

// Serve runs the sweep loop until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.log.PruneExpired()
			if err != nil {
				logging.Error().Err(err).Str("component", "audit").Msg("retention sweep failed")
				continue
			}
			if removed > 0 {
				logging.Info().
					Str("component", "audit").
					Int64("removed", removed).
					Msg("retention sweep pruned events")
			}
		}
	}
}

// String names the service for the supervisor.
func (s *Sweeper) String() string {
	return "audit-retention-sweeper"
}
