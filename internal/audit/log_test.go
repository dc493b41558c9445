// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haguard/haguard/internal/threat"
)

func newTestLog(t *testing.T) (*Log, *MemoryStore, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	log := NewLog(store, DefaultConfig(), WithClock(func() time.Time { return now }))
	return log, store, &now
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	log, store, now := newTestLog(t)

	log.Record(Event{
		ThreatType:      threat.TypeXSS,
		Severity:        threat.SeverityHigh,
		SourceComponent: "validator",
		Description:     "input rejected",
	})

	events, err := store.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, *now, events[0].Timestamp)
}

func TestRecordPreservesExplicitFields(t *testing.T) {
	log, store, _ := newTestLog(t)

	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	log.Record(Event{
		ID:        "fixed-id",
		Timestamp: ts,
		Severity:  threat.SeverityLow,
	})

	events, err := store.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fixed-id", events[0].ID)
	assert.Equal(t, ts, events[0].Timestamp)
}

func TestGenerateReportEmpty(t *testing.T) {
	log, _, _ := newTestLog(t)

	report, err := log.GenerateReport(24*time.Hour, nil)
	require.NoError(t, err)

	assert.Zero(t, report.TotalEvents)
	assert.Equal(t, 24.0, report.PeriodHours)
	assert.Empty(t, report.EventCounts)
	assert.Empty(t, report.SeverityCounts)
	assert.NotNil(t, report.BlockedIdentifiers)
	assert.Empty(t, report.BlockedIdentifiers)

	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "no significant security activity")
}

func TestGenerateReportAggregates(t *testing.T) {
	log, _, now := newTestLog(t)

	// Events are recorded in time order, oldest first. The XSS event is
	// outside the 24h period and must not be counted.
	log.Record(Event{
		Timestamp:  now.Add(-48 * time.Hour),
		ThreatType: threat.TypeXSS,
		Severity:   threat.SeverityCritical,
	})
	for i := 3; i >= 1; i-- {
		log.Record(Event{
			Timestamp:  now.Add(-time.Duration(i) * time.Hour),
			ThreatType: threat.TypeSQLInjection,
			Severity:   threat.SeverityHigh,
		})
	}
	log.Record(Event{
		Timestamp:  now.Add(-30 * time.Minute),
		ThreatType: threat.TypeDenialOfService,
		Severity:   threat.SeverityMedium,
	})

	report, err := log.GenerateReport(24*time.Hour, []string{"device-9"})
	require.NoError(t, err)

	assert.Equal(t, int64(4), report.TotalEvents)
	assert.Equal(t, int64(3), report.EventCounts[string(threat.TypeSQLInjection)])
	assert.Equal(t, int64(1), report.EventCounts[string(threat.TypeDenialOfService)])
	assert.Zero(t, report.EventCounts[string(threat.TypeXSS)])
	assert.Equal(t, int64(3), report.SeverityCounts[string(threat.SeverityHigh)])
	assert.Equal(t, []string{"device-9"}, report.BlockedIdentifiers)
}

func TestReportRecommendations(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   []string
	}{
		{
			name: "critical events demand investigation",
			events: []Event{
				{ThreatType: threat.TypeDenialOfService, Severity: threat.SeverityCritical},
			},
			want: []string{"CRITICAL", "rate limit violations"},
		},
		{
			name: "high severity volume suggests config review",
			events: func() []Event {
				var evts []Event
				for i := 0; i < 6; i++ {
					evts = append(evts, Event{ThreatType: threat.TypeXSS, Severity: threat.SeverityHigh})
				}
				return evts
			}(),
			want: []string{"high-severity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _, _ := newTestLog(t)
			for _, evt := range tt.events {
				log.Record(evt)
			}

			report, err := log.GenerateReport(time.Hour, nil)
			require.NoError(t, err)

			joined := strings.Join(report.Recommendations, "\n")
			for _, want := range tt.want {
				assert.Contains(t, joined, want)
			}
			assert.NotContains(t, joined, "no significant security activity")
		})
	}
}

func TestSearchBoundsLimit(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	log := NewLog(store, Config{MaxReportEvents: 10}, WithClock(func() time.Time { return now }))

	for i := 0; i < 20; i++ {
		log.Record(Event{ThreatType: threat.TypeXSS, Severity: threat.SeverityLow})
	}

	events, err := log.Search(Filter{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, events, 10)

	events, err = log.Search(Filter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestPruneExpired(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	log := NewLog(store, Config{Retention: 24 * time.Hour}, WithClock(func() time.Time { return now }))

	log.Record(Event{Timestamp: now.Add(-48 * time.Hour), Severity: threat.SeverityLow})
	log.Record(Event{Timestamp: now.Add(-1 * time.Hour), Severity: threat.SeverityLow})

	removed, err := log.PruneExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, store.Len())
}

func TestNewLogNilStore(t *testing.T) {
	log := NewLog(nil, Config{})
	log.Record(Event{Severity: threat.SeverityLow})

	events, err := log.Search(Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
