// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haguard/haguard/internal/threat"
)

func testEvent(id string, ts time.Time, threatType threat.Type, severity threat.Severity) Event {
	return Event{
		ID:              id,
		Timestamp:       ts,
		ThreatType:      threatType,
		Severity:        severity,
		SourceComponent: "validator",
		Description:     "input rejected: matched " + string(threatType) + " signatures",
		Identifier:      "device-1",
	}
}

func TestMemoryStoreRecordAndQuery(t *testing.T) {
	store := NewMemoryStore(0)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.Record(testEvent(
			fmt.Sprintf("evt-%d", i),
			base.Add(time.Duration(i)*time.Minute),
			threat.TypeSQLInjection,
			threat.SeverityHigh,
		))
		require.NoError(t, err)
	}

	events, err := store.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 5)

	// Most recent first.
	assert.Equal(t, "evt-4", events[0].ID)
	assert.Equal(t, "evt-0", events[4].ID)
}

func TestMemoryStoreBackdatedRecordKeepsTimeOrder(t *testing.T) {
	store := NewMemoryStore(0)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(testEvent("newer", base, threat.TypeXSS, threat.SeverityMedium)))
	// An event carrying an explicit earlier timestamp arrives after it.
	require.NoError(t, store.Record(testEvent("older", base.Add(-time.Hour), threat.TypeSQLInjection, threat.SeverityHigh)))

	// The Since cutoff must still see the in-window event.
	events, err := store.Query(Filter{Since: base.Add(-time.Minute)})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "newer", events[0].ID)

	// Unbounded query returns both, most recent first.
	all, err := store.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newer", all[0].ID)
	assert.Equal(t, "older", all[1].ID)

	// Prune relies on the same order.
	removed, err := store.Prune(base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	store := NewMemoryStore(0)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(testEvent("sql", base, threat.TypeSQLInjection, threat.SeverityHigh)))
	require.NoError(t, store.Record(testEvent("xss", base.Add(time.Minute), threat.TypeXSS, threat.SeverityMedium)))
	require.NoError(t, store.Record(testEvent("dos", base.Add(2*time.Minute), threat.TypeDenialOfService, threat.SeverityCritical)))

	byType, err := store.Query(Filter{ThreatTypes: []threat.Type{threat.TypeXSS}})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "xss", byType[0].ID)

	bySeverity, err := store.Query(Filter{
		Severities: []threat.Severity{threat.SeverityHigh, threat.SeverityCritical},
	})
	require.NoError(t, err)
	assert.Len(t, bySeverity, 2)

	bySince, err := store.Query(Filter{Since: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Len(t, bySince, 2)

	byUntil, err := store.Query(Filter{Until: base.Add(30 * time.Second)})
	require.NoError(t, err)
	require.Len(t, byUntil, 1)
	assert.Equal(t, "sql", byUntil[0].ID)

	byContains, err := store.Query(Filter{DescriptionContains: "XSS"})
	require.NoError(t, err)
	require.Len(t, byContains, 1)
	assert.Equal(t, "xss", byContains[0].ID)

	byIdentifier, err := store.Query(Filter{Identifier: "device-2"})
	require.NoError(t, err)
	assert.Empty(t, byIdentifier)

	limited, err := store.Query(Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStoreCount(t *testing.T) {
	store := NewMemoryStore(0)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(testEvent("a", base, threat.TypeSQLInjection, threat.SeverityHigh)))
	require.NoError(t, store.Record(testEvent("b", base, threat.TypeSQLInjection, threat.SeverityHigh)))
	require.NoError(t, store.Record(testEvent("c", base, threat.TypeXSS, threat.SeverityLow)))

	count, err := store.Count(Filter{ThreatTypes: []threat.Type{threat.TypeSQLInjection}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	total, err := store.Count(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestMemoryStorePrune(t *testing.T) {
	store := NewMemoryStore(0)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Record(testEvent(
			fmt.Sprintf("evt-%d", i),
			base.Add(time.Duration(i)*time.Hour),
			threat.TypeXSS,
			threat.SeverityLow,
		)))
	}

	removed, err := store.Prune(base.Add(5 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), removed)
	assert.Equal(t, 5, store.Len())

	// Pruning again with the same cutoff removes nothing.
	removed, err = store.Prune(base.Add(5 * time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMemoryStoreEviction(t *testing.T) {
	store := NewMemoryStore(100)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 101; i++ {
		require.NoError(t, store.Record(testEvent(
			fmt.Sprintf("evt-%d", i),
			base.Add(time.Duration(i)*time.Second),
			threat.TypeXSS,
			threat.SeverityLow,
		)))
	}

	// The 101st insert drops the oldest 10%.
	assert.Equal(t, 91, store.Len())

	events, err := store.Query(Filter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, "evt-100", events[0].ID)
	assert.Equal(t, "evt-10", events[len(events)-1].ID)
}
