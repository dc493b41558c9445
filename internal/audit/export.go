// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package audit

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/haguard/haguard/internal/threat"
)

// JSONExporter exports events as indented JSON.
type JSONExporter struct{}

// Export serializes events to JSON.
func (e *JSONExporter) Export(events []Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// CEFExporter exports events in Common Event Format for SIEM hand-off.
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a CEF exporter with Haguard defaults.
func NewCEFExporter() *CEFExporter {
	return &CEFExporter{
		DeviceVendor:  "Haguard",
		DeviceProduct: "SecurityHardeningEngine",
		DeviceVersion: "1.0",
	}
}

// Export serializes events to CEF.
// Format: CEF:Version|Vendor|Product|Version|SignatureID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) ([]byte, error) {
	lines := make([]string, 0, len(events))

	for idx := range events {
		event := &events[idx]
		line := fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escape(e.DeviceVendor),
			e.escape(e.DeviceProduct),
			e.escape(e.DeviceVersion),
			e.escape(string(event.ThreatType)),
			e.escape(event.Description),
			e.cefSeverity(event.Severity),
			e.buildExtension(event),
		)
		lines = append(lines, line)
	}

	return []byte(strings.Join(lines, "\n")), nil
}

// cefSeverity maps engine severity to the CEF 0-10 scale.
func (e *CEFExporter) cefSeverity(severity threat.Severity) int {
	switch severity {
	case threat.SeverityLow:
		return 3
	case threat.SeverityMedium:
		return 5
	case threat.SeverityHigh:
		return 7
	case threat.SeverityCritical:
		return 10
	default:
		return 0
	}
}

func (e *CEFExporter) buildExtension(event *Event) string {
	parts := []string{
		fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli()),
		fmt.Sprintf("cs1=%s cs1Label=sourceComponent", e.escape(event.SourceComponent)),
	}

	if event.Identifier != "" {
		parts = append(parts, fmt.Sprintf("suid=%s", e.escape(event.Identifier)))
	}
	if event.PayloadExcerpt != "" {
		parts = append(parts, fmt.Sprintf("msg=%s", e.escape(event.PayloadExcerpt)))
	}
	parts = append(parts, fmt.Sprintf("externalId=%s", e.escape(event.ID)))

	return strings.Join(parts, " ")
}

// escape escapes special characters for the CEF extension grammar.
func (e *CEFExporter) escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

// Stats summarizes the contents of a store for the admin surface.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	EventsBySeverity map[string]int64 `json:"events_by_severity"`
}

// Stats summarizes the log's store contents, bounded by the report scan
// limit.
func (l *Log) Stats() (*Stats, error) {
	return GatherStats(l.store, l.cfg.MaxReportEvents)
}

// GatherStats builds store statistics from a bounded query.
func GatherStats(store Store, limit int) (*Stats, error) {
	events, err := store.Query(Filter{Limit: limit})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalEvents:      int64(len(events)),
		EventsByType:     make(map[string]int64),
		EventsBySeverity: make(map[string]int64),
	}
	for i := range events {
		stats.EventsByType[string(events[i].ThreatType)]++
		stats.EventsBySeverity[string(events[i].Severity)]++
	}

	return stats, nil
}
