// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package threat defines threat classification types and the static
// pattern library used to recognize injection attempts in untrusted input.
package threat

// Type identifies a category of detected malicious or abusive behavior.
type Type string

const (
	// TypeSQLInjection covers SQL metacharacter and statement injection.
	TypeSQLInjection Type = "sql_injection"

	// TypeXSS covers script and event-handler injection into markup.
	TypeXSS Type = "xss"

	// TypePathTraversal covers directory escape attempts in file paths.
	TypePathTraversal Type = "path_traversal"

	// TypeCommandInjection covers shell metacharacter and subcommand injection.
	TypeCommandInjection Type = "command_injection"

	// TypeDenialOfService is emitted when an identifier exceeds rate limits.
	TypeDenialOfService Type = "denial_of_service"

	// TypeUnauthorizedAccess is emitted when a blocked identifier is denied.
	TypeUnauthorizedAccess Type = "unauthorized_access"

	// TypeAnomalousBehavior is emitted when an identifier's rolling error
	// rate crosses the configured threshold.
	TypeAnomalousBehavior Type = "anomalous_behavior"
)

// Severity ranks how serious a security event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison and report ranking.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the numeric ordering of a severity. Unknown severities
// rank below low.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}
