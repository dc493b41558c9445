// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package threat

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// DefaultScanLimit bounds how many characters of an input are scanned.
// Longer inputs are truncated before matching to cap worst-case regex cost.
const DefaultScanLimit = 100_000

// snapshot is an immutable compiled pattern set. Library swaps snapshots
// atomically so concurrent readers never observe a half-updated set.
type snapshot struct {
	patterns map[Type][]*regexp.Regexp
}

// Library classifies text against a catalogue of threat signatures.
// The zero value is not usable; construct with NewLibrary.
type Library struct {
	current   atomic.Pointer[snapshot]
	scanLimit int
}

// defaultSignatures holds the built-in threat signatures per category.
// All patterns are compiled case-insensitively.
var defaultSignatures = map[Type][]string{
	TypeSQLInjection: {
		`(\b(union|select|insert|update|delete|drop|create|alter|exec|execute)\b.*\b(from|into|where|table|database)\b)`,
		`('\s*(or|and)\s+[^=]*=)`,
		`(;\s*(drop|delete|truncate|update)\b)`,
		`(--\s*$)`,
		`(\bor\b\s+\d+\s*=\s*\d+)`,
		`('\s*;\s*--)`,
		`(\bxp_cmdshell\b)`,
	},
	TypeXSS: {
		`(<\s*script[^>]*>)`,
		`(javascript\s*:)`,
		`(on(load|error|click|mouseover|focus|submit)\s*=)`,
		`(<\s*iframe[^>]*>)`,
		`(<\s*img[^>]*onerror)`,
		`(document\s*\.\s*(cookie|write|location))`,
		`(eval\s*\()`,
	},
	TypePathTraversal: {
		`(\.\./|\.\.\\)`,
		`(%2e%2e%2f|%2e%2e/|\.\.%2f|%2e%2e%5c)`,
		`(/etc/(passwd|shadow|hosts))`,
		`([a-z]:\\windows\\)`,
		`(%c0%ae%c0%ae)`,
	},
	TypeCommandInjection: {
		"(;\\s*(rm|cat|ls|wget|curl|nc|bash|sh|python|perl)\\b)",
		"(\\|\\s*(rm|cat|ls|wget|curl|nc|bash|sh)\\b)",
		"(`[^`]*`)",
		`(\$\([^)]*\))`,
		`(&&\s*(rm|cat|wget|curl|chmod|chown)\b)`,
		`(>\s*/dev/(null|tcp))`,
	},
}

// NewLibrary creates a pattern library with the built-in signature set.
// scanLimit caps the number of characters scanned per classification;
// values <= 0 use DefaultScanLimit.
func NewLibrary(scanLimit int) *Library {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}

	l := &Library{scanLimit: scanLimit}

	// Built-in signatures are compile-time constants; failure to compile
	// is a programming error.
	snap, err := compile(defaultSignatures)
	if err != nil {
		panic(fmt.Sprintf("threat: built-in signature failed to compile: %v", err))
	}
	l.current.Store(snap)

	return l
}

// compile builds an immutable snapshot from raw signature strings.
func compile(signatures map[Type][]string) (*snapshot, error) {
	snap := &snapshot{patterns: make(map[Type][]*regexp.Regexp, len(signatures))}

	for threatType, exprs := range signatures {
		compiled := make([]*regexp.Regexp, 0, len(exprs))
		for _, expr := range exprs {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", threatType, expr, err)
			}
			compiled = append(compiled, re)
		}
		snap.patterns[threatType] = compiled
	}

	return snap, nil
}

// Classify returns every threat category with at least one matching
// signature in text. Aggregation and precedence are the caller's concern.
func (l *Library) Classify(text string) []Type {
	if text == "" {
		return nil
	}
	if len(text) > l.scanLimit {
		text = text[:l.scanLimit]
	}

	snap := l.current.Load()

	var matched []Type
	for threatType, patterns := range snap.patterns {
		for _, re := range patterns {
			if re.MatchString(text) {
				matched = append(matched, threatType)
				break
			}
		}
	}

	return matched
}

// Matches reports whether text matches any signature of the given category.
func (l *Library) Matches(text string, threatType Type) bool {
	if text == "" {
		return false
	}
	if len(text) > l.scanLimit {
		text = text[:l.scanLimit]
	}

	snap := l.current.Load()
	for _, re := range snap.patterns[threatType] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Update replaces the signature catalogue with a new set. The new set is
// compiled into a fresh snapshot and swapped in atomically; concurrent
// Classify calls keep using the previous snapshot until the swap.
func (l *Library) Update(signatures map[Type][]string) error {
	snap, err := compile(signatures)
	if err != nil {
		return err
	}
	l.current.Store(snap)
	return nil
}

// Categories returns the threat categories present in the current catalogue.
func (l *Library) Categories() []Type {
	snap := l.current.Load()
	categories := make([]Type, 0, len(snap.patterns))
	for t := range snap.patterns {
		categories = append(categories, t)
	}
	return categories
}
