// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package sanitize redacts sensitive values from nested data structures
// before they are logged or exported.
//
// Sanitization is key-driven: a value is replaced when its map key,
// case-folded, contains one of the sensitive substrings. The traversal
// never mutates its input and is idempotent.
package sanitize

import (
	"strings"

	"github.com/haguard/haguard/internal/metrics"
)

const (
	// RedactionMarker replaces values of sensitive keys.
	RedactionMarker = "[REDACTED]"

	// TruncationMarker replaces content beyond the depth limit.
	TruncationMarker = "[TRUNCATED: max depth exceeded]"

	// DefaultMaxDepth bounds recursion into nested structures.
	DefaultMaxDepth = 20
)

// defaultSensitiveSubstrings is the fixed set of key-name fragments that
// mark a value as sensitive.
var defaultSensitiveSubstrings = []string{
	"token",
	"key",
	"password",
	"secret",
	"credential",
	"auth",
}

// Sanitizer performs deep redaction of sensitive fields.
type Sanitizer struct {
	substrings []string
	maxDepth   int
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithMaxDepth overrides the recursion depth limit.
func WithMaxDepth(depth int) Option {
	return func(s *Sanitizer) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithExtraSubstrings adds key-name fragments to the sensitive set.
func WithExtraSubstrings(substrings ...string) Option {
	return func(s *Sanitizer) {
		for _, sub := range substrings {
			sub = strings.ToLower(strings.TrimSpace(sub))
			if sub != "" {
				s.substrings = append(s.substrings, sub)
			}
		}
	}
}

// NewSanitizer creates a sanitizer with the fixed sensitive-key set.
func NewSanitizer(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		substrings: append([]string(nil), defaultSensitiveSubstrings...),
		maxDepth:   DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSensitiveKey reports whether the key names a sensitive value.
func (s *Sanitizer) IsSensitiveKey(key string) bool {
	folded := strings.ToLower(key)
	for _, sub := range s.substrings {
		if strings.Contains(folded, sub) {
			return true
		}
	}
	return false
}

// Sanitize returns a deep copy of value with sensitive fields redacted.
// The input is never modified. Supported containers are map[string]any
// and []any (the shape of decoded JSON); other values pass through as-is.
func (s *Sanitizer) Sanitize(value any) any {
	return s.walk(value, 0)
}

func (s *Sanitizer) walk(value any, depth int) any {
	if depth >= s.maxDepth {
		metrics.SanitizeTruncations.Inc()
		return TruncationMarker
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if s.IsSensitiveKey(key) {
				out[key] = RedactionMarker
				continue
			}
			out[key] = s.walk(child, depth+1)
		}
		return out

	case map[string]string:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if s.IsSensitiveKey(key) {
				out[key] = RedactionMarker
				continue
			}
			out[key] = child
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = s.walk(child, depth+1)
		}
		return out

	case []string:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = child
		}
		return out

	default:
		return value
	}
}

// SanitizeMap is a convenience wrapper for the common map case.
func (s *Sanitizer) SanitizeMap(value map[string]any) map[string]any {
	sanitized, _ := s.Sanitize(value).(map[string]any)
	return sanitized
}
