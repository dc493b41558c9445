// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package validation classifies and rejects malicious input before it
// reaches the host application or the LLM prompt pipeline.
//
// Failures are returned as structured Results, never panics; the caller
// decides how to surface a rejection across the trust boundary.
package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/haguard/haguard/internal/threat"
)

// FieldKind selects the validation rules applied to a value.
type FieldKind string

const (
	// KindGeneral applies threat pattern scanning only.
	KindGeneral FieldKind = "general"

	// KindPrompt applies threat pattern scanning to LLM prompt text.
	KindPrompt FieldKind = "prompt"

	// KindFilename rejects traversal sequences and disallowed characters.
	KindFilename FieldKind = "filename"

	// KindURL requires https and an allowlisted domain.
	KindURL FieldKind = "url"

	// KindAPIKey checks shape only; the value is never logged or echoed.
	KindAPIKey FieldKind = "api_key"
)

// Reason identifies why validation failed.
type Reason string

const (
	ReasonLengthExceeded   Reason = "length_exceeded"
	ReasonMaliciousContent Reason = "malicious_content"
	ReasonPathTraversal    Reason = "path_traversal"
	ReasonDomainNotAllowed Reason = "domain_not_allowed"
	ReasonInvalidFormat    Reason = "invalid_format"
)

// Result is the structured outcome of a validation check.
type Result struct {
	OK bool `json:"ok"`

	// Reason is set when OK is false.
	Reason Reason `json:"reason,omitempty"`

	// ThreatTypes lists matched pattern categories for malicious content.
	ThreatTypes []threat.Type `json:"threat_types,omitempty"`

	// Detail is a short human-readable explanation. It never contains
	// the rejected value.
	Detail string `json:"detail,omitempty"`
}

func ok() Result {
	return Result{OK: true}
}

func fail(reason Reason, detail string) Result {
	return Result{OK: false, Reason: reason, Detail: detail}
}

// DomainAllowlist is the slice of the access controller the validator needs.
type DomainAllowlist interface {
	IsDomainAllowed(domain string) bool
}

// Validator validates untrusted input values.
type Validator struct {
	library   *threat.Library
	allowlist DomainAllowlist
}

// NewValidator creates a validator backed by the given pattern library and
// domain allowlist.
func NewValidator(library *threat.Library, allowlist DomainAllowlist) *Validator {
	return &Validator{library: library, allowlist: allowlist}
}

// filename rules: traversal sequences, including percent-encoded variants,
// checked before character whitelisting.
var (
	traversalSequences = []string{
		"../", "..\\",
		"%2e%2e%2f", "%2e%2e/", "..%2f", "%2e%2e%5c", "..%5c",
		"%252e%252e",
	}

	filenameChars = regexp.MustCompile(`^[a-zA-Z0-9._\- ]+$`)

	apiKeyShape = regexp.MustCompile(`^[a-zA-Z0-9._\-]{16,256}$`)
)

// Validate checks value against the rules for the given field kind.
// maxLength is always enforced first; maxLength <= 0 means no length cap.
func (v *Validator) Validate(value string, kind FieldKind, maxLength int) Result {
	if maxLength > 0 && len(value) > maxLength {
		return fail(ReasonLengthExceeded, "value exceeds maximum length")
	}

	switch kind {
	case KindFilename:
		return v.validateFilename(value)
	case KindURL:
		return v.validateURL(value)
	case KindAPIKey:
		return v.validateAPIKey(value)
	case KindGeneral, KindPrompt:
		return v.validateContent(value)
	default:
		// Unknown kinds get the strictest text treatment rather than a
		// hard failure; availability over perfect enforcement.
		return v.validateContent(value)
	}
}

// validateContent scans for threat signatures. Any match fails the value.
func (v *Validator) validateContent(value string) Result {
	matched := v.library.Classify(value)
	if len(matched) == 0 {
		return ok()
	}
	return Result{
		OK:          false,
		Reason:      ReasonMaliciousContent,
		ThreatTypes: matched,
		Detail:      "input matches known threat signatures",
	}
}

// validateFilename rejects traversal sequences, absolute paths, and
// characters outside the allowed set.
func (v *Validator) validateFilename(value string) Result {
	if value == "" {
		return fail(ReasonInvalidFormat, "filename is empty")
	}

	lower := strings.ToLower(value)
	for _, seq := range traversalSequences {
		if strings.Contains(lower, seq) {
			return fail(ReasonPathTraversal, "filename contains a traversal sequence")
		}
	}

	// Bare ".." and absolute paths escape the intended directory too.
	if value == ".." || strings.HasPrefix(value, "/") || strings.HasPrefix(value, "\\") {
		return fail(ReasonPathTraversal, "filename resolves outside the allowed directory")
	}
	if len(value) >= 2 && value[1] == ':' {
		return fail(ReasonPathTraversal, "filename is an absolute path")
	}

	if !filenameChars.MatchString(value) {
		return fail(ReasonInvalidFormat, "filename contains disallowed characters")
	}

	return ok()
}

// validateURL requires the https scheme and an allowlisted host.
func (v *Validator) validateURL(value string) Result {
	parsed, err := url.Parse(value)
	if err != nil {
		return fail(ReasonInvalidFormat, "value is not a valid URL")
	}

	if !strings.EqualFold(parsed.Scheme, "https") {
		return fail(ReasonDomainNotAllowed, "only https URLs are allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return fail(ReasonInvalidFormat, "URL has no host")
	}

	if v.allowlist == nil || !v.allowlist.IsDomainAllowed(host) {
		return fail(ReasonDomainNotAllowed, "domain is not on the allowlist")
	}

	return ok()
}

// validateAPIKey checks shape only. The value is never included in the
// result or logged.
func (v *Validator) validateAPIKey(value string) Result {
	if !apiKeyShape.MatchString(value) {
		return fail(ReasonInvalidFormat, "api key has an invalid format")
	}
	return ok()
}
