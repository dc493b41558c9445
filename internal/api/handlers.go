// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/haguard/haguard/internal/audit"
	"github.com/haguard/haguard/internal/logging"
	"github.com/haguard/haguard/internal/security"
	"github.com/haguard/haguard/internal/threat"
	"github.com/haguard/haguard/internal/validation"
)

// maxRequestBody bounds admin request bodies. Payloads larger than this
// are rejected at the edge before the engine sees them.
const maxRequestBody = 1 << 20 // 1 MiB

// Handler serves the admin endpoints over a security manager.
type Handler struct {
	manager *security.Manager

	// reportValve throttles report generation, which scans the audit
	// store. One report per second with a small burst is enough for any
	// dashboard and keeps a misbehaving client from pinning the store.
	reportValve *rate.Limiter
}

// NewHandler creates the admin handler set.
func NewHandler(manager *security.Manager) *Handler {
	return &Handler{
		manager:     manager,
		reportValve: rate.NewLimiter(rate.Limit(1), 2),
	}
}

// writeJSON serializes v with goccy/go-json and logs encode failures.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Str("component", "api").Msg("failed to encode response")
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads and decodes a bounded JSON request body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validateRequest is the body of POST /api/v1/validate.
type validateRequest struct {
	Identifier string `json:"identifier"`
	Value      string `json:"value"`
	Kind       string `json:"kind"`
	MaxLength  int    `json:"max_length"`
}

// Validate runs input validation and returns the structured result.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	kind := validation.FieldKind(req.Kind)
	if req.Kind == "" {
		kind = validation.KindGeneral
	}

	result := h.manager.ValidateInput(req.Identifier, req.Value, kind, req.MaxLength)
	writeJSON(w, http.StatusOK, result)
}

// checkRequest is the body of POST /api/v1/check.
type checkRequest struct {
	Identifier string `json:"identifier"`
}

// Check records one request against the rate limiter and returns the
// decision. A denied decision is reported with HTTP 200: the decision is
// the payload, not an error of the admin surface.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	writeJSON(w, http.StatusOK, h.manager.CheckRateLimit(req.Identifier))
}

// Sanitize redacts sensitive fields from an arbitrary JSON document.
func (h *Handler) Sanitize(w http.ResponseWriter, r *http.Request) {
	var payload any
	if !decodeBody(w, r, &payload) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sanitized": h.manager.Sanitize(payload),
	})
}

// Report generates the aggregate security report. The period defaults to
// 24 hours and is capped at the audit retention window.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if !h.reportValve.Allow() {
		writeError(w, http.StatusTooManyRequests, "report generation is throttled")
		return
	}

	hours := 24.0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		hours = parsed
	}

	period := time.Duration(hours * float64(time.Hour))
	if retention := h.manager.AuditLog().Retention(); period > retention {
		period = retention
	}

	report, err := h.manager.GenerateReport(period)
	if err != nil {
		logging.Error().Err(err).Str("component", "api").Msg("report generation failed")
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Events searches the audit log. Filters come from query parameters:
// threat_type, severity, source, identifier, contains, since (RFC 3339),
// until (RFC 3339), limit. format=cef switches the output to CEF lines.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	filter, err := eventFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.manager.SearchEvents(filter)
	if err != nil {
		logging.Error().Err(err).Str("component", "api").Msg("event search failed")
		writeError(w, http.StatusInternalServerError, "failed to search events")
		return
	}

	if r.URL.Query().Get("format") == "cef" {
		out, err := audit.NewCEFExporter().Export(events)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to export events")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// eventFilter builds an audit filter from query parameters.
func eventFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		SourceComponent:     q.Get("source"),
		Identifier:          q.Get("identifier"),
		DescriptionContains: q.Get("contains"),
	}

	for _, raw := range q["threat_type"] {
		filter.ThreatTypes = append(filter.ThreatTypes, threat.Type(raw))
	}
	for _, raw := range q["severity"] {
		filter.Severities = append(filter.Severities, threat.Severity(raw))
	}

	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errBadTime("since")
		}
		filter.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errBadTime("until")
		}
		filter.Until = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return audit.Filter{}, errBadLimit
		}
		filter.Limit = n
	}

	return filter, nil
}

type filterError string

func (e filterError) Error() string { return string(e) }

func errBadTime(field string) error {
	return filterError(field + " must be an RFC 3339 timestamp")
}

var errBadLimit = filterError("limit must be a positive integer")

// Stats summarizes the audit store contents.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.AuditLog().Stats()
	if err != nil {
		logging.Error().Err(err).Str("component", "api").Msg("stats gathering failed")
		writeError(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// blockRequest is the body of POST /api/v1/blocks.
type blockRequest struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
	Duration   string `json:"duration"`
}

// CreateBlock places a manual block on an identifier.
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	duration := time.Hour
	if req.Duration != "" {
		parsed, err := time.ParseDuration(req.Duration)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive Go duration")
			return
		}
		duration = parsed
	}

	entry := h.manager.BlockIdentifier(req.Identifier, req.Reason, duration)
	writeJSON(w, http.StatusCreated, entry)
}

// DeleteBlock removes a block.
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	h.manager.UnblockIdentifier(identifier)
	w.WriteHeader(http.StatusNoContent)
}

// ListBlocks returns the currently blocked identifiers with their entries.
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	controller := h.manager.AccessController()

	identifiers := controller.BlockedIdentifiers()
	entries := make([]any, 0, len(identifiers))
	for _, id := range identifiers {
		if entry, ok := controller.Entry(id); ok {
			entries = append(entries, entry)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(entries),
		"blocks": entries,
	})
}

// domainRequest is the body of POST /api/v1/domains.
type domainRequest struct {
	Domain string `json:"domain"`
}

// AddDomain adds a domain to the URL allowlist.
func (h *Handler) AddDomain(w http.ResponseWriter, r *http.Request) {
	var req domainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Domain) == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	h.manager.AddAllowedDomain(req.Domain)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveDomain deletes a domain from the allowlist.
func (h *Handler) RemoveDomain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	h.manager.RemoveAllowedDomain(domain)
	w.WriteHeader(http.StatusNoContent)
}

// ListDomains returns the allowlist snapshot.
func (h *Handler) ListDomains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"domains": h.manager.AccessController().Domains(),
	})
}
