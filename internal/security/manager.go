// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package security composes the hardening engine behind a single façade.
//
// Manager is an explicit context object constructed and torn down by the
// host; there is no ambient global instance. Every operation is safe to
// call immediately after New and never panics on malformed configuration:
// invalid limits degrade to the documented defaults because availability
// of the host takes priority over perfect enforcement.
package security

import (
	"time"

	"github.com/haguard/haguard/internal/access"
	"github.com/haguard/haguard/internal/audit"
	"github.com/haguard/haguard/internal/config"
	"github.com/haguard/haguard/internal/detect"
	"github.com/haguard/haguard/internal/logging"
	"github.com/haguard/haguard/internal/metrics"
	"github.com/haguard/haguard/internal/ratelimit"
	"github.com/haguard/haguard/internal/sanitize"
	"github.com/haguard/haguard/internal/threat"
	"github.com/haguard/haguard/internal/validation"
)

// Manager is the façade the application layer calls.
type Manager struct {
	cfg      config.SecurityConfig
	sweepTTL time.Duration

	library   *threat.Library
	validator *validation.Validator
	sanitizer *sanitize.Sanitizer
	limiter   *ratelimit.Limiter
	access    *access.Controller
	detector  *detect.Detector
	log       *audit.Log
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	store audit.Store
	clock func() time.Time
}

// WithStore overrides the audit store (e.g. a BadgerStore for durable
// audit logging). Default is an in-memory store.
func WithStore(store audit.Store) Option {
	return func(o *options) { o.store = store }
}

// WithClock overrides the time source for all components. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// New builds a security manager from the given configuration. Hosts
// normally start from config.Default().Security; a zero SecurityConfig
// leaves every subsystem disabled (the enable flags are all false), so
// the engine passes everything through and records nothing.
func New(cfg config.SecurityConfig, opts ...Option) *Manager {
	o := &options{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	store := o.store
	if store == nil {
		store = audit.NewMemoryStore(0)
	}
	if !cfg.AuditEnabled && o.store == nil {
		store = discardStore{}
	}

	library := threat.NewLibrary(cfg.ScanLimit)
	controller := access.NewController(cfg.AllowedDomains, access.WithClock(o.clock))
	log := audit.NewLog(store, cfg.Audit, audit.WithClock(o.clock))

	detectorCfg := cfg.Detector
	detectorCfg.Enabled = detectorCfg.Enabled || cfg.DetectionEnabled

	sweepTTL := cfg.RateLimit.InactivityTTL
	if sweepTTL <= 0 {
		sweepTTL = ratelimit.DefaultConfig().InactivityTTL
	}

	m := &Manager{
		cfg:       cfg,
		sweepTTL:  sweepTTL,
		library:   library,
		validator: validation.NewValidator(library, controller),
		sanitizer: sanitize.NewSanitizer(sanitize.WithMaxDepth(cfg.SanitizeMaxDepth)),
		access:    controller,
		detector:  detect.NewDetector(log, detectorCfg, detect.WithClock(o.clock)),
		log:       log,
	}
	m.limiter = ratelimit.NewLimiter(cfg.RateLimit,
		ratelimit.WithClock(o.clock),
		ratelimit.WithBlocker(controller),
	)

	return m
}

// ValidateInput validates an untrusted value. Rejections are classified,
// recorded in the audit log, and fed into the anomaly window; the value
// itself is only ever stored as a bounded excerpt.
func (m *Manager) ValidateInput(identifier, value string, kind validation.FieldKind, maxLength int) validation.Result {
	if !m.cfg.ValidationEnabled {
		return validation.Result{OK: true}
	}

	result := m.validator.Validate(value, kind, maxLength)

	outcome := "ok"
	if !result.OK {
		outcome = "rejected"
		metrics.ValidationRejections.WithLabelValues(string(result.Reason)).Inc()
	}
	metrics.ValidationsTotal.WithLabelValues(string(kind), outcome).Inc()

	m.detector.RecordOutcome(identifier, !result.OK)

	if !result.OK {
		switch result.Reason {
		case validation.ReasonMaliciousContent:
			m.detector.OnMaliciousInput(identifier, result.ThreatTypes, value)
		case validation.ReasonPathTraversal:
			m.detector.OnMaliciousInput(identifier, []threat.Type{threat.TypePathTraversal}, value)
		default:
			// Every rejection path produces an audit entry so repeated
			// non-fatal failures stay visible in aggregate reporting.
			m.log.Record(audit.Event{
				ThreatType:      threat.TypeAnomalousBehavior,
				Severity:        threat.SeverityLow,
				SourceComponent: "validator",
				Description:     "input rejected: " + string(result.Reason),
				Identifier:      identifier,
			})
		}
	}

	return result
}

// CheckRateLimit records one request for the identifier and decides
// whether it may proceed. Blocked identifiers are rejected before any
// counter is touched.
func (m *Manager) CheckRateLimit(identifier string) ratelimit.Decision {
	if entry, blocked := m.access.Entry(identifier); blocked {
		m.detector.OnBlockedAccess(identifier)
		m.detector.RecordOutcome(identifier, true)
		metrics.RateLimitChecks.WithLabelValues("blocked").Inc()
		return ratelimit.Decision{
			Allowed:      false,
			RetryAfter:   time.Until(entry.ExpiresAt),
			BlockedUntil: entry.ExpiresAt,
		}
	}

	if !m.cfg.RateLimitEnabled {
		metrics.RateLimitChecks.WithLabelValues("allowed").Inc()
		return ratelimit.Decision{Allowed: true}
	}

	decision := m.limiter.Check(identifier)
	m.detector.RecordOutcome(identifier, !decision.Allowed)

	switch {
	case decision.Allowed:
		metrics.RateLimitChecks.WithLabelValues("allowed").Inc()
	case decision.NewBlock:
		metrics.RateLimitChecks.WithLabelValues("rejected").Inc()
		metrics.BlocksTotal.WithLabelValues(string(access.OriginAutomatic)).Inc()
		m.detector.OnRateLimitBlock(identifier, decision)
	default:
		metrics.RateLimitChecks.WithLabelValues("blocked").Inc()
		m.detector.OnBlockedAccess(identifier)
	}

	return decision
}

// Sanitize returns a deep copy of value with sensitive fields redacted.
func (m *Manager) Sanitize(value any) any {
	return m.sanitizer.Sanitize(value)
}

// BlockIdentifier places a manual block on the identifier.
func (m *Manager) BlockIdentifier(identifier, reason string, duration time.Duration) access.BlockEntry {
	entry := m.access.Block(identifier, reason, duration, access.OriginManual)
	metrics.BlocksTotal.WithLabelValues(string(access.OriginManual)).Inc()

	logging.Info().
		Str("component", "security").
		Str("identifier", identifier).
		Dur("duration", duration).
		Msg("manual block applied")

	return entry
}

// UnblockIdentifier removes all active blocks for the identifier. Rate
// limit counters and anomaly history are reset so the identifier starts
// from a clean slate.
func (m *Manager) UnblockIdentifier(identifier string) {
	m.access.Unblock(identifier)
	m.limiter.Reset(identifier)
	m.detector.ForgetIdentifier(identifier)
}

// IsBlocked reports whether the identifier has an active block.
func (m *Manager) IsBlocked(identifier string) bool {
	return m.access.IsBlocked(identifier)
}

// GenerateReport aggregates security events over the period.
func (m *Manager) GenerateReport(period time.Duration) (*audit.Report, error) {
	start := time.Now()
	defer func() {
		metrics.ReportDuration.Observe(time.Since(start).Seconds())
	}()

	blocked := m.access.BlockedIdentifiers()
	metrics.BlocksActive.Set(float64(len(blocked)))

	return m.log.GenerateReport(period, blocked)
}

// SearchEvents returns audit events matching the filter.
func (m *Manager) SearchEvents(filter audit.Filter) ([]audit.Event, error) {
	return m.log.Search(filter)
}

// AddAllowedDomain adds a domain to the URL validation allowlist.
func (m *Manager) AddAllowedDomain(domain string) {
	m.access.AddDomain(domain)
}

// RemoveAllowedDomain removes a domain from the allowlist.
func (m *Manager) RemoveAllowedDomain(domain string) {
	m.access.RemoveDomain(domain)
}

// IsDomainAllowed reports whether the domain is allowlisted.
func (m *Manager) IsDomainAllowed(domain string) bool {
	return m.access.IsDomainAllowed(domain)
}

// UpdatePatterns swaps in a new threat signature catalogue atomically.
func (m *Manager) UpdatePatterns(signatures map[threat.Type][]string) error {
	return m.library.Update(signatures)
}

// AuditLog exposes the audit log for the sweeper and admin surface.
func (m *Manager) AuditLog() *audit.Log {
	return m.log
}

// AccessController exposes the block table for the admin surface.
func (m *Manager) AccessController() *access.Controller {
	return m.access
}

// SweepExpired garbage-collects inactive rate limit state, expired block
// slots, and idle anomaly windows. Returns the number of entries removed.
func (m *Manager) SweepExpired() int {
	return m.limiter.Sweep() + m.access.Sweep() + m.detector.Sweep(m.sweepTTL)
}

// discardStore drops all events. Used when audit logging is disabled.
type discardStore struct{}

func (discardStore) Record(audit.Event) error                  { return nil }
func (discardStore) Query(audit.Filter) ([]audit.Event, error) { return nil, nil }
func (discardStore) Count(audit.Filter) (int64, error)         { return 0, nil }
func (discardStore) Prune(time.Time) (int64, error)            { return 0, nil }
