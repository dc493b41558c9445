// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package detect turns validator and rate limiter signals into classified
// security events and tracks per-identifier anomaly state.
//
// Every emitted event is handed synchronously to the audit log; events are
// never dropped or queued.
package detect

import (
	"fmt"
	"sync"
	"time"

	"github.com/haguard/haguard/internal/audit"
	"github.com/haguard/haguard/internal/ratelimit"
	"github.com/haguard/haguard/internal/threat"
)

// ExcerptLimit caps the payload excerpt recorded with an event.
const ExcerptLimit = 120

// Config holds detector tunables.
type Config struct {
	// Enabled controls whether events are emitted at all.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// ErrorRateWindow is the number of recent requests considered when
	// computing the per-identifier error rate.
	ErrorRateWindow int `json:"error_rate_window" koanf:"error_rate_window" validate:"omitempty,min=2"`

	// ErrorRateThreshold is the failure ratio above which anomalous
	// behavior is reported, in (0, 1].
	ErrorRateThreshold float64 `json:"error_rate_threshold" koanf:"error_rate_threshold" validate:"omitempty,gt=0,lte=1"`
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		ErrorRateWindow:    10,
		ErrorRateThreshold: 0.5,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.ErrorRateWindow < 2 {
		c.ErrorRateWindow = def.ErrorRateWindow
	}
	if c.ErrorRateThreshold <= 0 || c.ErrorRateThreshold > 1 {
		c.ErrorRateThreshold = def.ErrorRateThreshold
	}
	return c
}

// errorWindow is a fixed-size ring of request outcomes for one identifier.
type errorWindow struct {
	mu       sync.Mutex
	outcomes []bool // true = failure
	next     int
	filled   bool
	alerted  bool
	lastSeen time.Time
}

// Detector classifies rejection signals into audit events.
type Detector struct {
	log   *audit.Log
	cfg   Config
	clock func() time.Time

	// windows maps identifier -> *errorWindow. Per-entry locking keeps
	// different identifiers from contending.
	windows sync.Map
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(d *Detector) { d.clock = clock }
}

// NewDetector creates a threat detector that records into the given audit
// log. Invalid config values degrade to defaults.
func NewDetector(log *audit.Log, cfg Config, opts ...Option) *Detector {
	d := &Detector{
		log:   log,
		cfg:   cfg.normalize(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Excerpt returns a bounded excerpt of a rejected payload, safe to store
// in an event description.
func Excerpt(payload string) string {
	if len(payload) <= ExcerptLimit {
		return payload
	}
	return payload[:ExcerptLimit] + "..."
}

// OnMaliciousInput records a HIGH severity event for each matched pattern
// category of a rejected input.
func (d *Detector) OnMaliciousInput(identifier string, matched []threat.Type, payload string) {
	if !d.cfg.Enabled {
		return
	}

	excerpt := Excerpt(payload)
	for _, threatType := range matched {
		d.log.Record(audit.Event{
			ThreatType:      threatType,
			Severity:        threat.SeverityHigh,
			SourceComponent: "validator",
			Description:     fmt.Sprintf("input rejected: matched %s signatures", threatType),
			Identifier:      identifier,
			PayloadExcerpt:  excerpt,
		})
	}
}

// OnRateLimitBlock records a denial-of-service event for a new block.
// Severity escalates with repeat violations: MEDIUM on the first, HIGH on
// repeats, CRITICAL when the backoff ceiling is reached.
func (d *Detector) OnRateLimitBlock(identifier string, decision ratelimit.Decision) {
	if !d.cfg.Enabled {
		return
	}

	severity := threat.SeverityMedium
	switch {
	case decision.AtCeiling:
		severity = threat.SeverityCritical
	case decision.ViolationCount > 1:
		severity = threat.SeverityHigh
	}

	d.log.Record(audit.Event{
		ThreatType:      threat.TypeDenialOfService,
		Severity:        severity,
		SourceComponent: "ratelimiter",
		Description: fmt.Sprintf("rate limit exceeded on %s window, blocked for %s (violation %d)",
			decision.Window, decision.RetryAfter, decision.ViolationCount),
		Identifier: identifier,
	})
}

// OnBlockedAccess records a MEDIUM severity event when a blocked
// identifier is denied.
func (d *Detector) OnBlockedAccess(identifier string) {
	if !d.cfg.Enabled {
		return
	}

	d.log.Record(audit.Event{
		ThreatType:      threat.TypeUnauthorizedAccess,
		Severity:        threat.SeverityMedium,
		SourceComponent: "access",
		Description:     "request denied: identifier is blocked",
		Identifier:      identifier,
	})
}

// RecordOutcome feeds a request outcome into the identifier's rolling
// error window. Crossing the configured failure-rate threshold emits an
// anomalous-behavior event; the event re-arms once the rate drops back
// below the threshold.
func (d *Detector) RecordOutcome(identifier string, failure bool) {
	if !d.cfg.Enabled {
		return
	}

	winAny, _ := d.windows.LoadOrStore(identifier, &errorWindow{
		outcomes: make([]bool, d.cfg.ErrorRateWindow),
	})
	win := winAny.(*errorWindow)

	win.mu.Lock()
	win.lastSeen = d.clock()
	win.outcomes[win.next] = failure
	win.next++
	if win.next == len(win.outcomes) {
		win.next = 0
		win.filled = true
	}

	emit := false
	if win.filled {
		failures := 0
		for _, f := range win.outcomes {
			if f {
				failures++
			}
		}
		rate := float64(failures) / float64(len(win.outcomes))

		if rate > d.cfg.ErrorRateThreshold {
			if !win.alerted {
				win.alerted = true
				emit = true
			}
		} else {
			win.alerted = false
		}
	}
	win.mu.Unlock()

	if emit {
		d.log.Record(audit.Event{
			ThreatType:      threat.TypeAnomalousBehavior,
			Severity:        threat.SeverityMedium,
			SourceComponent: "detector",
			Description: fmt.Sprintf("error rate exceeded %.0f%% over last %d requests",
				d.cfg.ErrorRateThreshold*100, d.cfg.ErrorRateWindow),
			Identifier: identifier,
		})
	}
}

// ForgetIdentifier drops anomaly state for an identifier so its history
// starts fresh, e.g. after a manual unblock.
func (d *Detector) ForgetIdentifier(identifier string) {
	d.windows.Delete(identifier)
}

// Sweep removes anomaly windows idle for longer than ttl and returns the
// number removed. Runs alongside the rate limiter's inactivity sweep.
func (d *Detector) Sweep(ttl time.Duration) int {
	cutoff := d.clock().Add(-ttl)

	removed := 0
	d.windows.Range(func(key, value any) bool {
		win := value.(*errorWindow)
		win.mu.Lock()
		idle := win.lastSeen.Before(cutoff)
		win.mu.Unlock()
		if idle {
			d.windows.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Enabled reports whether the detector emits events.
func (d *Detector) Enabled() bool {
	return d.cfg.Enabled
}
