// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package ratelimit implements per-identifier fixed-window rate limiting
// with progressive blocking.
//
// Each identifier tracks three independent windows (minute, hour, day)
// with lazy reset: no background sweep is needed for correctness, and a
// check is O(1). State is held per identifier behind its own mutex in a
// sync.Map, so checks for different identifiers never contend.
package ratelimit

import (
	"sync"
	"time"

	"github.com/haguard/haguard/internal/logging"
)

// Window names identify which limit a rejection tripped.
const (
	WindowMinute = "minute"
	WindowHour   = "hour"
	WindowDay    = "day"
)

// Config holds rate limiter tunables. Zero values are replaced by the
// defaults from DefaultConfig; the limiter never fails on bad config.
type Config struct {
	// MinuteLimit is the number of requests allowed per minute.
	MinuteLimit int `json:"minute_limit" koanf:"minute_limit" validate:"omitempty,min=1"`

	// HourLimit is the number of requests allowed per hour.
	HourLimit int `json:"hour_limit" koanf:"hour_limit" validate:"omitempty,min=1"`

	// DayLimit is the number of requests allowed per day.
	DayLimit int `json:"day_limit" koanf:"day_limit" validate:"omitempty,min=1"`

	// BaseBlock is the block duration for a first violation.
	BaseBlock time.Duration `json:"base_block" koanf:"base_block"`

	// MaxBlock caps the progressive backoff.
	MaxBlock time.Duration `json:"max_block" koanf:"max_block"`

	// Cooldown is the span after a block expires during which another
	// violation continues the doubling streak instead of starting over.
	Cooldown time.Duration `json:"cooldown" koanf:"cooldown"`

	// InactivityTTL is how long unused identifier state is retained
	// before the periodic sweep removes it.
	InactivityTTL time.Duration `json:"inactivity_ttl" koanf:"inactivity_ttl"`
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		MinuteLimit:   60,
		HourLimit:     1000,
		DayLimit:      10000,
		BaseBlock:     5 * time.Minute,
		MaxBlock:      time.Hour,
		Cooldown:      5 * time.Minute,
		InactivityTTL: 24 * time.Hour,
	}
}

// normalize replaces invalid values with defaults. The limiter degrades to
// permissive defaults instead of failing; misconfiguration is logged once
// by the config layer.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MinuteLimit <= 0 {
		c.MinuteLimit = def.MinuteLimit
	}
	if c.HourLimit <= 0 {
		c.HourLimit = def.HourLimit
	}
	if c.DayLimit <= 0 {
		c.DayLimit = def.DayLimit
	}
	if c.BaseBlock <= 0 {
		c.BaseBlock = def.BaseBlock
	}
	if c.MaxBlock <= 0 {
		c.MaxBlock = def.MaxBlock
	}
	if c.MaxBlock < c.BaseBlock {
		c.MaxBlock = c.BaseBlock
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.InactivityTTL <= 0 {
		c.InactivityTTL = def.InactivityTTL
	}
	return c
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Window names the limit that tripped when Allowed is false and the
	// rejection came from a counter rather than an existing block.
	Window string `json:"window,omitempty"`

	// RetryAfter is how long the caller should wait before retrying.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// BlockedUntil is the block expiry when the identifier is blocked.
	BlockedUntil time.Time `json:"blocked_until,omitempty"`

	// ViolationCount is the total number of violations by this identifier.
	ViolationCount int `json:"violation_count,omitempty"`

	// NewBlock is true when this check created a block (rather than
	// rejecting against an existing one).
	NewBlock bool `json:"-"`

	// AtCeiling is true when the applied block duration reached MaxBlock.
	AtCeiling bool `json:"-"`

	// Remaining is the smallest remaining allowance across windows for
	// an allowed request.
	Remaining int `json:"remaining,omitempty"`
}

// Blocker receives automatic blocks so they appear in the shared block
// table alongside manual blocks. Satisfied by access.Controller.
type Blocker interface {
	BlockAutomatic(identifier, reason string, duration time.Duration)
}

// window is a fixed bucket with lazy reset.
type window struct {
	count int
	start time.Time
}

// tick lazily resets the window if it has elapsed, then increments.
// Returns the count after increment.
func (w *window) tick(now time.Time, duration time.Duration) int {
	if now.Sub(w.start) >= duration {
		w.count = 0
		w.start = now
	}
	w.count++
	return w.count
}

// state is the per-identifier rate limit state. Guarded by its own mutex;
// counts never go negative because they only reset to zero and increment.
type state struct {
	mu sync.Mutex

	minute window
	hour   window
	day    window

	blockedUntil   time.Time
	cooldownUntil  time.Time
	violationCount int
	streak         int

	lastSeen time.Time
}

// Limiter applies per-identifier rate limits with progressive blocking.
type Limiter struct {
	cfg     Config
	states  sync.Map // identifier -> *state
	blocker Blocker
	clock   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

// WithBlocker mirrors automatic blocks into the shared block table.
func WithBlocker(b Blocker) Option {
	return func(l *Limiter) { l.blocker = b }
}

// NewLimiter creates a rate limiter. Invalid config values degrade to
// defaults.
func NewLimiter(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:   cfg.normalize(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for the identifier and decides whether it may
// proceed. While an identifier is blocked every check fails immediately
// without touching counters.
func (l *Limiter) Check(identifier string) Decision {
	stAny, _ := l.states.LoadOrStore(identifier, &state{})
	st := stAny.(*state)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.clock()
	st.lastSeen = now

	// Existing block: reject without counting.
	if now.Before(st.blockedUntil) {
		return Decision{
			Allowed:        false,
			RetryAfter:     st.blockedUntil.Sub(now),
			BlockedUntil:   st.blockedUntil,
			ViolationCount: st.violationCount,
		}
	}

	// Lazy unblock: the first check at or after expiry clears the block
	// and opens the cooldown during which the doubling streak continues.
	if !st.blockedUntil.IsZero() {
		st.blockedUntil = time.Time{}
		st.cooldownUntil = now.Add(l.cfg.Cooldown)
	}

	minuteCount := st.minute.tick(now, time.Minute)
	hourCount := st.hour.tick(now, time.Hour)
	dayCount := st.day.tick(now, 24*time.Hour)

	var tripped string
	switch {
	case minuteCount > l.cfg.MinuteLimit:
		tripped = WindowMinute
	case hourCount > l.cfg.HourLimit:
		tripped = WindowHour
	case dayCount > l.cfg.DayLimit:
		tripped = WindowDay
	}

	if tripped == "" {
		return Decision{
			Allowed:        true,
			ViolationCount: st.violationCount,
			Remaining:      minRemaining(l.cfg, minuteCount, hourCount, dayCount),
		}
	}

	// Violation: progressive backoff. A violation inside the cooldown
	// continues the doubling streak; otherwise the streak restarts.
	if now.Before(st.cooldownUntil) {
		st.streak++
	} else {
		st.streak = 1
	}
	st.violationCount++

	duration := l.cfg.BaseBlock << (st.streak - 1)
	atCeiling := false
	if st.streak > 30 || duration <= 0 || duration >= l.cfg.MaxBlock {
		duration = l.cfg.MaxBlock
		atCeiling = true
	}

	st.blockedUntil = now.Add(duration)
	st.cooldownUntil = time.Time{}

	if l.blocker != nil {
		l.blocker.BlockAutomatic(identifier, "rate limit exceeded: "+tripped+" window", duration)
	}

	logging.Warn().
		Str("component", "ratelimit").
		Str("identifier", identifier).
		Str("window", tripped).
		Dur("block", duration).
		Int("violations", st.violationCount).
		Msg("rate limit exceeded, identifier blocked")

	return Decision{
		Allowed:        false,
		Window:         tripped,
		RetryAfter:     duration,
		BlockedUntil:   st.blockedUntil,
		ViolationCount: st.violationCount,
		NewBlock:       true,
		AtCeiling:      atCeiling,
	}
}

func minRemaining(cfg Config, minuteCount, hourCount, dayCount int) int {
	remaining := cfg.MinuteLimit - minuteCount
	if r := cfg.HourLimit - hourCount; r < remaining {
		remaining = r
	}
	if r := cfg.DayLimit - dayCount; r < remaining {
		remaining = r
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset clears all state for the identifier, including any active block.
func (l *Limiter) Reset(identifier string) {
	l.states.Delete(identifier)
}

// Sweep removes identifier state that has been inactive for longer than
// the inactivity TTL. Returns the number of entries removed.
func (l *Limiter) Sweep() int {
	now := l.clock()
	removed := 0

	l.states.Range(func(key, value any) bool {
		st := value.(*state)
		st.mu.Lock()
		stale := now.Sub(st.lastSeen) >= l.cfg.InactivityTTL && now.After(st.blockedUntil)
		st.mu.Unlock()
		if stale {
			l.states.Delete(key)
			removed++
		}
		return true
	})

	return removed
}

// Config returns the effective (normalized) configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}
