// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package access provides the domain allowlist and the identifier block
// table shared by manual blocks and the rate limiter's automatic blocks.
package access

import (
	"strings"
	"sync"
	"time"

	"github.com/haguard/haguard/internal/logging"
)

// BlockOrigin records how a block entry was created.
type BlockOrigin string

const (
	// OriginManual marks blocks created by an operator or host application.
	OriginManual BlockOrigin = "manual"

	// OriginAutomatic marks blocks created by the rate limiter or detector.
	OriginAutomatic BlockOrigin = "automatic"
)

// BlockEntry describes an active or expired block on an identifier.
type BlockEntry struct {
	Identifier string      `json:"identifier"`
	Reason     string      `json:"reason"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
	Origin     BlockOrigin `json:"origin"`
}

// Active reports whether the entry is in force at the given instant.
func (e *BlockEntry) Active(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Controller maintains the domain allowlist and the block table.
// Blocks are keyed per identifier in a sync.Map so checks for different
// identifiers never contend; the domain set uses an RWMutex because
// mutations are rare and reads dominate.
type Controller struct {
	domainMu sync.RWMutex
	domains  map[string]struct{}

	// blocks maps identifier -> *blockSlot.
	blocks sync.Map

	clock func() time.Time
}

// blockSlot holds the single block entry for an identifier. Blocking an
// already-blocked identifier extends this entry rather than duplicating it.
type blockSlot struct {
	mu    sync.Mutex
	entry *BlockEntry
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// NewController creates an access controller seeded with the given
// allowlisted domains. Domains are case-folded on insert and lookup.
func NewController(allowedDomains []string, opts ...Option) *Controller {
	c := &Controller{
		domains: make(map[string]struct{}, len(allowedDomains)),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, d := range allowedDomains {
		c.domains[foldDomain(d)] = struct{}{}
	}
	return c
}

func foldDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// IsDomainAllowed reports whether the domain is on the allowlist.
// Matching is case-insensitive.
func (c *Controller) IsDomainAllowed(domain string) bool {
	c.domainMu.RLock()
	defer c.domainMu.RUnlock()
	_, ok := c.domains[foldDomain(domain)]
	return ok
}

// AddDomain inserts a domain into the allowlist.
func (c *Controller) AddDomain(domain string) {
	folded := foldDomain(domain)
	if folded == "" {
		return
	}
	c.domainMu.Lock()
	c.domains[folded] = struct{}{}
	c.domainMu.Unlock()
}

// RemoveDomain deletes a domain from the allowlist.
func (c *Controller) RemoveDomain(domain string) {
	c.domainMu.Lock()
	delete(c.domains, foldDomain(domain))
	c.domainMu.Unlock()
}

// Domains returns a snapshot of the allowlist.
func (c *Controller) Domains() []string {
	c.domainMu.RLock()
	defer c.domainMu.RUnlock()
	out := make([]string, 0, len(c.domains))
	for d := range c.domains {
		out = append(out, d)
	}
	return out
}

// Block records a block on the identifier for the given duration.
// If an active entry already exists it is extended: the expiry becomes the
// later of the existing and the new expiry, and a manual origin is never
// downgraded to automatic. Returns the resulting entry.
func (c *Controller) Block(identifier, reason string, duration time.Duration, origin BlockOrigin) BlockEntry {
	if duration <= 0 {
		duration = time.Minute
	}
	now := c.clock()
	expires := now.Add(duration)

	slotAny, _ := c.blocks.LoadOrStore(identifier, &blockSlot{})
	slot := slotAny.(*blockSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.entry != nil && slot.entry.Active(now) {
		if expires.After(slot.entry.ExpiresAt) {
			slot.entry.ExpiresAt = expires
		}
		if reason != "" {
			slot.entry.Reason = reason
		}
		if slot.entry.Origin == OriginManual {
			origin = OriginManual
		}
		slot.entry.Origin = origin
		return *slot.entry
	}

	slot.entry = &BlockEntry{
		Identifier: identifier,
		Reason:     reason,
		CreatedAt:  now,
		ExpiresAt:  expires,
		Origin:     origin,
	}

	logging.Info().
		Str("component", "access").
		Str("identifier", identifier).
		Str("origin", string(origin)).
		Time("expires_at", expires).
		Msg("identifier blocked")

	return *slot.entry
}

// IsBlocked reports whether any active block entry covers the identifier.
// Expired entries are cleared lazily on first observation.
func (c *Controller) IsBlocked(identifier string) bool {
	slotAny, ok := c.blocks.Load(identifier)
	if !ok {
		return false
	}
	slot := slotAny.(*blockSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.entry == nil {
		return false
	}
	if !slot.entry.Active(c.clock()) {
		slot.entry = nil
		return false
	}
	return true
}

// Entry returns the active block entry for the identifier, if any.
func (c *Controller) Entry(identifier string) (BlockEntry, bool) {
	slotAny, ok := c.blocks.Load(identifier)
	if !ok {
		return BlockEntry{}, false
	}
	slot := slotAny.(*blockSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.entry == nil || !slot.entry.Active(c.clock()) {
		return BlockEntry{}, false
	}
	return *slot.entry, true
}

// BlockAutomatic records an automatic block. It satisfies the rate
// limiter's Blocker interface so automatic blocks land in the same table
// as manual ones.
func (c *Controller) BlockAutomatic(identifier, reason string, duration time.Duration) {
	c.Block(identifier, reason, duration, OriginAutomatic)
}

// Unblock removes all active entries for the identifier.
func (c *Controller) Unblock(identifier string) {
	slotAny, ok := c.blocks.Load(identifier)
	if !ok {
		return
	}
	slot := slotAny.(*blockSlot)

	slot.mu.Lock()
	slot.entry = nil
	slot.mu.Unlock()

	logging.Info().
		Str("component", "access").
		Str("identifier", identifier).
		Msg("identifier unblocked")
}

// BlockedIdentifiers returns the identifiers with an active block.
// Used by aggregate reporting.
func (c *Controller) BlockedIdentifiers() []string {
	now := c.clock()
	var blocked []string

	c.blocks.Range(func(key, value any) bool {
		slot := value.(*blockSlot)
		slot.mu.Lock()
		if slot.entry != nil && slot.entry.Active(now) {
			blocked = append(blocked, key.(string))
		}
		slot.mu.Unlock()
		return true
	})

	return blocked
}

// Sweep drops expired block slots. Called periodically; correctness does
// not depend on it because expiry is also checked lazily.
func (c *Controller) Sweep() int {
	now := c.clock()
	removed := 0

	c.blocks.Range(func(key, value any) bool {
		slot := value.(*blockSlot)
		slot.mu.Lock()
		expired := slot.entry == nil || !slot.entry.Active(now)
		if expired {
			slot.entry = nil
		}
		slot.mu.Unlock()
		if expired {
			c.blocks.Delete(key)
			removed++
		}
		return true
	})

	return removed
}
