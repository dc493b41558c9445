// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package security

import (
	"context"
	"time"

	"github.com/haguard/haguard/internal/logging"
)

// Sweeper periodically garbage-collects inactive rate limit state and
// expired block slots. It implements suture.Service. Correctness never
// depends on the sweep; expiry is also checked lazily on every access.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
}

// NewSweeper creates a state sweeper. interval <= 0 defaults to 10m.
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{manager: manager, interval: interval}
}

// Serve runs the sweep loop until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.manager.SweepExpired(); removed > 0 {
				logging.Debug().
					Str("component", "security").
					Int("removed", removed).
					Msg("state sweep removed expired entries")
			}
		}
	}
}

// String names the service for the supervisor.
func (s *Sweeper) String() string {
	return "security-state-sweeper"
}
