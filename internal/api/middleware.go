// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package api exposes the engine over a small admin HTTP surface built on
// the Chi router. The surface is optional; embedding hosts that call the
// security manager directly never start it.
package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// MiddlewareConfig holds the edge middleware settings.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string

	// Edge rate limiting applied by httprate before any handler runs.
	// This protects the admin surface itself; the engine's per-identifier
	// limiter is a separate concern.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultMiddlewareConfig returns secure defaults. CORS origins are empty,
// requiring explicit configuration before cross-origin access works.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
	}
}

// CORS returns the CORS middleware for the configured origins.
func (c MiddlewareConfig) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	})
}

// EdgeRateLimit returns an IP-keyed rate limiting middleware.
func (c MiddlewareConfig) EdgeRateLimit() func(http.Handler) http.Handler {
	if c.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		c.RateLimitRequests,
		c.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// SecurityHeaders adds standard hardening headers to every response.
// HSTS is set only when the request arrived over TLS, directly or behind
// a terminating proxy.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Cache-Control", "no-store")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestID wraps Chi's RequestID middleware so handlers and access logs
// share one correlation header.
func RequestID() func(http.Handler) http.Handler {
	return chimiddleware.RequestID
}
