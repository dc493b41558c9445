// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haguard/haguard/internal/security"
)

// NewRouter builds the admin HTTP surface.
func NewRouter(manager *security.Manager, mw MiddlewareConfig) http.Handler {
	handler := NewHandler(manager)

	r := chi.NewRouter()

	// Global middleware, applied in order to every route. CORS must be
	// global so OPTIONS preflight requests are answered.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(SecurityHeaders())

	r.Get("/healthz", handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.EdgeRateLimit())

		r.Post("/validate", handler.Validate)
		r.Post("/check", handler.Check)
		r.Post("/sanitize", handler.Sanitize)

		r.Get("/report", handler.Report)
		r.Get("/events", handler.Events)
		r.Get("/stats", handler.Stats)

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", handler.ListBlocks)
			r.Post("/", handler.CreateBlock)
			r.Delete("/{identifier}", handler.DeleteBlock)
		})

		r.Route("/domains", func(r chi.Router) {
			r.Get("/", handler.ListDomains)
			r.Post("/", handler.AddDomain)
			r.Delete("/{domain}", handler.RemoveDomain)
		})
	})

	return r
}
