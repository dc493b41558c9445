// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Command haguardd runs the security hardening engine as a standalone
// daemon with the admin HTTP surface enabled. Embedding hosts that link
// the engine directly do not need this binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/haguard/haguard/internal/api"
	"github.com/haguard/haguard/internal/audit"
	"github.com/haguard/haguard/internal/config"
	"github.com/haguard/haguard/internal/logging"
	"github.com/haguard/haguard/internal/security"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "haguardd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	store, closeStore, err := openAuditStore(cfg)
	if err != nil {
		// The engine runs on the in-memory store rather than refusing
		// to start; durable audit is degraded, not fatal.
		logging.Warn().Err(err).Msg("durable audit store unavailable, using in-memory store")
		store = nil
		closeStore = func() {}
	}
	defer closeStore()

	var opts []security.Option
	if store != nil {
		opts = append(opts, security.WithStore(store))
	}
	manager := security.New(cfg.Security, opts...)

	handler := &sutureslog.Handler{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	supervisor := suture.New("haguard", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          cfg.Server.Timeout,
	})

	supervisor.Add(audit.NewSweeper(manager.AuditLog(), time.Hour))
	supervisor.Add(security.NewSweeper(manager, 10*time.Minute))

	if cfg.Server.Enabled {
		router := api.NewRouter(manager, api.MiddlewareConfig{
			CORSAllowedOrigins: cfg.Server.CORSOrigins,
			RateLimitRequests:  cfg.Server.EdgeRateLimit,
			RateLimitWindow:    cfg.Server.EdgeRateWindow,
		})
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		supervisor.Add(api.NewServer(addr, router, cfg.Server.Timeout))
	} else {
		logging.Info().Msg("admin server disabled, running engine services only")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Info().
		Bool("server_enabled", cfg.Server.Enabled).
		Str("audit_store", cfg.Security.AuditStore).
		Msg("haguard starting")

	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("haguard stopped")
	return nil
}

// openAuditStore opens the configured audit backend. The memory backend
// returns a nil store so the manager applies its own default.
func openAuditStore(cfg *config.Config) (audit.Store, func(), error) {
	if cfg.Security.AuditStore != "badger" {
		return nil, func() {}, nil
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.Security.AuditStorePath).WithLogger(nil))
	if err != nil {
		return nil, func() {}, fmt.Errorf("open badger at %s: %w", cfg.Security.AuditStorePath, err)
	}

	closeStore := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close audit store")
		}
	}
	return audit.NewBadgerStore(db, cfg.Security.Audit.Retention), closeStore, nil
}
