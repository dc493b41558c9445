// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/haguard/haguard/internal/logging"
)

// Server wraps the admin HTTP server as a supervised service. Serve
// translates http.Server's blocking ListenAndServe into suture's
// context-aware pattern: the listener runs in a goroutine and context
// cancellation triggers a graceful Shutdown.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates the admin server service.
func NewServer(addr string, handler http.Handler, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       2 * timeout,
		},
		shutdownTimeout: timeout,
	}
}

// Serve implements suture.Service. Returns nil only on graceful shutdown;
// http.ErrServerClosed is expected then and is not an error.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("component", "api").
			Str("addr", s.server.Addr).
			Msg("admin server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is canceled; shutdown gets its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String names the service for the supervisor.
func (s *Server) String() string {
	return "admin-http-server"
}
