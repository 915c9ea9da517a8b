// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumenbase/accounts/internal/core/authorize"
	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/identity"
	"github.com/lumenbase/accounts/internal/platform/config"
	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Identity handles registration, password login, and provider sign-in.
	Identity *identity.Handler

	// Authorize handles consent and token-exchange for registered applications.
	Authorize *authorize.Handler

	// Account handles the session and token security dashboard.
	Account *tokenreg.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// The resolver order matters: the Bearer strategy is tried before the
// session cookie so machine clients never fall through to cookie auth.
func NewServer(
	context context.Context,
	cfg *config.Config,
	log *slog.Logger,
	gatekeeper *middleware.Gatekeeper,
	resolvers []middleware.IdentityResolver,
	h Handlers,
) *Server {
	r := chi.NewRouter()

	corsPolicy := middleware.CORSPolicy{
		AllowedOrigins: cfg.SplitAllowedOrigins(),
		AllowedSchemes: cfg.SplitAllowedSchemes(),
		AllowAll:       cfg.IsDevelopment(),
	}

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(corsPolicy))
	r.Use(middleware.BurstLimit(context))
	r.Use(middleware.Authenticate(resolvers...))
	r.Use(gatekeeper.RateLimitByClass())
	r.Use(gatekeeper.SessionFreshness())
	r.Use(gatekeeper.FlagSuspicious())
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", h.Identity.Routes())
		api.Mount("/oauth", h.Authorize.Routes())
		api.Mount("/account", h.Account.Routes(h.Identity.DeleteAccount))
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
