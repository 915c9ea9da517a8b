// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

// Command api is the entry point for the Lumenbase accounts HTTP server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the authorization core and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenbase/accounts/internal/api"
	"github.com/lumenbase/accounts/internal/core/authcode"
	"github.com/lumenbase/accounts/internal/core/authorize"
	"github.com/lumenbase/accounts/internal/core/client"
	"github.com/lumenbase/accounts/internal/core/grant"
	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/identity"
	"github.com/lumenbase/accounts/internal/platform/config"
	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/middleware"
	"github.com/lumenbase/accounts/internal/platform/migration"
	pgstore "github.com/lumenbase/accounts/internal/platform/postgres"
	"github.com/lumenbase/accounts/internal/platform/ratestore"
	redisstore "github.com/lumenbase/accounts/internal/platform/redis"
	"github.com/lumenbase/accounts/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Security Primitives ────────────────────────────────────────────
	adminPolicy := sec.NewAdminPolicy(cfg.SplitAdminEmails())

	codec, err := sec.NewTokenService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		constants.AuthIssuer,
		constants.AccessTokenTTL,
		constants.RefreshTokenTTL,
		adminPolicy,
	)
	must(log, err, "initialize token codec")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	userRepository := identity.NewRepository(pool)
	appRepository := client.NewRepository(pool)
	tokenRepository := tokenreg.NewTokenRepository(pool)
	sessionRepository := tokenreg.NewSessionRepository(pool)
	grantRepository := grant.NewRepository(pool)

	directory := identity.NewDirectory(userRepository)
	codeService := authcode.NewService(authcode.NewRedisStore(rdb))
	registry := tokenreg.NewService(tokenRepository, sessionRepository, codec, appRepository, directory, log)
	grantService := grant.NewService(grantRepository, log)
	identityService := identity.NewService(userRepository, adminPolicy, registry, grantService, log)
	authServer := authorize.NewService(appRepository, codeService, registry, grantService, directory, log)

	bridge := identity.NewProviderBridge(cfg)

	identityHandler := identity.NewHandler(identityService, registry, bridge)
	authorizeHandler := authorize.NewHandler(authServer)
	accountHandler := tokenreg.NewHandler(registry)

	// ── 9. Gatekeeper & Identity Resolution ───────────────────────────────
	// Redis-backed windows so rate limits hold across instances.
	gatekeeper := middleware.NewGatekeeper(ratestore.NewRedisStore(rdb), registry, log)

	resolvers := []middleware.IdentityResolver{
		middleware.NewBearerResolver(codec),
		middleware.NewSessionResolver(registry),
	}

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Identity:  identityHandler,
		Authorize: authorizeHandler,
		Account:   accountHandler,
	}

	server := api.NewServer(appCtx, cfg, log, gatekeeper, resolvers, handlers)

	// Expired unrevoked token records accumulate otherwise; the sweep is
	// idempotent and safe alongside normal traffic.
	go sweepExpiredTokens(appCtx, registry, log)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	appCancel()

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// sweepExpiredTokens purges expired unrevoked token records on an hourly tick.
func sweepExpiredTokens(appCtx context.Context, registry *tokenreg.Service, log *slog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-appCtx.Done():
			return
		case <-ticker.C:
			purged, err := registry.SweepExpired(context.Background())
			if err != nil {
				log.Warn("token_sweep_failed", slog.Any("error", err))
				continue
			}
			if purged > 0 {
				log.Info("token_sweep_completed", slog.Int64("purged", purged))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
