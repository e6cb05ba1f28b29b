// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

// Command api is the entry point for the Identra HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire domain services and HTTP handlers.
//  7. Start the background sweeper.
//  8. Start HTTP server with graceful shutdown.
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

	"github.com/identra-io/identra/internal/api"
	"github.com/identra-io/identra/internal/auth"
	"github.com/identra-io/identra/internal/csrf"
	"github.com/identra-io/identra/internal/mailer"
	"github.com/identra-io/identra/internal/oauth"
	"github.com/identra-io/identra/internal/platform/config"
	"github.com/identra-io/identra/internal/platform/constants"
	"github.com/identra-io/identra/internal/platform/migration"
	pgstore "github.com/identra-io/identra/internal/platform/postgres"
	redisstore "github.com/identra-io/identra/internal/platform/redis"
	"github.com/identra-io/identra/internal/platform/sec"
	"github.com/identra-io/identra/internal/profile"
	"github.com/identra-io/identra/internal/secevent"
	"github.com/identra-io/identra/internal/sweeper"
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

	log.Info("[Identra] service_initializing")

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

	// ── 6. Token Service ──────────────────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(
		cfg.AccessSecret(),
		cfg.JWTRefreshSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		constants.AuthIssuer,
		constants.AuthAudience,
	)
	must(log, err, "initialize jwt service")

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
	events := secevent.NewEmitter(log)

	var mailSender mailer.Sender
	if cfg.SMTPHost != "" {
		mailSender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.MailFromName, log)
	} else {
		mailSender = mailer.NewNoopSender(log)
	}

	userRepository := auth.NewUserRepository(pool)
	verificationRepository := auth.NewVerificationRepository(pool)
	resetRepository := auth.NewResetRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)

	authService := auth.NewService(
		userRepository,
		verificationRepository,
		resetRepository,
		sessionRepository,
		auth.NewLockoutStore(rdb),
		auth.NewFamilyStore(rdb),
		auth.NewMetaStore(rdb),
		auth.NewUserCache(rdb),
		jwtSvc,
		mailSender,
		events,
		cfg.FrontendURL,
	)

	csrfService := csrf.NewService(rdb)
	authHandler := auth.NewHandler(authService, csrfService)
	sessionHandler := auth.NewSessionHandler(authService)

	var providers []oauth.Provider
	if cfg.GoogleClientID != "" {
		providers = append(providers, oauth.NewGoogleProvider(
			cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.OAuthRedirectBase+"/api/v1/auth/oauth/google/callback",
		))
	}
	if cfg.GitHubClientID != "" {
		providers = append(providers, oauth.NewGitHubProvider(
			cfg.GitHubClientID, cfg.GitHubClientSecret,
			cfg.OAuthRedirectBase+"/api/v1/auth/oauth/github/callback",
		))
	}

	oauthService := oauth.NewService(
		providers,
		oauth.NewStateStore(rdb),
		oauth.NewAccountRepository(pool),
		userRepository,
		authService,
		events,
	)
	oauthHandler := oauth.NewHandler(oauthService, cfg.FrontendURL)

	profileService := profile.NewService(profile.NewRepository(pool), authService, log)
	profileHandler := profile.NewHandler(profileService)

	// ── 9. Background Sweeper ─────────────────────────────────────────────
	expirySweeper := sweeper.New(sessionRepository, resetRepository, log)
	must(log, expirySweeper.Start(), "start expiry sweeper")
	defer expirySweeper.Stop()

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Sessions:  sessionHandler,
		OAuth:     oauthHandler,
		Profile:   profileHandler,
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, jwtSvc, csrfService, handlers)

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

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
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
