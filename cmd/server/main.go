// Copyright 2026 The LexGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/config"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/notify"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/observability/tracing"
	"github.com/lexguard/lexguard/internal/provider/clerk"
	"github.com/lexguard/lexguard/internal/session"
	"github.com/lexguard/lexguard/internal/store/postgres"
	transportHTTP "github.com/lexguard/lexguard/internal/transport/http"
	"github.com/lexguard/lexguard/internal/webhook"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Telemetry.ServiceName,
		OTelEnabled: cfg.Telemetry.Enabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// CLI commands
	if len(os.Args) > 1 {
		var cmdErr error
		switch os.Args[1] {
		case "migrate":
			cmdErr = runMigrate(ctx, cfg)
		case "bootstrap":
			cmdErr = runBootstrap(ctx, cfg)
		default:
			cmdErr = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if cmdErr != nil {
			slog.Error("command failed", slog.String("command", os.Args[1]), logger.Error(cmdErr))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting lexguard admin authorization service",
		slog.String("identity_backend", cfg.Identity.Backend),
	)

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Endpoint:       cfg.Telemetry.Endpoint,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.WithoutCancel(ctx))
	}

	// Initialize meter
	metricsCfg := metrics.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Endpoint:       cfg.Telemetry.Endpoint,
	}
	if cfg.Telemetry.Enabled {
		mp, err := metrics.NewProvider(ctx, metricsCfg)
		if err != nil {
			slog.Error("failed to initialize meter provider", logger.Error(err))
		} else {
			defer mp.Shutdown(context.WithoutCancel(ctx))
		}
	}
	instruments, err := metrics.NewInstruments(metrics.New(metricsCfg))
	if err != nil {
		slog.Error("failed to create instruments", logger.Error(err))
		instruments = metrics.Noop()
	}

	auditLogger := audit.NewSlogLogger()
	authzService := authz.NewService(auditLogger, instruments)

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	identityService := identity.NewService(be.directory, authzService, auditLogger, instruments, identity.Options{
		ProtectLastSuperadmin: cfg.Policy.ProtectLastSuperadmin,
	})
	invitationService := invitation.NewService(be.provider, authzService, auditLogger, instruments)

	// Run bootstrap (ENV driven)
	if err := identity.NewBootstrapService(be.directory, auditLogger, cfg.Bootstrap.SuperadminEmail).Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	var processor *webhook.Processor
	if cfg.WebhooksEnabled() {
		verifier, err := webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		be.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		processor = webhook.NewProcessor(
			verifier,
			webhook.NewDeduper(rdb, cfg.Webhook.DedupTTL),
			invitationService,
			identityService,
			auditLogger,
		)
		slog.Info("identity webhooks enabled")
	}

	// The hosted provider records acceptance itself; poll it so pending
	// gauges and acceptance audits stay current.
	if be.watch {
		watcher := invitation.NewWatcher(be.provider, auditLogger, instruments, cfg.Policy.InvitationPollInterval)
		go watcher.Run(ctx)
	}

	verifier, err := session.NewVerifier(session.Config{
		CookieName:   cfg.Session.CookieName,
		Secret:       cfg.Session.JWTSecret,
		PublicKeyPEM: cfg.Session.JWTPublicKey,
		Issuer:       cfg.Session.Issuer,
		Leeway:       cfg.Session.Leeway,
	})
	if err != nil {
		return err
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	var pages http.Handler
	if info, err := os.Stat(cfg.Server.AdminDir); err == nil && info.IsDir() {
		pages = transportHTTP.NewAdminPageHandler(authzService, os.DirFS(cfg.Server.AdminDir))
	} else {
		slog.Warn("admin app not found, page routes disabled", slog.String("dir", cfg.Server.AdminDir))
	}

	handler := transportHTTP.NewHandler(transportHTTP.Services{
		Authz:        authzService,
		Identity:     identityService,
		Invitations:  invitationService,
		Webhooks:     processor,
		Pages:        pages,
		HealthChecks: be.checks,
	})
	router := transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.RouterConfig{
		Resolver:       verifier,
		Metrics:        metrics.NewHTTPMetrics(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// backend is the store of record for users and invitations.
type backend struct {
	directory identity.UserDirectory
	provider  invitation.Provider
	checks    map[string]transportHTTP.HealthCheck
	watch     bool
	close     func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Identity.Backend {
	case config.BackendClerk:
		client := clerk.New(clerk.Config{
			BaseURL:   cfg.Clerk.BaseURL,
			SecretKey: cfg.Clerk.SecretKey,
			Timeout:   cfg.Clerk.Timeout,
		})
		return &backend{
			directory: client,
			provider:  client,
			checks:    map[string]transportHTTP.HealthCheck{},
			watch:     true,
			close:     func() {},
		}, nil

	case config.BackendPostgres:
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database")

		var mailer invitation.Mailer
		if cfg.SMTP.Host != "" {
			smtpMailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
				SiteURL:  cfg.SMTP.SiteURL,
			})
			if err != nil {
				db.Close()
				return nil, err
			}
			mailer = smtpMailer
		} else {
			slog.Warn("SMTP host not set, invitation e-mails are logged only")
			mailer = notify.NewLogMailer(cfg.SMTP.SiteURL)
		}

		return &backend{
			directory: postgres.NewUserRepository(db),
			provider:  postgres.NewInvitationRepository(db, mailer),
			checks:    map[string]transportHTTP.HealthCheck{"database": db.Ping},
			close:     db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown identity backend %q", cfg.Identity.Backend)
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func runBootstrap(ctx context.Context, cfg *config.Config) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	return identity.NewBootstrapService(be.directory, audit.NewSlogLogger(), cfg.Bootstrap.SuperadminEmail).Bootstrap(ctx)
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("applying initial schema")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	slog.Info("migration successful")
	return nil
}
