// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package main is the entry point for the Zondarr server.
//
// Zondarr unifies invitation-based user provisioning across Plex and
// Jellyfin: admins create invitation codes, guests redeem them and are
// provisioned on every granted server, and a background sync keeps local
// user records reconciled with the servers' live account lists.
//
// # Startup order
//
//  1. Configuration (Koanf v2: env > config.yaml > defaults)
//  2. Logging (zerolog, teed into the SSE log ring)
//  3. Database (sqlite) with versioned migrations
//  4. Token issuer, denylist (badger) and login lockout
//  5. Business services and the bootstrap admin account
//  6. Supervisor tree: sync manager, janitor, HTTP server
//
// # Configuration
//
// Minimum required settings:
//   - ZONDARR_SECURITY_JWT_SECRET: 32+ character token signing secret
//   - ZONDARR_SECURITY_ADMIN_USERNAME / _ADMIN_PASSWORD: bootstrap admin
//     (only used while no admin account exists)
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests (10s budget), background workers stop at the next
// safe point, then the database and denylist close.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zondarr/zondarr/internal/api"
	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/config"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
	"github.com/zondarr/zondarr/internal/services"
	"github.com/zondarr/zondarr/internal/supervisor"
	supsvc "github.com/zondarr/zondarr/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	capture := logging.NewCapture(cfg.Logging.CaptureSize)
	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Capture: capture,
	})

	logging.Info().
		Str("version", api.Version).
		Str("db_path", cfg.Database.Path).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting Zondarr")

	store, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	denylist, err := auth.NewDenylist(cfg.Security.DenylistPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open token denylist")
	}
	defer func() {
		if err := denylist.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing denylist")
		}
	}()

	issuer := auth.NewTokenIssuer(cfg.Security.JWTSecret,
		cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL, cfg.Security.WizardProgressTTL)
	lockout := auth.NewLockout(auth.LockoutConfig{
		Threshold: cfg.Security.LockoutThreshold,
		Window:    cfg.Security.LockoutWindow,
		Duration:  cfg.Security.LockoutDuration,
	})

	registry := media.NewRegistry()
	registry.Register(models.ServerTypePlex, func(srv *models.MediaServer) media.Client {
		return media.NewPlexClient(srv.URL, srv.APIKey)
	})
	registry.Register(models.ServerTypeJellyfin, func(srv *models.MediaServer) media.Client {
		return media.NewJellyfinClient(srv.URL, srv.APIKey)
	})

	wizardSvc := services.NewWizardService(store, issuer)
	svc := api.Services{
		Auth: services.NewAuthService(store, issuer, denylist, lockout,
			auth.NewPlexPinClient("zondarr"), cfg.Security.PlexOwnerToken),
		Invitations: services.NewInvitationService(store, registry, wizardSvc),
		Users:       services.NewUserService(store, registry),
		Servers:     services.NewServerService(store, registry),
		Sync:        services.NewSyncService(store, registry),
		Settings:    services.NewSettingsService(store),
		Wizards:     wizardSvc,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Auth.EnsureAdmin(ctx, cfg.Security.AdminUsername, cfg.Security.AdminPassword); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure admin account")
	}

	handlers := api.NewHandlers(cfg, store, svc, registry, issuer, denylist, capture)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handlers).Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Sync.Enabled {
		tree.AddWorker(supsvc.NewSyncManager(svc.Sync, cfg.Sync.Interval, cfg.Sync.Timeout))
		logging.Info().Dur("interval", cfg.Sync.Interval).Msg("Background sync enabled")
	} else {
		logging.Info().Msg("Background sync disabled (SYNC_ENABLED=false)")
	}

	tree.AddWorker(supsvc.NewJanitor(cfg.Janitor.Interval,
		supsvc.JanitorTask{Name: "user-expiry", Run: func(ctx context.Context) error {
			disabled, err := svc.Users.ExpirySweep(ctx)
			if disabled > 0 {
				logging.Info().Int("disabled", disabled).Msg("Expired users disabled")
			}
			return err
		}},
		supsvc.JanitorTask{Name: "invitation-sweep", Run: svc.Invitations.Sweep},
		supsvc.JanitorTask{Name: "token-prune", Run: svc.Auth.PruneTokens},
		supsvc.JanitorTask{Name: "sync-run-prune", Run: func(ctx context.Context) error {
			_, err := svc.Sync.PruneRuns(ctx)
			return err
		}},
		supsvc.JanitorTask{Name: "lockout-sweep", Run: func(ctx context.Context) error {
			lockout.Sweep()
			return nil
		}},
	))

	tree.AddAPIService(supsvc.NewHTTPService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, s := range unstopped {
		logging.Warn().Str("service", s.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Zondarr stopped")
}
