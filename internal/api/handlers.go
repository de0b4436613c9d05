// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"time"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/config"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/services"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Services bundles the business-logic layer the handlers call into.
type Services struct {
	Auth        *services.AuthService
	Invitations *services.InvitationService
	Users       *services.UserService
	Servers     *services.ServerService
	Sync        *services.SyncService
	Settings    *services.SettingsService
	Wizards     *services.WizardService
}

// Handlers holds every HTTP handler's shared dependencies.
type Handlers struct {
	cfg      *config.Config
	store    *database.Store
	svc      Services
	registry *media.Registry
	issuer   *auth.TokenIssuer
	denylist *auth.Denylist
	capture  *logging.Capture
	started  time.Time
}

// NewHandlers wires the handler set.
func NewHandlers(cfg *config.Config, store *database.Store, svc Services, registry *media.Registry, issuer *auth.TokenIssuer, denylist *auth.Denylist, capture *logging.Capture) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    store,
		svc:      svc,
		registry: registry,
		issuer:   issuer,
		denylist: denylist,
		capture:  capture,
		started:  time.Now(),
	}
}

// pageSize clamps a requested page size to the configured bounds.
func (h *Handlers) pageSize(requested int) int {
	if requested <= 0 {
		return h.cfg.API.DefaultPageSize
	}
	if requested > h.cfg.API.MaxPageSize {
		return h.cfg.API.MaxPageSize
	}
	return requested
}
