// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/models"
)

// HealthLive handles GET /healthz. It is intentionally unauthenticated
// and does not touch the database so orchestrators can probe it cheaply.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// Status handles GET /api/v1/status: the admin dashboard summary.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.DashboardStatus{
		LastSyncs: map[string]models.SyncRun{},
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   Version,
	}

	invitations, err := h.store.ListInvitations(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	now := time.Now()
	status.Invitations.Total = len(invitations)
	for _, inv := range invitations {
		if inv.Disabled {
			continue
		}
		if inv.ExpiresAt != nil && now.After(*inv.ExpiresAt) {
			continue
		}
		if inv.MaxUses != nil && inv.UseCount >= *inv.MaxUses {
			continue
		}
		status.Invitations.Active++
	}

	users, err := h.store.ListUsers(ctx, database.UserFilter{})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status.Users = len(users)

	identities, err := h.store.ListIdentities(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status.Identities = len(identities)

	servers, err := h.store.ListMediaServers(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	usersPerServer := map[string]int{}
	for _, u := range users {
		usersPerServer[u.ServerID]++
	}
	for i := range servers {
		srv := &servers[i]
		health := models.ServerHealth{
			ServerID: srv.ID,
			Name:     srv.Name,
			Type:     srv.Type,
			Enabled:  srv.Enabled,
			Users:    usersPerServer[srv.ID],
		}
		if srv.Enabled {
			health.Reachable = h.pingServer(ctx, srv)
		}
		status.Servers = append(status.Servers, health)

		if run, err := h.store.LatestSyncRun(ctx, srv.ID); err == nil {
			status.LastSyncs[srv.ID] = *run
		}
	}

	respond(w, r, http.StatusOK, status)
}

func (h *Handlers) pingServer(ctx context.Context, srv *models.MediaServer) bool {
	client, err := h.registry.ClientFor(srv)
	if err != nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logging.Debug().Err(err).Str("server_id", srv.ID).Msg("Media server unreachable")
		return false
	}
	return true
}
