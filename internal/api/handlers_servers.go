// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zondarr/zondarr/internal/models"
	"github.com/zondarr/zondarr/internal/services"
)

type libraryToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type exclusionRequest struct {
	ExternalID string `json:"external_id" validate:"required"`
}

// ListServers handles GET /api/v1/servers.
func (h *Handlers) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ListMediaServers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, servers)
}

// CreateServer handles POST /api/v1/servers.
func (h *Handlers) CreateServer(w http.ResponseWriter, r *http.Request) {
	var req services.CreateServerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	srv, err := h.svc.Servers.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, srv)
}

// GetServer handles GET /api/v1/servers/{id}.
func (h *Handlers) GetServer(w http.ResponseWriter, r *http.Request) {
	srv, err := h.store.GetMediaServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, srv)
}

// UpdateServer handles PUT /api/v1/servers/{id}.
func (h *Handlers) UpdateServer(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateServerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	srv, err := h.svc.Servers.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, srv)
}

// DeleteServer handles DELETE /api/v1/servers/{id}.
func (h *Handlers) DeleteServer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Servers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "server deleted"})
}

// VerifyServer handles POST /api/v1/servers/{id}/verify.
func (h *Handlers) VerifyServer(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Servers.Test(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, info)
}

// ListLibraries handles GET /api/v1/servers/{id}/libraries.
func (h *Handlers) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := h.store.ListLibraries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, libs)
}

// RefreshLibraries handles POST /api/v1/servers/{id}/libraries/refresh.
func (h *Handlers) RefreshLibraries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Servers.RefreshLibraries(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	libs, err := h.store.ListLibraries(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, libs)
}

// SetLibraryEnabled handles PUT /api/v1/servers/{id}/libraries/{libraryID}.
func (h *Handlers) SetLibraryEnabled(w http.ResponseWriter, r *http.Request) {
	var req libraryToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.SetLibraryEnabled(r.Context(), chi.URLParam(r, "libraryID"), req.Enabled); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "library updated"})
}

// TriggerSync handles POST /api/v1/servers/{id}/sync.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	srv, err := h.store.GetMediaServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	run, syncErr := h.svc.Sync.SyncServer(r.Context(), srv)
	if syncErr != nil && run == nil {
		respondServiceError(w, r, syncErr)
		return
	}
	// A failed reconciliation still produced a run row; return it so
	// the dashboard can show the error.
	respond(w, r, http.StatusOK, run)
}

// ListSyncRuns handles GET /api/v1/servers/{id}/sync/runs.
func (h *Handlers) ListSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := h.pageSize(queryInt(r, "limit", 0))
	runs, err := h.store.ListSyncRuns(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, runs)
}

// ListSyncExclusions handles GET /api/v1/servers/{id}/exclusions.
func (h *Handlers) ListSyncExclusions(w http.ResponseWriter, r *http.Request) {
	exclusions, err := h.store.ListSyncExclusions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, exclusions)
}

// AddSyncExclusion handles POST /api/v1/servers/{id}/exclusions.
func (h *Handlers) AddSyncExclusion(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e := &models.SyncExclusion{
		ServerID:   chi.URLParam(r, "id"),
		ExternalID: req.ExternalID,
	}
	if err := h.store.AddSyncExclusion(r.Context(), e); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, e)
}

// RemoveSyncExclusion handles DELETE /api/v1/servers/{id}/exclusions/{exclusionID}.
func (h *Handlers) RemoveSyncExclusion(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveSyncExclusion(r.Context(), chi.URLParam(r, "exclusionID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "exclusion removed"})
}
