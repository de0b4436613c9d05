// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zondarr/zondarr/internal/database"
)

type claimUserRequest struct {
	// IdentityID links the user to an identity; null detaches it.
	IdentityID *string `json:"identity_id"`
}

// ListUsers handles GET /api/v1/users. Filters: server_id, identity_id,
// orphaned=true (discovered users with no identity).
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.UserFilter{
		ServerID:   q.Get("server_id"),
		IdentityID: q.Get("identity_id"),
		Orphaned:   q.Get("orphaned") == "true",
	}
	users, err := h.store.ListUsers(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, users)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, user)
}

// EnableUser handles POST /api/v1/users/{id}/enable.
func (h *Handlers) EnableUser(w http.ResponseWriter, r *http.Request) {
	h.setUserEnabled(w, r, true)
}

// DisableUser handles POST /api/v1/users/{id}/disable.
func (h *Handlers) DisableUser(w http.ResponseWriter, r *http.Request) {
	h.setUserEnabled(w, r, false)
}

func (h *Handlers) setUserEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Users.SetEnabled(r.Context(), id, enabled); err != nil {
		respondServiceError(w, r, err)
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, user)
}

// ClaimUser handles POST /api/v1/users/{id}/claim: linking a discovered
// user to an identity, or detaching it.
func (h *Handlers) ClaimUser(w http.ResponseWriter, r *http.Request) {
	var req claimUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.Users.AttachIdentity(r.Context(), id, req.IdentityID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/{id}.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "user deleted"})
}
