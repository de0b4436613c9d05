// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/models"
)

type identityRequest struct {
	DisplayName string  `json:"display_name" validate:"required,min=1,max=128"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Admin       bool    `json:"admin"`
}

// ListIdentities handles GET /api/v1/identities.
func (h *Handlers) ListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := h.store.ListIdentities(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, identities)
}

// CreateIdentity handles POST /api/v1/identities.
func (h *Handlers) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identity := &models.Identity{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Admin:       req.Admin,
	}
	if err := h.store.CreateIdentity(r.Context(), identity); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, identity)
}

// GetIdentity handles GET /api/v1/identities/{id}, including the
// identity's media server accounts.
func (h *Handlers) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	identity, err := h.store.GetIdentity(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	users, err := h.store.ListUsers(r.Context(), database.UserFilter{IdentityID: id})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	identity.Users = users
	respond(w, r, http.StatusOK, identity)
}

// UpdateIdentity handles PUT /api/v1/identities/{id}.
func (h *Handlers) UpdateIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.store.GetIdentity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req identityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identity.DisplayName = req.DisplayName
	identity.Email = req.Email
	identity.Admin = req.Admin

	if err := h.store.UpdateIdentity(r.Context(), identity); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, identity)
}

// DeleteIdentity handles DELETE /api/v1/identities/{id}. The identity's
// user rows survive with IdentityID nulled by the schema.
func (h *Handlers) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteIdentity(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "identity deleted"})
}
