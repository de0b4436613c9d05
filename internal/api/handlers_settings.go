// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type settingUpdateRequest struct {
	Value string `json:"value"`
}

// ListSettings handles GET /api/v1/settings.
func (h *Handlers) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, settings)
}

// GetSetting handles GET /api/v1/settings/{key}.
func (h *Handlers) GetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.svc.Settings.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, setting)
}

// PutSetting handles PUT /api/v1/settings/{key}.
func (h *Handlers) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req settingUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.svc.Settings.Set(r.Context(), key, req.Value); err != nil {
		respondServiceError(w, r, err)
		return
	}
	setting, err := h.svc.Settings.Get(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, setting)
}

// ResetSetting handles DELETE /api/v1/settings/{key}. The stored
// override is removed and the setting reverts to its default.
func (h *Handlers) ResetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.svc.Settings.Reset(r.Context(), key); err != nil {
		respondServiceError(w, r, err)
		return
	}
	setting, err := h.svc.Settings.Get(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, setting)
}
