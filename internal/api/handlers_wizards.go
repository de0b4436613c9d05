// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zondarr/zondarr/internal/services"
)

// CreateWizard handles POST /api/v1/wizards.
func (h *Handlers) CreateWizard(w http.ResponseWriter, r *http.Request) {
	var req services.WizardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wiz, err := h.svc.Wizards.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, wiz)
}

// ListWizards handles GET /api/v1/wizards.
func (h *Handlers) ListWizards(w http.ResponseWriter, r *http.Request) {
	wizards, err := h.svc.Wizards.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, wizards)
}

// GetWizard handles GET /api/v1/wizards/{id}.
func (h *Handlers) GetWizard(w http.ResponseWriter, r *http.Request) {
	wiz, err := h.svc.Wizards.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, wiz)
}

// UpdateWizard handles PUT /api/v1/wizards/{id}.
func (h *Handlers) UpdateWizard(w http.ResponseWriter, r *http.Request) {
	var req services.WizardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wiz, err := h.svc.Wizards.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, wiz)
}

// DeleteWizard handles DELETE /api/v1/wizards/{id}.
func (h *Handlers) DeleteWizard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Wizards.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "wizard deleted"})
}

type wizardStepCompleteRequest struct {
	Token          string   `json:"token"`
	InteractionIDs []string `json:"interaction_ids"`
}

// GuestWizard handles GET /api/v1/public/wizards/{slug}. It returns
// the wizard definition together with a fresh progress token so the
// client can start stepping through it.
func (h *Handlers) GuestWizard(w http.ResponseWriter, r *http.Request) {
	wiz, err := h.svc.Wizards.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	invitationID := r.URL.Query().Get("invitation")
	state, err := h.svc.Wizards.Begin(r.Context(), wiz.ID, invitationID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"wizard":    wiz,
		"token":     state.Token,
		"step":      state.Step,
		"completed": state.Completed,
	})
}

// CompleteWizardStep handles POST /api/v1/public/wizards/{slug}/steps/{position}/complete.
func (h *Handlers) CompleteWizardStep(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil || position < 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid step position", nil)
		return
	}
	var req wizardStepCompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "progress token is required", nil)
		return
	}
	state, err := h.svc.Wizards.Advance(r.Context(), req.Token, position, req.InteractionIDs)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"token":     state.Token,
		"step":      state.Step,
		"completed": state.Completed,
	})
}
