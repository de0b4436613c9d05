// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/models"
	"github.com/zondarr/zondarr/internal/services"
)

type invitationRequest struct {
	Code             string   `json:"code" validate:"omitempty,invite_code"`
	Label            string   `json:"label" validate:"omitempty,max=128"`
	ExpiresAt        *string  `json:"expires_at" validate:"omitempty"`
	MaxUses          *int     `json:"max_uses" validate:"omitempty,min=1"`
	UserExpiresAfter *string  `json:"user_expires_after" validate:"omitempty"`
	AllowDownloads   bool     `json:"allow_downloads"`
	AllowLiveTV      bool     `json:"allow_live_tv"`
	ServerIDs        []string `json:"server_ids" validate:"required,min=1,dive,required"`
	LibraryIDs       []string `json:"library_ids" validate:"omitempty,dive,required"`
	PreWizardID      *string  `json:"pre_wizard_id"`
	PostWizardID     *string  `json:"post_wizard_id"`
	Disabled         bool     `json:"disabled"`
}

type redeemRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=64"`
	Password    string `json:"password" validate:"omitempty,min=8,max=72"`
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
	WizardToken string `json:"wizard_token"`
}

// invitationFromRequest maps the payload to the model, parsing the two
// time-valued fields.
func invitationFromRequest(req *invitationRequest, inv *models.Invitation) error {
	inv.Code = strings.ToUpper(req.Code)
	inv.Label = req.Label
	inv.MaxUses = req.MaxUses
	inv.AllowDownloads = req.AllowDownloads
	inv.AllowLiveTV = req.AllowLiveTV
	inv.ServerIDs = req.ServerIDs
	inv.LibraryIDs = req.LibraryIDs
	inv.PreWizardID = req.PreWizardID
	inv.PostWizardID = req.PostWizardID
	inv.Disabled = req.Disabled

	inv.ExpiresAt = nil
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return err
		}
		t = t.UTC()
		inv.ExpiresAt = &t
	}
	inv.UserExpiresAfter = nil
	if req.UserExpiresAfter != nil && *req.UserExpiresAfter != "" {
		d, err := time.ParseDuration(*req.UserExpiresAfter)
		if err != nil {
			return err
		}
		inv.UserExpiresAfter = &d
	}
	return nil
}

// CreateInvitation handles POST /api/v1/invitations.
func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv := &models.Invitation{}
	if err := invitationFromRequest(&req, inv); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid time value: "+err.Error(), nil)
		return
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		inv.CreatedBy = claims.Subject
	}

	if err := h.svc.Invitations.Create(r.Context(), inv); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, inv)
}

// ListInvitations handles GET /api/v1/invitations.
func (h *Handlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.store.ListInvitations(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, invitations)
}

// GetInvitation handles GET /api/v1/invitations/{id}.
func (h *Handlers) GetInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.store.GetInvitation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, inv)
}

// UpdateInvitation handles PUT /api/v1/invitations/{id}.
func (h *Handlers) UpdateInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.store.GetInvitation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req invitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := invitationFromRequest(&req, inv); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid time value: "+err.Error(), nil)
		return
	}

	if err := h.store.UpdateInvitation(r.Context(), inv); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, inv)
}

// DeleteInvitation handles DELETE /api/v1/invitations/{id}.
func (h *Handlers) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteInvitation(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "invitation deleted"})
}

// invitationSummary is the guest-facing view: no admin bookkeeping, no
// grant internals beyond what the redemption page renders.
type invitationSummary struct {
	// ID is needed by the wizard flow: progress tokens are bound to
	// the invitation they were started for.
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Label       string     `json:"label,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UsesLeft    *int       `json:"uses_left,omitempty"`
	Servers     []string   `json:"servers"`
	PreWizardID *string    `json:"pre_wizard_id,omitempty"`
}

// ValidateInvitation handles GET /api/v1/public/invitations/{code}.
func (h *Handlers) ValidateInvitation(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	inv, err := h.svc.Invitations.Validate(r.Context(), code)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	summary := invitationSummary{
		ID:          inv.ID,
		Code:        inv.Code,
		Label:       inv.Label,
		ExpiresAt:   inv.ExpiresAt,
		PreWizardID: inv.PreWizardID,
	}
	if inv.MaxUses != nil {
		left := *inv.MaxUses - inv.UseCount
		summary.UsesLeft = &left
	}
	for _, sid := range inv.ServerIDs {
		srv, err := h.store.GetMediaServer(r.Context(), sid)
		if err != nil {
			continue
		}
		summary.Servers = append(summary.Servers, srv.Name)
	}
	respond(w, r, http.StatusOK, summary)
}

// RedeemInvitation handles POST /api/v1/public/invitations/{code}/redeem.
func (h *Handlers) RedeemInvitation(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))

	result, err := h.svc.Invitations.Redeem(r.Context(), code, services.RedeemRequest{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		WizardToken: req.WizardToken,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, result)
}
