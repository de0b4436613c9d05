// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/services"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=72"`
}

type totpLoginRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required,len=6,numeric"`
}

type totpConfirmRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12,max=72"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ua, ip := clientInfo(r)

	result, err := h.svc.Auth.Login(r.Context(), req.Username, req.Password, services.ClientInfo{UserAgent: ua, IP: ip})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if result.TOTPRequired {
		respond(w, r, http.StatusOK, map[string]interface{}{
			"totp_required": true,
			"pending_token": result.PendingTOTP,
		})
		return
	}
	h.finishLogin(w, r, result.Tokens)
}

// LoginTOTP handles POST /api/v1/auth/totp, the second login step.
func (h *Handlers) LoginTOTP(w http.ResponseWriter, r *http.Request) {
	var req totpLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ua, ip := clientInfo(r)

	tokens, err := h.svc.Auth.CompleteTOTP(r.Context(), req.PendingToken, req.Code, services.ClientInfo{UserAgent: ua, IP: ip})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.finishLogin(w, r, tokens)
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token comes
// from its cookie; rotation burns the old JTI.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "No refresh token", nil)
		return
	}
	ua, ip := clientInfo(r)

	tokens, err := h.svc.Auth.Refresh(r.Context(), cookie.Value, services.ClientInfo{UserAgent: ua, IP: ip})
	if err != nil {
		auth.ClearAuthCookies(w, h.cfg.Security.CookieSecure)
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Session expired", nil)
		return
	}
	h.finishLogin(w, r, tokens)
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.RefreshCookieName); err == nil {
		if err := h.svc.Auth.Logout(r.Context(), cookie.Value); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}
	auth.ClearAuthCookies(w, h.cfg.Security.CookieSecure)
	respond(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/v1/auth/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
		return
	}
	admin, err := h.store.GetAdminAccount(r.Context(), claims.Subject)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]interface{}{
		"id":           admin.ID,
		"username":     admin.Username,
		"totp_enabled": admin.TOTPConfirmedAt != nil,
		"last_login":   admin.LastLoginAt,
	})
}

// TOTPEnroll handles POST /api/v1/auth/totp/enroll.
func (h *Handlers) TOTPEnroll(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	enrollment, err := h.svc.Auth.BeginTOTPEnrollment(r.Context(), claims.Subject)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, enrollment)
}

// TOTPConfirm handles POST /api/v1/auth/totp/confirm.
func (h *Handlers) TOTPConfirm(w http.ResponseWriter, r *http.Request) {
	var req totpConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if err := h.svc.Auth.ConfirmTOTP(r.Context(), claims.Subject, req.Code); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "TOTP enabled"})
}

// ChangePassword handles POST /api/v1/auth/password.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if err := h.svc.Auth.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"message": "password changed"})
}

// PlexPinStart handles GET /api/v1/auth/plex/pin.
func (h *Handlers) PlexPinStart(w http.ResponseWriter, r *http.Request) {
	pin, err := h.svc.Auth.BeginPlexPin(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, pin)
}

// PlexPinPoll handles GET /api/v1/auth/plex/pin/{id}. While the PIN is
// unclaimed the response reports pending; once the owner claims it the
// admin cookies are set.
func (h *Handlers) PlexPinPoll(w http.ResponseWriter, r *http.Request) {
	pinID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid pin id", nil)
		return
	}
	ua, ip := clientInfo(r)

	tokens, err := h.svc.Auth.CompletePlexPin(r.Context(), pinID, services.ClientInfo{UserAgent: ua, IP: ip})
	if err != nil {
		if errors.Is(err, auth.ErrPinPending) {
			respond(w, r, http.StatusOK, map[string]bool{"pending": true})
			return
		}
		respondServiceError(w, r, err)
		return
	}
	h.finishLogin(w, r, tokens)
}

func (h *Handlers) finishLogin(w http.ResponseWriter, r *http.Request, tokens *services.TokenPair) {
	auth.SetAuthCookies(w, tokens.Access, tokens.Refresh,
		h.cfg.Security.AccessTokenTTL, h.cfg.Security.RefreshTokenTTL,
		h.cfg.Security.CookieSecure)
	respond(w, r, http.StatusOK, map[string]interface{}{
		"username":   tokens.AccessClaims.Username,
		"expires_at": tokens.AccessClaims.ExpiresAt.Time,
	})
}
