// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package api implements the /api/v1 HTTP surface: admin dashboard
// endpoints behind JWT cookies and the public guest endpoints for
// invitation redemption and wizards.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/middleware"
	"github.com/zondarr/zondarr/internal/models"
	"github.com/zondarr/zondarr/internal/services"
	"github.com/zondarr/zondarr/internal/validation"
)

// Error codes returned in the response envelope.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeLockedOut        = "LOCKED_OUT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"

	ErrCodeInvitationNotFound  = "INVITATION_NOT_FOUND"
	ErrCodeInvitationExpired   = "INVITATION_EXPIRED"
	ErrCodeInvitationExhausted = "INVITATION_EXHAUSTED"
	ErrCodeInvitationDisabled  = "INVITATION_DISABLED"
	ErrCodeWizardIncomplete    = "WIZARD_INCOMPLETE"
	ErrCodeTOTPRequired        = "TOTP_REQUIRED"
	ErrCodeTOTPInvalid         = "TOTP_INVALID"
)

// respond writes the success envelope.
func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, &models.APIResponse{
		Status: "success",
		Data:   data,
	})
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	writeEnvelope(w, r, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message, Details: details},
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp *models.APIResponse) {
	resp.Metadata = models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondServiceError maps service and storage sentinels onto HTTP
// statuses and stable error codes. Unknown errors become opaque 500s;
// the detail goes to the log, not the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *validation.RequestValidationError
	if errors.As(err, &reqErr) {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "Request validation failed", reqErr.Details())
		return
	}

	switch {
	case errors.Is(err, services.ErrInvitationNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeInvitationNotFound, "Invitation not found", nil)
	case errors.Is(err, services.ErrInvitationExpired):
		respondError(w, r, http.StatusGone, ErrCodeInvitationExpired, "This invitation has expired", nil)
	case errors.Is(err, services.ErrInvitationExhausted):
		respondError(w, r, http.StatusConflict, ErrCodeInvitationExhausted, "This invitation has no uses left", nil)
	case errors.Is(err, services.ErrInvitationDisabled):
		respondError(w, r, http.StatusGone, ErrCodeInvitationDisabled, "This invitation has been disabled", nil)
	case errors.Is(err, services.ErrWizardRequired), errors.Is(err, services.ErrStepIncomplete):
		respondError(w, r, http.StatusConflict, ErrCodeWizardIncomplete, "Complete the onboarding steps first", nil)
	case errors.Is(err, services.ErrStepOutOfOrder):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Steps must be completed in order", nil)
	case errors.Is(err, services.ErrProgressTokenInvalid):
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid progress token", nil)
	case errors.Is(err, services.ErrBadCredentials), errors.Is(err, services.ErrTOTPInvalid):
		code := ErrCodeUnauthorized
		if errors.Is(err, services.ErrTOTPInvalid) {
			code = ErrCodeTOTPInvalid
		}
		respondError(w, r, http.StatusUnauthorized, code, "Invalid credentials", nil)
	case errors.Is(err, auth.ErrLockedOut):
		respondError(w, r, http.StatusTooManyRequests, ErrCodeLockedOut, "Too many failed attempts, try again later", nil)
	case errors.Is(err, services.ErrServerNotEnabled),
		errors.Is(err, services.ErrLibraryNotOnServer),
		errors.Is(err, services.ErrUnknownSetting),
		errors.Is(err, services.ErrSettingReadOnly):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, services.ErrWizardNotFound), errors.Is(err, database.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil)
	case errors.Is(err, database.ErrDuplicate):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Resource already exists", nil)
	case errors.Is(err, database.ErrConflict):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Conflicting update", nil)
	case errors.Is(err, media.ErrUnauthorized), errors.Is(err, media.ErrRemoteNotFound), errors.Is(err, media.ErrUnknownServerType):
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, "Media server request failed", nil)
	default:
		logging.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("Request failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", nil)
	}
}
