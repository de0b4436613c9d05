// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package services implements the business logic between the HTTP
// controllers and the database/media layers: invitation lifecycle and
// redemption, user management, background sync, settings resolution,
// wizards and admin authentication.
package services

import "errors"

// Sentinel errors controllers map to response codes.
var (
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInvitationExpired   = errors.New("invitation expired")
	ErrInvitationExhausted = errors.New("invitation has no uses left")
	ErrInvitationDisabled  = errors.New("invitation disabled")

	ErrServerNotEnabled   = errors.New("media server is disabled")
	ErrLibraryNotOnServer = errors.New("library does not belong to a granted server")
	ErrWizardNotFound     = errors.New("wizard not found")

	ErrUnknownSetting  = errors.New("unknown setting key")
	ErrSettingReadOnly = errors.New("setting is controlled by the environment")

	ErrBadCredentials = errors.New("invalid username or password")
	ErrTOTPRequired   = errors.New("TOTP code required")
	ErrTOTPInvalid    = errors.New("invalid TOTP code")

	ErrStepIncomplete       = errors.New("required interactions not completed")
	ErrStepOutOfOrder       = errors.New("step submitted out of order")
	ErrProgressTokenInvalid = errors.New("wizard progress token invalid")

	ErrWizardRequired = errors.New("pre-invitation wizard not completed")
)
