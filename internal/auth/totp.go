// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPEnrollment is handed to the admin during second-factor setup.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	// URL is the otpauth:// provisioning URI authenticator apps consume
	// (usually rendered as a QR code by the frontend).
	URL string `json:"url"`
}

// GenerateTOTP creates a fresh TOTP secret for an admin account.
func GenerateTOTP(username string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Zondarr",
		AccountName: username,
		Algorithm:   otp.AlgorithmSHA1, // broadest authenticator app support
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return &TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP checks a 6-digit code against the stored secret. The
// library allows one period of clock skew in either direction.
func ValidateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
