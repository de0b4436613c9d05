// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// AdminAccount is a dashboard administrator. TOTPSecret being non-nil
// means the account requires a second factor at login; TOTPConfirmedAt
// records when enrollment was completed with a first valid code.
type AdminAccount struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"` // unique
	PasswordHash    string     `json:"-"`
	TOTPSecret      *string    `json:"-"`
	TOTPConfirmedAt *time.Time `json:"totp_confirmed_at,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TOTPEnabled reports whether the second factor is enforced for logins.
func (a *AdminAccount) TOTPEnabled() bool {
	return a.TOTPSecret != nil && a.TOTPConfirmedAt != nil
}

// RefreshToken records an issued refresh JWT by its JTI so sessions can
// be listed and revoked. The badger denylist is the hot revocation path;
// this row is the durable audit record.
type RefreshToken struct {
	ID        string     `json:"id"` // JTI claim of the refresh JWT
	AdminID   string     `json:"admin_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	IP        string     `json:"ip,omitempty"`
}

// Active reports whether the token is still usable at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
