// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// Identity is a Zondarr-level person record. One identity may own several
// per-server User accounts (e.g. the same person on Plex and Jellyfin).
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       *string   `json:"email,omitempty"` // unique when set
	Admin       bool      `json:"admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Users is populated by list/get queries that join user rows.
	Users []User `json:"users,omitempty"`
}

// User is a media-server account record linked to at most one Identity
// and exactly one MediaServer. Users discovered by sync start with a nil
// IdentityID until an admin claims them.
type User struct {
	ID           string     `json:"id"`
	IdentityID   *string    `json:"identity_id,omitempty"`
	ServerID     string     `json:"server_id"`
	ExternalID   string     `json:"external_id"` // server-side account id
	Username     string     `json:"username"`
	Email        *string    `json:"email,omitempty"`
	Enabled      bool       `json:"enabled"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	InvitationID *string    `json:"invitation_id,omitempty"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Expired reports whether the user's access window has lapsed.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}
