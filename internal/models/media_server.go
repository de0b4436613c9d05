// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// Server types supported by the media client registry.
const (
	ServerTypePlex     = "plex"
	ServerTypeJellyfin = "jellyfin"
)

// MediaServer is a configured media-server backend that Zondarr can
// provision users on.
type MediaServer struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"` // "plex" or "jellyfin"
	URL        string     `json:"url"`
	APIKey     string     `json:"-"` // Plex token or Jellyfin API key; never serialized
	Enabled    bool       `json:"enabled"`
	ExternalID string     `json:"external_id,omitempty"` // machine identifier reported by the server
	Verified   bool       `json:"verified"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Library is a library (section/virtual folder) on a MediaServer.
// Disabled libraries are never granted by invitations.
type Library struct {
	ID         string    `json:"id"`
	ServerID   string    `json:"server_id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
