// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// Invitation is a redeemable code granting access to one or more media
// servers and, optionally, a subset of their libraries.
type Invitation struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"` // unique, human-typable
	Label     string     `json:"label,omitempty"`
	CreatedBy string     `json:"created_by"` // admin account id
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxUses   *int       `json:"max_uses,omitempty"` // nil = unlimited
	UseCount  int        `json:"use_count"`
	Disabled  bool       `json:"disabled"`

	// UserExpiresAfter, when set, stamps each provisioned user with
	// ExpiresAt = redemption time + this duration (stored as seconds).
	UserExpiresAfter *time.Duration `json:"user_expires_after,omitempty"`

	AllowDownloads bool `json:"allow_downloads"`
	AllowLiveTV    bool `json:"allow_live_tv"`

	// ServerIDs are the media servers this invitation provisions on.
	ServerIDs []string `json:"server_ids"`
	// LibraryIDs restrict the grant; empty means every enabled library
	// of each granted server.
	LibraryIDs []string `json:"library_ids,omitempty"`

	PreWizardID  *string `json:"pre_wizard_id,omitempty"`
	PostWizardID *string `json:"post_wizard_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the invitation's redemption window has lapsed.
func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// Exhausted reports whether every permitted use has been consumed.
func (i *Invitation) Exhausted() bool {
	return i.MaxUses != nil && i.UseCount >= *i.MaxUses
}
