// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// Sync run statuses.
const (
	SyncStatusRunning = "running"
	SyncStatusOK      = "ok"
	SyncStatusFailed  = "failed"
)

// SyncRun records one reconciliation pass between local User rows and the
// live user list of a MediaServer.
type SyncRun struct {
	ID            string     `json:"id"`
	ServerID      string     `json:"server_id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Status        string     `json:"status"`
	UsersSeen     int        `json:"users_seen"`
	UsersImported int        `json:"users_imported"`
	UsersMissing  int        `json:"users_missing"`
	Error         string     `json:"error,omitempty"`
}

// SyncExclusion marks an external account that sync must never import or
// touch (typically the server owner account).
type SyncExclusion struct {
	ID         string    `json:"id"`
	ServerID   string    `json:"server_id"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}
