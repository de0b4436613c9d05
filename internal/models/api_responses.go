// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// APIResponse is the standardized response wrapper used by every HTTP
// endpoint.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "INVITATION_EXPIRED",
//	    "message": "This invitation is no longer valid"
//	  },
//	  "metadata": {"timestamp": "2026-08-29T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request. Code is a stable machine-readable
// identifier; Message is safe to show to end users.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DashboardStatus is the payload of GET /api/v1/status.
type DashboardStatus struct {
	Invitations struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	} `json:"invitations"`
	Users      int                `json:"users"`
	Identities int                `json:"identities"`
	Servers    []ServerHealth     `json:"servers"`
	LastSyncs  map[string]SyncRun `json:"last_syncs,omitempty"` // keyed by server id
	Uptime     string             `json:"uptime"`
	Version    string             `json:"version"`
}

// ServerHealth summarizes one media server for the dashboard.
type ServerHealth struct {
	ServerID  string `json:"server_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Enabled   bool   `json:"enabled"`
	Reachable bool   `json:"reachable"`
	Users     int    `json:"users"`
}
