// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package media implements the outbound API clients for the supported
// media server types. Every client sits behind the Client interface so
// the services layer never touches server-specific wire formats, and the
// Registry wraps each concrete client in a circuit breaker.
package media

import "context"

// ServerInfo is the normalized identity of a remote media server.
type ServerInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	ExternalID string `json:"external_id"` // server-side machine/installation id
}

// RemoteLibrary is a normalized library section as reported by a server.
type RemoteLibrary struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Type       string `json:"type"` // movie, show, music, ...
}

// RemoteUser is a normalized user account as reported by a server.
type RemoteUser struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Disabled   bool   `json:"disabled"`
}

// NewUserRequest carries everything needed to provision an account.
// Jellyfin consumes Username/Password; Plex invites by Email.
type NewUserRequest struct {
	Username string
	Password string
	Email    string
	Policy   UserPolicy
}

// UserPolicy is the normalized per-user permission set. An empty
// LibraryIDs grants every library.
type UserPolicy struct {
	LibraryIDs     []string
	AllowDownloads bool
	AllowLiveTV    bool
}

// Client is the surface every media server integration implements.
// Implementations are safe for concurrent use.
type Client interface {
	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error
	// ServerInfo fetches the remote server's identity.
	ServerInfo(ctx context.Context) (*ServerInfo, error)
	// Libraries lists the server's library sections.
	Libraries(ctx context.Context) ([]RemoteLibrary, error)
	// Users lists the server's accounts.
	Users(ctx context.Context) ([]RemoteUser, error)
	// CreateUser provisions an account and applies the request policy.
	CreateUser(ctx context.Context, req NewUserRequest) (*RemoteUser, error)
	// UpdateUserPolicy replaces the account's permission set.
	UpdateUserPolicy(ctx context.Context, externalID string, policy UserPolicy) error
	// SetEnabled enables or disables the account.
	SetEnabled(ctx context.Context, externalID string, enabled bool) error
	// DeleteUser removes the account. Returns ErrRemoteNotFound when the
	// account is already gone.
	DeleteUser(ctx context.Context, externalID string) error
}
