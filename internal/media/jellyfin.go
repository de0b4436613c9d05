// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

/*
jellyfin.go - Jellyfin REST API client

Implements user provisioning against the Jellyfin admin API: /Users,
/Users/New, /Users/{id}/Policy, /Library/VirtualFolders, /System/Info.

API Reference: https://api.jellyfin.org/
*/

package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Ensure JellyfinClient implements Client.
var _ Client = (*JellyfinClient)(nil)

// JellyfinClient talks to a single Jellyfin server with an admin API key.
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewJellyfinClient creates a Jellyfin API client.
//
// Parameters:
//   - baseURL: Jellyfin server URL (e.g. http://localhost:8096)
//   - apiKey: API key from Admin Dashboard > API Keys
func NewJellyfinClient(baseURL, apiKey string) *JellyfinClient {
	return &JellyfinClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type jellyfinSystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

type jellyfinUser struct {
	ID     string         `json:"Id"`
	Name   string         `json:"Name"`
	Policy jellyfinPolicy `json:"Policy"`
}

// jellyfinPolicy is the subset of the Jellyfin user policy Zondarr
// manages. The policy endpoint replaces the whole document, so the
// fields Jellyfin defaults for new users are carried explicitly.
type jellyfinPolicy struct {
	IsDisabled               bool     `json:"IsDisabled"`
	EnableAllFolders         bool     `json:"EnableAllFolders"`
	EnabledFolders           []string `json:"EnabledFolders"`
	EnableContentDownloading bool     `json:"EnableContentDownloading"`
	EnableLiveTvAccess       bool     `json:"EnableLiveTvAccess"`
	EnableMediaPlayback      bool     `json:"EnableMediaPlayback"`
	EnableRemoteAccess       bool     `json:"EnableRemoteAccess"`
}

type jellyfinVirtualFolder struct {
	Name           string `json:"Name"`
	ItemID         string `json:"ItemId"`
	CollectionType string `json:"CollectionType"`
}

// Ping verifies connectivity and the API key.
func (c *JellyfinClient) Ping(ctx context.Context) error {
	_, err := c.ServerInfo(ctx)
	return err
}

// ServerInfo fetches /System/Info.
func (c *JellyfinClient) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info jellyfinSystemInfo
	if err := c.doJSON(ctx, http.MethodGet, "/System/Info", nil, &info); err != nil {
		return nil, fmt.Errorf("jellyfin system info: %w", err)
	}
	return &ServerInfo{Name: info.ServerName, Version: info.Version, ExternalID: info.ID}, nil
}

// Libraries lists the server's virtual folders.
func (c *JellyfinClient) Libraries(ctx context.Context) ([]RemoteLibrary, error) {
	var folders []jellyfinVirtualFolder
	if err := c.doJSON(ctx, http.MethodGet, "/Library/VirtualFolders", nil, &folders); err != nil {
		return nil, fmt.Errorf("jellyfin virtual folders: %w", err)
	}
	libs := make([]RemoteLibrary, 0, len(folders))
	for _, f := range folders {
		libs = append(libs, RemoteLibrary{
			ExternalID: f.ItemID,
			Name:       f.Name,
			Type:       f.CollectionType,
		})
	}
	return libs, nil
}

// Users lists all accounts.
func (c *JellyfinClient) Users(ctx context.Context) ([]RemoteUser, error) {
	var users []jellyfinUser
	if err := c.doJSON(ctx, http.MethodGet, "/Users", nil, &users); err != nil {
		return nil, fmt.Errorf("jellyfin users: %w", err)
	}
	out := make([]RemoteUser, 0, len(users))
	for _, u := range users {
		out = append(out, RemoteUser{
			ExternalID: u.ID,
			Username:   u.Name,
			Disabled:   u.Policy.IsDisabled,
		})
	}
	return out, nil
}

// CreateUser provisions an account via /Users/New and applies the
// request policy.
func (c *JellyfinClient) CreateUser(ctx context.Context, req NewUserRequest) (*RemoteUser, error) {
	body := map[string]string{"Name": req.Username, "Password": req.Password}
	var created jellyfinUser
	if err := c.doJSON(ctx, http.MethodPost, "/Users/New", body, &created); err != nil {
		return nil, fmt.Errorf("jellyfin create user: %w", err)
	}
	if err := c.UpdateUserPolicy(ctx, created.ID, req.Policy); err != nil {
		return nil, fmt.Errorf("jellyfin apply policy to new user: %w", err)
	}
	return &RemoteUser{ExternalID: created.ID, Username: created.Name}, nil
}

// UpdateUserPolicy replaces the account's permission set, preserving the
// account's disabled state.
func (c *JellyfinClient) UpdateUserPolicy(ctx context.Context, externalID string, policy UserPolicy) error {
	current, err := c.getUser(ctx, externalID)
	if err != nil {
		return err
	}
	p := policyDocument(policy)
	p.IsDisabled = current.Policy.IsDisabled
	if err := c.doJSON(ctx, http.MethodPost, "/Users/"+externalID+"/Policy", p, nil); err != nil {
		return fmt.Errorf("jellyfin update policy: %w", err)
	}
	return nil
}

// SetEnabled flips Policy.IsDisabled, keeping the rest of the policy.
func (c *JellyfinClient) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	current, err := c.getUser(ctx, externalID)
	if err != nil {
		return err
	}
	p := current.Policy
	p.IsDisabled = !enabled
	if err := c.doJSON(ctx, http.MethodPost, "/Users/"+externalID+"/Policy", p, nil); err != nil {
		return fmt.Errorf("jellyfin set enabled: %w", err)
	}
	return nil
}

// DeleteUser removes the account.
func (c *JellyfinClient) DeleteUser(ctx context.Context, externalID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/Users/"+externalID, nil, nil); err != nil {
		return fmt.Errorf("jellyfin delete user: %w", err)
	}
	return nil
}

func (c *JellyfinClient) getUser(ctx context.Context, externalID string) (*jellyfinUser, error) {
	var u jellyfinUser
	if err := c.doJSON(ctx, http.MethodGet, "/Users/"+externalID, nil, &u); err != nil {
		return nil, fmt.Errorf("jellyfin get user: %w", err)
	}
	return &u, nil
}

func policyDocument(policy UserPolicy) jellyfinPolicy {
	return jellyfinPolicy{
		EnableAllFolders:         len(policy.LibraryIDs) == 0,
		EnabledFolders:           policy.LibraryIDs,
		EnableContentDownloading: policy.AllowDownloads,
		EnableLiveTvAccess:       policy.AllowLiveTV,
		EnableMediaPlayback:      true,
		EnableRemoteAccess:       true,
	}
}

// doJSON performs a request against the Jellyfin API, encoding body (when
// non-nil) and decoding the response into out (when non-nil).
func (c *JellyfinClient) doJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "Zondarr")
	req.Header.Set("X-Emby-Device-Name", "Zondarr")
	req.Header.Set("X-Emby-Device-Id", "zondarr")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRemoteNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 512))
		if readErr != nil {
			return fmt.Errorf("status %d (failed to read body)", resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
