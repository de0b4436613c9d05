// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

/*
plex_pin.go - plex.tv PIN link flow

Guests redeeming an invitation onto a Plex server authenticate against
plex.tv with the PIN link flow: Zondarr creates a PIN, the guest opens
plex.tv/link and enters the code, and Zondarr polls the PIN until
plex.tv attaches the account's auth token. The token is used once to
read the account (id, username, email) and never stored.

API Reference: https://forums.plex.tv/t/authenticating-with-plex/609370
*/

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrPinPending indicates the guest has not entered the code yet.
var ErrPinPending = errors.New("plex pin not yet claimed")

// PlexPin is one pending plex.tv link request.
type PlexPin struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlexAccount is the plex.tv account a claimed PIN resolves to.
type PlexAccount struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PlexPinClient drives the plex.tv PIN flow.
type PlexPinClient struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// NewPlexPinClient builds a PIN client with the given
// X-Plex-Client-Identifier.
func NewPlexPinClient(clientID string) *PlexPinClient {
	return &PlexPinClient{
		baseURL:  "https://plex.tv",
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL points the client at a different origin, for tests.
func (c *PlexPinClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

type plexPinResponse struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	AuthToken string `json:"authToken"`
	ExpiresAt string `json:"expiresAt"`
}

// CreatePin requests a new strong PIN.
func (c *PlexPinClient) CreatePin(ctx context.Context) (*PlexPin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v2/pins?strong=true", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex pin create: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plex pin create returned status %d", resp.StatusCode)
	}

	var pr plexPinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode pin: %w", err)
	}
	expires, _ := time.Parse(time.RFC3339, pr.ExpiresAt)
	return &PlexPin{ID: pr.ID, Code: pr.Code, ExpiresAt: expires}, nil
}

// CheckPin polls a PIN once. Returns ErrPinPending while unclaimed and
// the account once the guest has linked.
func (c *PlexPinClient) CheckPin(ctx context.Context, pinID int) (*PlexAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v2/pins/%d", c.baseURL, pinID), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex pin check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("plex pin %d expired or unknown", pinID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plex pin check returned status %d", resp.StatusCode)
	}

	var pr plexPinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode pin: %w", err)
	}
	if pr.AuthToken == "" {
		return nil, ErrPinPending
	}
	return c.Account(ctx, pr.AuthToken)
}

// Account reads the plex.tv account behind an auth token.
func (c *PlexPinClient) Account(ctx context.Context, token string) (*PlexAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v2/user", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("X-Plex-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex account lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plex account lookup returned status %d", resp.StatusCode)
	}

	var acct PlexAccount
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &acct, nil
}

func (c *PlexPinClient) setHeaders(req *http.Request) {
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", "Zondarr")
	req.Header.Set("Accept", "application/json")
}
