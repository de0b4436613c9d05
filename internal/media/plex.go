// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

/*
plex.go - Plex API client

Plex splits user management across two hosts: the media server itself
(/identity, /library/sections) and plex.tv (v2 shared_servers), which
owns invites and shares. "Creating a user" on Plex means sharing the
server with a plex.tv account; "disabling" means removing the share, and
re-enabling re-invites by account id.

API Reference: https://plexapi.dev/
*/

package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// DefaultPlexTVURL is the plex.tv API origin. Overridable for tests.
const DefaultPlexTVURL = "https://plex.tv"

// Ensure PlexClient implements Client.
var _ Client = (*PlexClient)(nil)

// PlexClient talks to one Plex media server and the plex.tv share API
// using the server owner's account token.
type PlexClient struct {
	baseURL    string // the media server
	plexTVURL  string
	token      string // owner account token, valid on both hosts
	clientID   string // X-Plex-Client-Identifier
	httpClient *http.Client

	mu        sync.Mutex
	machineID string // cached /identity machineIdentifier
}

// NewPlexClient creates a Plex API client.
func NewPlexClient(baseURL, token string) *PlexClient {
	return &PlexClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		plexTVURL: DefaultPlexTVURL,
		token:     token,
		clientID:  "zondarr",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetPlexTVURL points the share API at a different origin. Tests use
// this to aim at an httptest server.
func (c *PlexClient) SetPlexTVURL(u string) {
	c.plexTVURL = strings.TrimSuffix(u, "/")
}

type plexMediaContainer struct {
	MediaContainer struct {
		FriendlyName      string `json:"friendlyName"`
		MachineIdentifier string `json:"machineIdentifier"`
		Version           string `json:"version"`
		Directory         []struct {
			Key   string `json:"key"`
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

type plexSharedServer struct {
	ID                int   `json:"id"`
	LibrarySectionIDs []int `json:"librarySectionIds"`
	Invited           struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"invited"`
	Settings plexShareSettings `json:"settings"`
}

type plexShareSettings struct {
	AllowSync     bool `json:"allowSync"`
	AllowChannels bool `json:"allowChannels"`
}

type plexShareRequest struct {
	MachineIdentifier string            `json:"machineIdentifier"`
	InvitedEmail      string            `json:"invitedEmail,omitempty"`
	InvitedID         int               `json:"invitedId,omitempty"`
	LibrarySectionIDs []int             `json:"librarySectionIds"`
	Settings          plexShareSettings `json:"settings"`
}

// Ping verifies connectivity and the token against the media server.
func (c *PlexClient) Ping(ctx context.Context) error {
	_, err := c.ServerInfo(ctx)
	return err
}

// ServerInfo combines / (friendly name) and /identity (machine id).
func (c *PlexClient) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var root plexMediaContainer
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/", nil, &root); err != nil {
		return nil, fmt.Errorf("plex server root: %w", err)
	}
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	return &ServerInfo{
		Name:       root.MediaContainer.FriendlyName,
		Version:    root.MediaContainer.Version,
		ExternalID: machineID,
	}, nil
}

// Libraries lists /library/sections.
func (c *PlexClient) Libraries(ctx context.Context) ([]RemoteLibrary, error) {
	var sections plexMediaContainer
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/library/sections", nil, &sections); err != nil {
		return nil, fmt.Errorf("plex library sections: %w", err)
	}
	libs := make([]RemoteLibrary, 0, len(sections.MediaContainer.Directory))
	for _, d := range sections.MediaContainer.Directory {
		libs = append(libs, RemoteLibrary{ExternalID: d.Key, Name: d.Title, Type: d.Type})
	}
	return libs, nil
}

// Users lists the accounts this server is shared with.
func (c *PlexClient) Users(ctx context.Context) ([]RemoteUser, error) {
	shares, err := c.listShares(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]RemoteUser, 0, len(shares))
	for _, sh := range shares {
		users = append(users, RemoteUser{
			ExternalID: strconv.Itoa(sh.Invited.ID),
			Username:   sh.Invited.Username,
			Email:      sh.Invited.Email,
		})
	}
	return users, nil
}

// CreateUser invites a plex.tv account by email and shares the granted
// libraries with it.
func (c *PlexClient) CreateUser(ctx context.Context, req NewUserRequest) (*RemoteUser, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("plex invite requires an email address")
	}
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	share := plexShareRequest{
		MachineIdentifier: machineID,
		InvitedEmail:      req.Email,
		LibrarySectionIDs: sectionIDs(req.Policy.LibraryIDs),
		Settings: plexShareSettings{
			AllowSync:     req.Policy.AllowDownloads,
			AllowChannels: req.Policy.AllowLiveTV,
		},
	}
	var created plexSharedServer
	if err := c.doJSON(ctx, http.MethodPost, c.plexTVURL+"/api/v2/shared_servers", share, &created); err != nil {
		return nil, fmt.Errorf("plex create share: %w", err)
	}
	username := created.Invited.Username
	if username == "" {
		username = req.Email
	}
	return &RemoteUser{
		ExternalID: strconv.Itoa(created.Invited.ID),
		Username:   username,
		Email:      req.Email,
	}, nil
}

// UpdateUserPolicy rewrites the share's library grant and settings.
func (c *PlexClient) UpdateUserPolicy(ctx context.Context, externalID string, policy UserPolicy) error {
	sh, err := c.findShare(ctx, externalID)
	if err != nil {
		return err
	}
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return err
	}
	update := plexShareRequest{
		MachineIdentifier: machineID,
		LibrarySectionIDs: sectionIDs(policy.LibraryIDs),
		Settings: plexShareSettings{
			AllowSync:     policy.AllowDownloads,
			AllowChannels: policy.AllowLiveTV,
		},
	}
	endpoint := fmt.Sprintf("%s/api/v2/shared_servers/%d", c.plexTVURL, sh.ID)
	if err := c.doJSON(ctx, http.MethodPut, endpoint, update, nil); err != nil {
		return fmt.Errorf("plex update share: %w", err)
	}
	return nil
}

// SetEnabled removes the share (disable) or re-invites the account by
// its plex.tv id (enable). Plex has no per-user disabled flag.
func (c *PlexClient) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	if !enabled {
		return c.DeleteUser(ctx, externalID)
	}

	invitedID, err := strconv.Atoi(externalID)
	if err != nil {
		return fmt.Errorf("plex account id %q is not numeric", externalID)
	}
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return err
	}
	share := plexShareRequest{
		MachineIdentifier: machineID,
		InvitedID:         invitedID,
		LibrarySectionIDs: []int{},
	}
	if err := c.doJSON(ctx, http.MethodPost, c.plexTVURL+"/api/v2/shared_servers", share, nil); err != nil {
		return fmt.Errorf("plex re-invite: %w", err)
	}
	return nil
}

// DeleteUser removes the share for the given plex.tv account id.
func (c *PlexClient) DeleteUser(ctx context.Context, externalID string) error {
	sh, err := c.findShare(ctx, externalID)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/v2/shared_servers/%d", c.plexTVURL, sh.ID)
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("plex delete share: %w", err)
	}
	return nil
}

func (c *PlexClient) listShares(ctx context.Context) ([]plexSharedServer, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := c.plexTVURL + "/api/v2/shared_servers?machineIdentifier=" + machineID
	var shares []plexSharedServer
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &shares); err != nil {
		return nil, fmt.Errorf("plex list shares: %w", err)
	}
	return shares, nil
}

func (c *PlexClient) findShare(ctx context.Context, externalID string) (*plexSharedServer, error) {
	shares, err := c.listShares(ctx)
	if err != nil {
		return nil, err
	}
	for i := range shares {
		if strconv.Itoa(shares[i].Invited.ID) == externalID {
			return &shares[i], nil
		}
	}
	return nil, ErrRemoteNotFound
}

func (c *PlexClient) machineIdentifier(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.machineID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var identity plexMediaContainer
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/identity", nil, &identity); err != nil {
		return "", fmt.Errorf("plex identity: %w", err)
	}
	id := identity.MediaContainer.MachineIdentifier
	if id == "" {
		return "", fmt.Errorf("plex identity returned no machineIdentifier")
	}
	c.mu.Lock()
	c.machineID = id
	c.mu.Unlock()
	return id, nil
}

func sectionIDs(libraryIDs []string) []int {
	ids := make([]int, 0, len(libraryIDs))
	for _, s := range libraryIDs {
		if n, err := strconv.Atoi(s); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

// doJSON performs a request with Plex headers against either host.
func (c *PlexClient) doJSON(ctx context.Context, method, fullURL string, body, out interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", "Zondarr")
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
