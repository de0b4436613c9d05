// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"fmt"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
)

// ServerService manages configured media servers and their library
// inventories.
type ServerService struct {
	store    *database.Store
	registry *media.Registry
}

// NewServerService builds the service.
func NewServerService(store *database.Store, registry *media.Registry) *ServerService {
	return &ServerService{store: store, registry: registry}
}

// CreateServerRequest describes a new media server.
type CreateServerRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=128"`
	Type   string `json:"type" validate:"required,oneof=plex jellyfin"`
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"api_key" validate:"required"`
}

// Create verifies connectivity to the server, stores it and pulls its
// library list. The server is persisted even when verification fails so
// the admin can fix the URL or key later; Verified records the outcome.
func (s *ServerService) Create(ctx context.Context, req CreateServerRequest) (*models.MediaServer, error) {
	srv := &models.MediaServer{
		Name:    req.Name,
		Type:    req.Type,
		URL:     req.URL,
		APIKey:  req.APIKey,
		Enabled: true,
	}
	if err := s.store.CreateMediaServer(ctx, srv); err != nil {
		return nil, err
	}
	if err := s.verify(ctx, srv); err != nil {
		logging.Warn().Err(err).Str("name", srv.Name).Msg("Server verification failed")
	}
	if err := s.store.UpdateMediaServer(ctx, srv); err != nil {
		return nil, err
	}
	if srv.Verified {
		if err := s.RefreshLibraries(ctx, srv.ID); err != nil {
			logging.Warn().Err(err).Str("name", srv.Name).Msg("Initial library refresh failed")
		}
	}
	logging.Info().
		Str("server_id", srv.ID).
		Str("type", srv.Type).
		Bool("verified", srv.Verified).
		Msg("Media server added")
	return srv, nil
}

// UpdateServerRequest carries the mutable server fields. A nil field is
// left unchanged; an empty APIKey keeps the stored key.
type UpdateServerRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=128"`
	URL     *string `json:"url" validate:"omitempty,url"`
	APIKey  *string `json:"api_key"`
	Enabled *bool   `json:"enabled"`
}

// Update applies the request and re-verifies when the connection
// details changed. The cached client is invalidated either way.
func (s *ServerService) Update(ctx context.Context, id string, req UpdateServerRequest) (*models.MediaServer, error) {
	srv, err := s.store.GetMediaServer(ctx, id)
	if err != nil {
		return nil, err
	}

	reverify := false
	if req.Name != nil {
		srv.Name = *req.Name
	}
	if req.URL != nil && *req.URL != srv.URL {
		srv.URL = *req.URL
		reverify = true
	}
	if req.APIKey != nil && *req.APIKey != "" {
		srv.APIKey = *req.APIKey
		reverify = true
	}
	if req.Enabled != nil {
		srv.Enabled = *req.Enabled
	}

	s.registry.Invalidate(srv.ID)
	if reverify {
		if err := s.verify(ctx, srv); err != nil {
			logging.Warn().Err(err).Str("name", srv.Name).Msg("Server verification failed")
		}
	}
	if err := s.store.UpdateMediaServer(ctx, srv); err != nil {
		return nil, err
	}
	return srv, nil
}

// Delete removes a server and, via cascading foreign keys, its
// libraries, users, sync runs and exclusions. Accounts on the media
// server itself are left alone.
func (s *ServerService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMediaServer(ctx, id); err != nil {
		return err
	}
	s.registry.Invalidate(id)
	logging.Info().Str("server_id", id).Msg("Media server removed")
	return nil
}

// Test pings a configured server and reports the result without
// persisting anything.
func (s *ServerService) Test(ctx context.Context, id string) (*media.ServerInfo, error) {
	srv, err := s.store.GetMediaServer(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.registry.ClientFor(srv)
	if err != nil {
		return nil, err
	}
	return client.ServerInfo(ctx)
}

// RefreshLibraries reconciles the stored library list against the
// server. Admin-disabled libraries keep their flag across refreshes.
func (s *ServerService) RefreshLibraries(ctx context.Context, serverID string) error {
	srv, err := s.store.GetMediaServer(ctx, serverID)
	if err != nil {
		return err
	}
	client, err := s.registry.ClientFor(srv)
	if err != nil {
		return err
	}
	remote, err := client.Libraries(ctx)
	if err != nil {
		return fmt.Errorf("list libraries on %s: %w", srv.Name, err)
	}

	libs := make([]models.Library, 0, len(remote))
	for _, rl := range remote {
		libs = append(libs, models.Library{
			ServerID:   srv.ID,
			ExternalID: rl.ExternalID,
			Name:       rl.Name,
			Enabled:    true,
		})
	}
	if err := s.store.ReplaceLibraries(ctx, srv.ID, libs); err != nil {
		return err
	}
	logging.Debug().
		Str("server", srv.Name).
		Int("libraries", len(libs)).
		Msg("Libraries refreshed")
	return nil
}

// verify probes the server and records identity details on success.
func (s *ServerService) verify(ctx context.Context, srv *models.MediaServer) error {
	client, err := s.registry.ClientFor(srv)
	if err != nil {
		return err
	}
	info, err := client.ServerInfo(ctx)
	if err != nil {
		srv.Verified = false
		return err
	}
	srv.Verified = true
	srv.ExternalID = info.ExternalID
	return nil
}
