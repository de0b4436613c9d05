// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/metrics"
	"github.com/zondarr/zondarr/internal/models"
)

// UserService manages provisioned users. Every state change hits the
// owning media server first; the local row only changes after the
// external call succeeded, so the database never claims access a server
// does not actually grant.
type UserService struct {
	store    *database.Store
	registry *media.Registry
}

// NewUserService builds the service.
func NewUserService(store *database.Store, registry *media.Registry) *UserService {
	return &UserService{store: store, registry: registry}
}

// SetEnabled enables or disables a user, external-first.
func (s *UserService) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Enabled == enabled {
		return nil
	}

	client, srv, err := s.clientFor(ctx, user.ServerID)
	if err != nil {
		return err
	}
	if err := client.SetEnabled(ctx, user.ExternalID, enabled); err != nil {
		return fmt.Errorf("set enabled on %s: %w", srv.Name, err)
	}

	user.Enabled = enabled
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	logging.Info().
		Str("user_id", user.ID).
		Str("server", srv.Name).
		Bool("enabled", enabled).
		Msg("User state changed")
	return nil
}

// Delete removes a user from its media server, then locally. A remote
// 404 counts as already deleted and the local row is still removed.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	client, srv, err := s.clientFor(ctx, user.ServerID)
	if err != nil {
		return err
	}
	if err := client.DeleteUser(ctx, user.ExternalID); err != nil && !errors.Is(err, media.ErrRemoteNotFound) {
		return fmt.Errorf("delete on %s: %w", srv.Name, err)
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	logging.Info().
		Str("user_id", user.ID).
		Str("server", srv.Name).
		Msg("User deleted")
	return nil
}

// UpdatePolicy pushes a new library/permission grant to the server.
func (s *UserService) UpdatePolicy(ctx context.Context, userID string, policy media.UserPolicy) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	client, srv, err := s.clientFor(ctx, user.ServerID)
	if err != nil {
		return err
	}
	if err := client.UpdateUserPolicy(ctx, user.ExternalID, policy); err != nil {
		return fmt.Errorf("update policy on %s: %w", srv.Name, err)
	}
	return nil
}

// AttachIdentity links a user row to an identity (nil detaches).
func (s *UserService) AttachIdentity(ctx context.Context, userID string, identityID *string) error {
	if identityID != nil {
		if _, err := s.store.GetIdentity(ctx, *identityID); err != nil {
			return err
		}
	}
	return s.store.AttachUserIdentity(ctx, userID, identityID)
}

// ExpirySweep disables users whose access window lapsed. Failures are
// logged and retried on the next sweep; a user the server no longer
// knows is disabled locally without complaint.
func (s *UserService) ExpirySweep(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredUsers(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	disabled := 0
	for i := range expired {
		user := &expired[i]
		client, srv, err := s.clientFor(ctx, user.ServerID)
		if err != nil {
			logging.Warn().Err(err).Str("user_id", user.ID).Msg("Expiry sweep: client unavailable")
			continue
		}
		if err := client.SetEnabled(ctx, user.ExternalID, false); err != nil && !errors.Is(err, media.ErrRemoteNotFound) {
			logging.Warn().Err(err).
				Str("user_id", user.ID).
				Str("server", srv.Name).
				Msg("Expiry sweep: disable failed, will retry")
			continue
		}
		user.Enabled = false
		if err := s.store.UpdateUser(ctx, user); err != nil {
			logging.Error().Err(err).Str("user_id", user.ID).Msg("Expiry sweep: local update failed")
			continue
		}
		metrics.ExpiredUsersDisabled.Inc()
		disabled++
	}

	if disabled > 0 {
		logging.Info().Int("disabled", disabled).Msg("Expired users disabled")
	}
	return disabled, nil
}

func (s *UserService) clientFor(ctx context.Context, serverID string) (media.Client, *models.MediaServer, error) {
	srv, err := s.store.GetMediaServer(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.registry.ClientFor(srv)
	if err != nil {
		return nil, nil, err
	}
	return client, srv, nil
}
