// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/metrics"
	"github.com/zondarr/zondarr/internal/models"
)

// syncRunRetention is how long finished sync runs are kept before the
// janitor prunes them.
const syncRunRetention = 30 * 24 * time.Hour

// SyncService reconciles the local user table against what each media
// server actually has. It imports accounts created outside Zondarr,
// refreshes names and emails for known ones, and counts the accounts
// the server no longer knows about. It never deletes local rows and
// never writes to the media server.
type SyncService struct {
	store    *database.Store
	registry *media.Registry
}

// NewSyncService builds the service.
func NewSyncService(store *database.Store, registry *media.Registry) *SyncService {
	return &SyncService{store: store, registry: registry}
}

// SyncAll runs a sync pass over every enabled server. A failing server
// is recorded on its own run row and does not stop the others.
func (s *SyncService) SyncAll(ctx context.Context) error {
	servers, err := s.store.ListEnabledMediaServers(ctx)
	if err != nil {
		return err
	}
	for i := range servers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.SyncServer(ctx, &servers[i]); err != nil {
			logging.Warn().Err(err).Str("server", servers[i].Name).Msg("Sync failed")
		}
	}
	return nil
}

// SyncServer reconciles one server and returns the finished run row.
func (s *SyncService) SyncServer(ctx context.Context, srv *models.MediaServer) (*models.SyncRun, error) {
	run, err := s.store.StartSyncRun(ctx, srv.ID)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	syncErr := s.reconcile(ctx, srv, run)
	run.Status = models.SyncStatusOK
	if syncErr != nil {
		run.Status = models.SyncStatusFailed
		run.Error = syncErr.Error()
	}
	now := time.Now().UTC().Truncate(time.Second)
	run.FinishedAt = &now

	if err := s.store.FinishSyncRun(ctx, run); err != nil {
		return nil, err
	}
	metrics.RecordSyncRun(run.Status, time.Since(start), run.UsersImported)

	if syncErr != nil {
		return run, syncErr
	}
	if err := s.store.TouchMediaServerSync(ctx, srv.ID, now); err != nil {
		return nil, err
	}
	logging.Info().
		Str("server", srv.Name).
		Int("seen", run.UsersSeen).
		Int("imported", run.UsersImported).
		Int("missing", run.UsersMissing).
		Msg("Sync completed")
	return run, nil
}

func (s *SyncService) reconcile(ctx context.Context, srv *models.MediaServer, run *models.SyncRun) error {
	client, err := s.registry.ClientFor(srv)
	if err != nil {
		return err
	}

	remote, err := client.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users on %s: %w", srv.Name, err)
	}
	run.UsersSeen = len(remote)

	excluded, err := s.exclusionSet(ctx, srv.ID)
	if err != nil {
		return err
	}
	local, err := s.store.ListUsers(ctx, database.UserFilter{ServerID: srv.ID})
	if err != nil {
		return err
	}
	byExternalID := make(map[string]*models.User, len(local))
	for i := range local {
		byExternalID[local[i].ExternalID] = &local[i]
	}

	now := time.Now().UTC().Truncate(time.Second)
	seen := make(map[string]struct{}, len(remote))
	for _, ru := range remote {
		seen[ru.ExternalID] = struct{}{}
		if _, skip := excluded[ru.ExternalID]; skip {
			continue
		}

		existing, known := byExternalID[ru.ExternalID]
		if !known {
			if err := s.importUser(ctx, srv, ru, now); err != nil {
				return err
			}
			run.UsersImported++
			continue
		}
		if err := s.refreshUser(ctx, existing, ru, now); err != nil {
			return err
		}
	}

	// Local rows the server no longer reports keep their state but
	// their LastSeenAt stops advancing; the dashboard surfaces them.
	for i := range local {
		if _, ok := seen[local[i].ExternalID]; !ok {
			run.UsersMissing++
		}
	}
	return nil
}

func (s *SyncService) importUser(ctx context.Context, srv *models.MediaServer, ru media.RemoteUser, now time.Time) error {
	user := &models.User{
		ServerID:   srv.ID,
		ExternalID: ru.ExternalID,
		Username:   ru.Username,
		Enabled:    !ru.Disabled,
		LastSeenAt: &now,
	}
	if e := ru.Email; e != "" {
		user.Email = &e
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("import user %q: %w", ru.Username, err)
	}
	logging.Debug().
		Str("server", srv.Name).
		Str("username", ru.Username).
		Msg("Imported external user")
	return nil
}

func (s *SyncService) refreshUser(ctx context.Context, u *models.User, ru media.RemoteUser, now time.Time) error {
	u.Username = ru.Username
	if e := ru.Email; e != "" {
		u.Email = &e
	}
	u.LastSeenAt = &now
	return s.store.UpdateUser(ctx, u)
}

func (s *SyncService) exclusionSet(ctx context.Context, serverID string) (map[string]struct{}, error) {
	exclusions, err := s.store.ListSyncExclusions(ctx, serverID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(exclusions))
	for _, e := range exclusions {
		set[e.ExternalID] = struct{}{}
	}
	return set, nil
}

// PruneRuns drops finished run rows older than the retention window.
func (s *SyncService) PruneRuns(ctx context.Context) (int64, error) {
	return s.store.PruneSyncRuns(ctx, time.Now().UTC().Add(-syncRunRetention))
}
