// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zondarr/zondarr/internal/models"
)

const mediaServerColumns = `id, name, type, url, api_key, enabled, external_id, verified, last_sync_at, created_at, updated_at`

func scanMediaServer(row interface{ Scan(...interface{}) error }) (*models.MediaServer, error) {
	var m models.MediaServer
	var enabled, verified int
	var lastSync sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&m.ID, &m.Name, &m.Type, &m.URL, &m.APIKey, &enabled,
		&m.ExternalID, &verified, &lastSync, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.Enabled = enabled != 0
	m.Verified = verified != 0
	m.LastSyncAt = parseTimePtr(lastSync)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

// CreateMediaServer inserts a new media server.
func (s *Store) CreateMediaServer(ctx context.Context, m *models.MediaServer) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO media_servers (`+mediaServerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Name, m.Type, m.URL, m.APIKey, boolToInt(m.Enabled), m.ExternalID,
		boolToInt(m.Verified), fmtTimePtr(m.LastSyncAt), fmtTime(m.CreatedAt), fmtTime(m.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("media server %s: %w", m.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create media server: %w", err)
	}
	return nil
}

// GetMediaServer fetches a media server by id.
func (s *Store) GetMediaServer(ctx context.Context, id string) (*models.MediaServer, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+mediaServerColumns+` FROM media_servers WHERE id = ?`, id)
	m, err := scanMediaServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media server %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get media server: %w", err)
	}
	return m, nil
}

// ListMediaServers returns all media servers ordered by name.
func (s *Store) ListMediaServers(ctx context.Context) ([]models.MediaServer, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+mediaServerColumns+` FROM media_servers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list media servers: %w", err)
	}
	defer rows.Close()

	var servers []models.MediaServer
	for rows.Next() {
		m, err := scanMediaServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media server: %w", err)
		}
		servers = append(servers, *m)
	}
	return servers, rows.Err()
}

// ListEnabledMediaServers returns enabled servers only, for sync loops.
func (s *Store) ListEnabledMediaServers(ctx context.Context) ([]models.MediaServer, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+mediaServerColumns+` FROM media_servers WHERE enabled = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list enabled media servers: %w", err)
	}
	defer rows.Close()

	var servers []models.MediaServer
	for rows.Next() {
		m, err := scanMediaServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media server: %w", err)
		}
		servers = append(servers, *m)
	}
	return servers, rows.Err()
}

// UpdateMediaServer persists changes to name, url, api key, enabled,
// external id and verified flags.
func (s *Store) UpdateMediaServer(ctx context.Context, m *models.MediaServer) error {
	m.UpdatedAt = now()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE media_servers SET name=?, url=?, api_key=?, enabled=?, external_id=?, verified=?, updated_at=? WHERE id=?`,
		m.Name, m.URL, m.APIKey, boolToInt(m.Enabled), m.ExternalID, boolToInt(m.Verified),
		fmtTime(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("update media server: %w", err)
	}
	return requireRow(res, m.ID)
}

// TouchMediaServerSync advances the server's last_sync_at marker.
func (s *Store) TouchMediaServerSync(ctx context.Context, id string, at time.Time) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE media_servers SET last_sync_at=?, updated_at=? WHERE id=?`,
		fmtTime(at), fmtTime(now()), id)
	if err != nil {
		return fmt.Errorf("touch media server sync: %w", err)
	}
	return requireRow(res, id)
}

// DeleteMediaServer removes a server. Libraries, users, sync runs,
// exclusions and invitation grant rows cascade via foreign keys.
func (s *Store) DeleteMediaServer(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM media_servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media server: %w", err)
	}
	return requireRow(res, id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow converts a zero-row update/delete into ErrNotFound.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
