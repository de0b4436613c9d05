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

const syncRunColumns = `id, server_id, started_at, finished_at, status, users_seen, users_imported, users_missing, error`

func scanSyncRun(row interface{ Scan(...interface{}) error }) (*models.SyncRun, error) {
	var r models.SyncRun
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.ServerID, &startedAt, &finishedAt, &r.Status,
		&r.UsersSeen, &r.UsersImported, &r.UsersMissing, &r.Error)
	if err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTimePtr(finishedAt)
	return &r, nil
}

// StartSyncRun inserts a running sync record and returns it.
func (s *Store) StartSyncRun(ctx context.Context, serverID string) (*models.SyncRun, error) {
	r := &models.SyncRun{
		ID:        uuid.New().String(),
		ServerID:  serverID,
		StartedAt: now(),
		Status:    models.SyncStatusRunning,
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sync_runs (`+syncRunColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		r.ID, r.ServerID, fmtTime(r.StartedAt), nil, r.Status, 0, 0, 0, "")
	if err != nil {
		return nil, fmt.Errorf("start sync run: %w", err)
	}
	return r, nil
}

// FinishSyncRun stamps the run with its outcome and counters.
func (s *Store) FinishSyncRun(ctx context.Context, r *models.SyncRun) error {
	t := now()
	r.FinishedAt = &t
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sync_runs SET finished_at=?, status=?, users_seen=?, users_imported=?, users_missing=?, error=? WHERE id=?`,
		fmtTime(t), r.Status, r.UsersSeen, r.UsersImported, r.UsersMissing, r.Error, r.ID)
	if err != nil {
		return fmt.Errorf("finish sync run: %w", err)
	}
	return requireRow(res, r.ID)
}

// GetSyncRun fetches a sync run by id.
func (s *Store) GetSyncRun(ctx context.Context, id string) (*models.SyncRun, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ?`, id)
	r, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sync run: %w", err)
	}
	return r, nil
}

// ListSyncRuns returns the most recent runs for a server, newest first.
// Pass serverID "" for all servers.
func (s *Store) ListSyncRuns(ctx context.Context, serverID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + syncRunColumns + ` FROM sync_runs`
	var args []interface{}
	if serverID != "" {
		q += ` WHERE server_id = ?`
		args = append(args, serverID)
	}
	q += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		r, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// LatestSyncRun returns the most recent run for a server, or ErrNotFound
// when the server has never synced.
func (s *Store) LatestSyncRun(ctx context.Context, serverID string) (*models.SyncRun, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE server_id = ?
		 ORDER BY started_at DESC, id LIMIT 1`, serverID)
	r, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest sync run: %w", err)
	}
	return r, nil
}

// PruneSyncRuns deletes runs started before the cutoff.
func (s *Store) PruneSyncRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM sync_runs WHERE started_at < ?`, fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune sync runs: %w", err)
	}
	return res.RowsAffected()
}

// AddSyncExclusion shields an external account from sync import and
// deletion. Adding an existing exclusion returns ErrDuplicate.
func (s *Store) AddSyncExclusion(ctx context.Context, e *models.SyncExclusion) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = now()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sync_exclusions (id, server_id, external_id, created_at) VALUES (?,?,?,?)`,
		e.ID, e.ServerID, e.ExternalID, fmtTime(e.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("exclusion %s on server %s: %w", e.ExternalID, e.ServerID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add sync exclusion: %w", err)
	}
	return nil
}

// ListSyncExclusions returns the excluded external ids for a server.
func (s *Store) ListSyncExclusions(ctx context.Context, serverID string) ([]models.SyncExclusion, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, server_id, external_id, created_at FROM sync_exclusions
		 WHERE server_id = ? ORDER BY created_at, id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list sync exclusions: %w", err)
	}
	defer rows.Close()

	var out []models.SyncExclusion
	for rows.Next() {
		var e models.SyncExclusion
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ServerID, &e.ExternalID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sync exclusion: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RemoveSyncExclusion deletes an exclusion by id.
func (s *Store) RemoveSyncExclusion(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sync_exclusions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove sync exclusion: %w", err)
	}
	return requireRow(res, id)
}
