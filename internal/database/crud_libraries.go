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

	"github.com/google/uuid"

	"github.com/zondarr/zondarr/internal/models"
)

const libraryColumns = `id, server_id, external_id, name, type, enabled, created_at, updated_at`

func scanLibrary(row interface{ Scan(...interface{}) error }) (*models.Library, error) {
	var l models.Library
	var enabled int
	var createdAt, updatedAt string
	err := row.Scan(&l.ID, &l.ServerID, &l.ExternalID, &l.Name, &l.Type,
		&enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.Enabled = enabled != 0
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

// GetLibrary fetches a library by id.
func (s *Store) GetLibrary(ctx context.Context, id string) (*models.Library, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries WHERE id = ?`, id)
	l, err := scanLibrary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("library %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	return l, nil
}

// ListLibraries returns all libraries for a server ordered by name.
func (s *Store) ListLibraries(ctx context.Context, serverID string) ([]models.Library, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries WHERE server_id = ? ORDER BY name`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libs []models.Library
	for rows.Next() {
		l, err := scanLibrary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		libs = append(libs, *l)
	}
	return libs, rows.Err()
}

// SetLibraryEnabled toggles whether a library is offered on invitations.
func (s *Store) SetLibraryEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE libraries SET enabled=?, updated_at=? WHERE id=?`,
		boolToInt(enabled), fmtTime(now()), id)
	if err != nil {
		return fmt.Errorf("set library enabled: %w", err)
	}
	return requireRow(res, id)
}

// ReplaceLibraries reconciles the stored libraries for a server against
// the remote listing: upserts by (server_id, external_id) and removes
// rows the remote no longer reports. Enabled flags on surviving rows
// are preserved.
func (s *Store) ReplaceLibraries(ctx context.Context, serverID string, remote []models.Library) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing := make(map[string]string) // external_id -> id
		rows, err := tx.QueryContext(ctx,
			`SELECT external_id, id FROM libraries WHERE server_id = ?`, serverID)
		if err != nil {
			return fmt.Errorf("query existing libraries: %w", err)
		}
		for rows.Next() {
			var extID, id string
			if err := rows.Scan(&extID, &id); err != nil {
				rows.Close()
				return fmt.Errorf("scan existing library: %w", err)
			}
			existing[extID] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		seen := make(map[string]bool, len(remote))
		ts := fmtTime(now())
		for _, l := range remote {
			seen[l.ExternalID] = true
			if id, ok := existing[l.ExternalID]; ok {
				_, err = tx.ExecContext(ctx,
					`UPDATE libraries SET name=?, type=?, updated_at=? WHERE id=?`,
					l.Name, l.Type, ts, id)
			} else {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO libraries (id, server_id, external_id, name, type, enabled, created_at, updated_at)
					 VALUES (?,?,?,?,?,1,?,?)`,
					uuid.New().String(), serverID, l.ExternalID, l.Name, l.Type, ts, ts)
			}
			if err != nil {
				return fmt.Errorf("upsert library %s: %w", l.ExternalID, err)
			}
		}

		for extID, id := range existing {
			if !seen[extID] {
				if _, err := tx.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, id); err != nil {
					return fmt.Errorf("prune library %s: %w", id, err)
				}
			}
		}
		return nil
	})
}
