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

	"github.com/zondarr/zondarr/internal/models"
)

// GetSetting fetches a persisted setting value by key.
func (s *Store) GetSetting(ctx context.Context, key string) (*models.AppSetting, error) {
	var st models.AppSetting
	var updatedAt string
	err := s.conn.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM app_settings WHERE key = ?`, key).
		Scan(&st.Key, &st.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

// ListSettings returns every persisted setting ordered by key.
func (s *Store) ListSettings(ctx context.Context) ([]models.AppSetting, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key, value, updated_at FROM app_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []models.AppSetting
	for rows.Next() {
		var st models.AppSetting
		var updatedAt string
		if err := rows.Scan(&st.Key, &st.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		st.UpdatedAt = parseTime(updatedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

// PutSetting upserts a setting value.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, fmtTime(now()))
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a persisted setting so the default applies again.
// Deleting an absent key succeeds silently.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM app_settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
