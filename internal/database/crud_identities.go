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

const identityColumns = `id, display_name, email, admin, created_at, updated_at`

func scanIdentity(row interface{ Scan(...interface{}) error }) (*models.Identity, error) {
	var i models.Identity
	var email sql.NullString
	var admin int
	var createdAt, updatedAt string
	if err := row.Scan(&i.ID, &i.DisplayName, &email, &admin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		i.Email = &email.String
	}
	i.Admin = admin != 0
	i.CreatedAt = parseTime(createdAt)
	i.UpdatedAt = parseTime(updatedAt)
	return &i, nil
}

// CreateIdentity inserts a new person record.
func (s *Store) CreateIdentity(ctx context.Context, i *models.Identity) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	i.CreatedAt = now()
	i.UpdatedAt = i.CreatedAt

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES (?,?,?,?,?,?)`,
		i.ID, i.DisplayName, i.Email, boolToInt(i.Admin), fmtTime(i.CreatedAt), fmtTime(i.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("identity: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// GetIdentity fetches an identity by id.
func (s *Store) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	i, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return i, nil
}

// FindIdentityByEmail looks up an identity by email, used to merge
// accounts redeemed with the same address.
func (s *Store) FindIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email)
	i, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return i, nil
}

// ListIdentities returns all identities ordered by display name.
func (s *Store) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []models.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// UpdateIdentity persists display name and email changes.
func (s *Store) UpdateIdentity(ctx context.Context, i *models.Identity) error {
	i.UpdatedAt = now()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE identities SET display_name=?, email=?, admin=?, updated_at=? WHERE id=?`,
		i.DisplayName, i.Email, boolToInt(i.Admin), fmtTime(i.UpdatedAt), i.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("identity: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return requireRow(res, i.ID)
}

// DeleteIdentity removes an identity. Linked users keep their rows with
// identity_id set NULL.
func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return requireRow(res, id)
}
