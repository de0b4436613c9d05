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

const userColumns = `id, identity_id, server_id, external_id, username, email, enabled, expires_at, invitation_id, last_seen_at, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var identityID, email, invitationID sql.NullString
	var expiresAt, lastSeenAt sql.NullString
	var enabled int
	var createdAt, updatedAt string
	err := row.Scan(&u.ID, &identityID, &u.ServerID, &u.ExternalID, &u.Username,
		&email, &enabled, &expiresAt, &invitationID, &lastSeenAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if identityID.Valid {
		u.IdentityID = &identityID.String
	}
	if email.Valid {
		u.Email = &email.String
	}
	if invitationID.Valid {
		u.InvitationID = &invitationID.String
	}
	u.Enabled = enabled != 0
	u.ExpiresAt = parseTimePtr(expiresAt)
	u.LastSeenAt = parseTimePtr(lastSeenAt)
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// CreateUser inserts a provisioned or imported user row.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.IdentityID, u.ServerID, u.ExternalID, u.Username, u.Email,
		boolToInt(u.Enabled), fmtTimePtr(u.ExpiresAt), u.InvitationID,
		fmtTimePtr(u.LastSeenAt), fmtTime(u.CreatedAt), fmtTime(u.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s on server %s: %w", u.ExternalID, u.ServerID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// FindUserByExternalID looks a user up by its server-side account id.
func (s *Store) FindUserByExternalID(ctx context.Context, serverID, externalID string) (*models.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE server_id = ? AND external_id = ?`,
		serverID, externalID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by external id: %w", err)
	}
	return u, nil
}

// UserFilter narrows ListUsers. Zero values mean "no constraint".
type UserFilter struct {
	ServerID   string
	IdentityID string
	// Orphaned selects users with no identity when true.
	Orphaned bool
}

// ListUsers returns users matching the filter, newest first.
func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []interface{}
	if f.ServerID != "" {
		q += ` AND server_id = ?`
		args = append(args, f.ServerID)
	}
	if f.IdentityID != "" {
		q += ` AND identity_id = ?`
		args = append(args, f.IdentityID)
	}
	if f.Orphaned {
		q += ` AND identity_id IS NULL`
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListExpiredUsers returns enabled users whose access window lapsed at
// or before the cutoff. Consumed by the janitor.
func (s *Store) ListExpiredUsers(ctx context.Context, cutoff time.Time) ([]models.User, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE enabled = 1 AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at`, fmtTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list expired users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser persists mutable user fields.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = now()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET identity_id=?, username=?, email=?, enabled=?, expires_at=?, last_seen_at=?, updated_at=? WHERE id=?`,
		u.IdentityID, u.Username, u.Email, boolToInt(u.Enabled),
		fmtTimePtr(u.ExpiresAt), fmtTimePtr(u.LastSeenAt), fmtTime(u.UpdatedAt), u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, u.ID)
}

// AttachUserIdentity links a user row to an identity.
func (s *Store) AttachUserIdentity(ctx context.Context, userID string, identityID *string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET identity_id=?, updated_at=? WHERE id=?`,
		identityID, fmtTime(now()), userID)
	if err != nil {
		return fmt.Errorf("attach user identity: %w", err)
	}
	return requireRow(res, userID)
}

// DeleteUser removes a local user row.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, id)
}
