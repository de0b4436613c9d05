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

const adminColumns = `id, username, password_hash, totp_secret, totp_confirmed_at, last_login_at, created_at, updated_at`

func scanAdmin(row interface{ Scan(...interface{}) error }) (*models.AdminAccount, error) {
	var a models.AdminAccount
	var totpSecret sql.NullString
	var totpConfirmedAt, lastLoginAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &totpSecret,
		&totpConfirmedAt, &lastLoginAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.TOTPSecret = strPtr(totpSecret)
	a.TOTPConfirmedAt = parseTimePtr(totpConfirmedAt)
	a.LastLoginAt = parseTimePtr(lastLoginAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// CreateAdminAccount inserts a dashboard administrator.
func (s *Store) CreateAdminAccount(ctx context.Context, a *models.AdminAccount) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO admin_accounts (`+adminColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.Username, a.PasswordHash, a.TOTPSecret,
		fmtTimePtr(a.TOTPConfirmedAt), fmtTimePtr(a.LastLoginAt),
		fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("admin %s: %w", a.Username, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}
	return nil
}

// GetAdminAccount fetches an administrator by id.
func (s *Store) GetAdminAccount(ctx context.Context, id string) (*models.AdminAccount, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admin_accounts WHERE id = ?`, id)
	a, err := scanAdmin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("admin %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get admin account: %w", err)
	}
	return a, nil
}

// FindAdminByUsername looks an administrator up for login.
func (s *Store) FindAdminByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admin_accounts WHERE username = ?`, username)
	a, err := scanAdmin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin by username: %w", err)
	}
	return a, nil
}

// ListAdminAccounts returns every administrator, oldest first.
func (s *Store) ListAdminAccounts(ctx context.Context) ([]models.AdminAccount, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+adminColumns+` FROM admin_accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list admin accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.AdminAccount
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("list admin accounts: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountAdminAccounts reports how many administrators exist, used for
// first-boot seeding.
func (s *Store) CountAdminAccounts(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_accounts`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admin accounts: %w", err)
	}
	return n, nil
}

// UpdateAdminAccount persists password, TOTP and last-login changes.
func (s *Store) UpdateAdminAccount(ctx context.Context, a *models.AdminAccount) error {
	a.UpdatedAt = now()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE admin_accounts SET username=?, password_hash=?, totp_secret=?, totp_confirmed_at=?, last_login_at=?, updated_at=? WHERE id=?`,
		a.Username, a.PasswordHash, a.TOTPSecret,
		fmtTimePtr(a.TOTPConfirmedAt), fmtTimePtr(a.LastLoginAt),
		fmtTime(a.UpdatedAt), a.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("admin %s: %w", a.Username, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update admin account: %w", err)
	}
	return requireRow(res, a.ID)
}

// RecordRefreshToken stores the audit row for an issued refresh JWT.
func (s *Store) RecordRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, admin_id, issued_at, expires_at, revoked_at, user_agent, ip)
		 VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.AdminID, fmtTime(t.IssuedAt), fmtTime(t.ExpiresAt),
		fmtTimePtr(t.RevokedAt), t.UserAgent, t.IP)
	if isUniqueViolation(err) {
		return fmt.Errorf("refresh token %s: %w", t.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("record refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken fetches a refresh token audit row by JTI.
func (s *Store) GetRefreshToken(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	var issuedAt, expiresAt string
	var revokedAt sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, admin_id, issued_at, expires_at, revoked_at, user_agent, ip
		 FROM refresh_tokens WHERE id = ?`, jti).
		Scan(&t.ID, &t.AdminID, &issuedAt, &expiresAt, &revokedAt, &t.UserAgent, &t.IP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	t.IssuedAt = parseTime(issuedAt)
	t.ExpiresAt = parseTime(expiresAt)
	t.RevokedAt = parseTimePtr(revokedAt)
	return &t, nil
}

// ListRefreshTokens returns an admin's sessions, newest first.
func (s *Store) ListRefreshTokens(ctx context.Context, adminID string) ([]models.RefreshToken, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, admin_id, issued_at, expires_at, revoked_at, user_agent, ip
		 FROM refresh_tokens WHERE admin_id = ? ORDER BY issued_at DESC`, adminID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	var out []models.RefreshToken
	for rows.Next() {
		var t models.RefreshToken
		var issuedAt, expiresAt string
		var revokedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.AdminID, &issuedAt, &expiresAt,
			&revokedAt, &t.UserAgent, &t.IP); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		t.IssuedAt = parseTime(issuedAt)
		t.ExpiresAt = parseTime(expiresAt)
		t.RevokedAt = parseTimePtr(revokedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RevokeRefreshToken marks a token revoked. Revoking an already-revoked
// token is a no-op succeeding silently.
func (s *Store) RevokeRefreshToken(ctx context.Context, jti string, at time.Time) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL`,
		fmtTime(at), jti)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	return nil
}

// PruneRefreshTokens deletes audit rows expired before the cutoff.
func (s *Store) PruneRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
