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

const invitationColumns = `id, code, label, created_by, expires_at, max_uses, use_count, disabled, user_expires_after, allow_downloads, allow_live_tv, pre_wizard_id, post_wizard_id, created_at, updated_at`

func scanInvitation(row interface{ Scan(...interface{}) error }) (*models.Invitation, error) {
	var inv models.Invitation
	var expiresAt sql.NullString
	var maxUses, userExpiresAfter sql.NullInt64
	var disabled, allowDownloads, allowLiveTV int
	var preWizard, postWizard sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&inv.ID, &inv.Code, &inv.Label, &inv.CreatedBy, &expiresAt,
		&maxUses, &inv.UseCount, &disabled, &userExpiresAfter,
		&allowDownloads, &allowLiveTV, &preWizard, &postWizard, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	inv.ExpiresAt = parseTimePtr(expiresAt)
	if maxUses.Valid {
		n := int(maxUses.Int64)
		inv.MaxUses = &n
	}
	inv.Disabled = disabled != 0
	inv.UserExpiresAfter = durationPtrSeconds(userExpiresAfter)
	inv.AllowDownloads = allowDownloads != 0
	inv.AllowLiveTV = allowLiveTV != 0
	if preWizard.Valid {
		inv.PreWizardID = &preWizard.String
	}
	if postWizard.Valid {
		inv.PostWizardID = &postWizard.String
	}
	inv.CreatedAt = parseTime(createdAt)
	inv.UpdatedAt = parseTime(updatedAt)
	return &inv, nil
}

// CreateInvitation inserts an invitation and its server/library grants
// in one transaction.
func (s *Store) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.CreatedAt = now()
	inv.UpdatedAt = inv.CreatedAt

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO invitations (`+invitationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			inv.ID, inv.Code, inv.Label, inv.CreatedBy, fmtTimePtr(inv.ExpiresAt),
			inv.MaxUses, inv.UseCount, boolToInt(inv.Disabled),
			durationSeconds(inv.UserExpiresAfter),
			boolToInt(inv.AllowDownloads), boolToInt(inv.AllowLiveTV),
			inv.PreWizardID, inv.PostWizardID,
			fmtTime(inv.CreatedAt), fmtTime(inv.UpdatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("invitation code %s: %w", inv.Code, ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert invitation: %w", err)
		}
		return replaceInvitationGrants(ctx, tx, inv)
	})
	if err != nil {
		return err
	}
	return nil
}

func replaceInvitationGrants(ctx context.Context, tx *sql.Tx, inv *models.Invitation) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invitation_servers WHERE invitation_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("clear invitation servers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invitation_libraries WHERE invitation_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("clear invitation libraries: %w", err)
	}
	for _, sid := range inv.ServerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO invitation_servers (invitation_id, server_id) VALUES (?,?)`,
			inv.ID, sid); err != nil {
			return fmt.Errorf("grant server %s: %w", sid, err)
		}
	}
	for _, lid := range inv.LibraryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO invitation_libraries (invitation_id, library_id) VALUES (?,?)`,
			inv.ID, lid); err != nil {
			return fmt.Errorf("grant library %s: %w", lid, err)
		}
	}
	return nil
}

func (s *Store) loadInvitationGrants(ctx context.Context, inv *models.Invitation) error {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT server_id FROM invitation_servers WHERE invitation_id = ? ORDER BY server_id`, inv.ID)
	if err != nil {
		return fmt.Errorf("load invitation servers: %w", err)
	}
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return err
		}
		inv.ServerIDs = append(inv.ServerIDs, sid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.conn.QueryContext(ctx,
		`SELECT library_id FROM invitation_libraries WHERE invitation_id = ? ORDER BY library_id`, inv.ID)
	if err != nil {
		return fmt.Errorf("load invitation libraries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lid string
		if err := rows.Scan(&lid); err != nil {
			return err
		}
		inv.LibraryIDs = append(inv.LibraryIDs, lid)
	}
	return rows.Err()
}

// GetInvitation fetches an invitation with its grants by id.
func (s *Store) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if err := s.loadInvitationGrants(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// FindInvitationByCode fetches an invitation with its grants by code.
func (s *Store) FindInvitationByCode(ctx context.Context, code string) (*models.Invitation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE code = ?`, code)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation by code: %w", err)
	}
	if err := s.loadInvitationGrants(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvitations returns all invitations with grants, newest first.
func (s *Store) ListInvitations(ctx context.Context) ([]models.Invitation, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	var invs []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invs = append(invs, *inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range invs {
		if err := s.loadInvitationGrants(ctx, &invs[i]); err != nil {
			return nil, err
		}
	}
	return invs, nil
}

// UpdateInvitation persists mutable invitation fields and replaces its
// server/library grants.
func (s *Store) UpdateInvitation(ctx context.Context, inv *models.Invitation) error {
	inv.UpdatedAt = now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE invitations SET label=?, expires_at=?, max_uses=?, disabled=?, user_expires_after=?, allow_downloads=?, allow_live_tv=?, pre_wizard_id=?, post_wizard_id=?, updated_at=? WHERE id=?`,
			inv.Label, fmtTimePtr(inv.ExpiresAt), inv.MaxUses, boolToInt(inv.Disabled),
			durationSeconds(inv.UserExpiresAfter),
			boolToInt(inv.AllowDownloads), boolToInt(inv.AllowLiveTV),
			inv.PreWizardID, inv.PostWizardID, fmtTime(inv.UpdatedAt), inv.ID)
		if err != nil {
			return fmt.Errorf("update invitation: %w", err)
		}
		if err := requireRow(res, inv.ID); err != nil {
			return err
		}
		return replaceInvitationGrants(ctx, tx, inv)
	})
}

// ConsumeInvitationUse atomically increments use_count, failing with
// ErrConflict when the invitation is disabled or already at max_uses.
// The WHERE clause is the concurrency guard: two racing redemptions of
// a single-use code cannot both pass it.
func (s *Store) ConsumeInvitationUse(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE invitations SET use_count = use_count + 1, updated_at = ?
		 WHERE id = ? AND disabled = 0
		   AND (max_uses IS NULL OR use_count < max_uses)`,
		fmtTime(now()), id)
	if err != nil {
		return fmt.Errorf("consume invitation use: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invitation %s not redeemable: %w", id, ErrConflict)
	}
	return nil
}

// ReleaseInvitationUse decrements use_count after a failed provisioning
// so the slot can be retried. Never drops below zero.
func (s *Store) ReleaseInvitationUse(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE invitations SET use_count = use_count - 1, updated_at = ?
		 WHERE id = ? AND use_count > 0`,
		fmtTime(now()), id)
	if err != nil {
		return fmt.Errorf("release invitation use: %w", err)
	}
	return nil
}

// DeleteInvitation removes an invitation. Grant rows cascade; users
// provisioned through it keep their rows with invitation_id NULL.
func (s *Store) DeleteInvitation(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return requireRow(res, id)
}
