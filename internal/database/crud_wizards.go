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

// CreateWizard inserts a wizard together with its steps and interactions.
// Step positions are normalized to 0..n-1 in input order.
func (s *Store) CreateWizard(ctx context.Context, w *models.Wizard) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	w.CreatedAt = now()
	w.UpdatedAt = w.CreatedAt

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wizards (id, name, slug, created_at, updated_at) VALUES (?,?,?,?,?)`,
			w.ID, w.Name, w.Slug, fmtTime(w.CreatedAt), fmtTime(w.UpdatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("wizard slug %s: %w", w.Slug, ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert wizard: %w", err)
		}
		return insertWizardSteps(ctx, tx, w)
	})
}

func insertWizardSteps(ctx context.Context, tx *sql.Tx, w *models.Wizard) error {
	ts := fmtTime(now())
	for pos := range w.Steps {
		step := &w.Steps[pos]
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		step.WizardID = w.ID
		step.Position = pos
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wizard_steps (id, wizard_id, position, title, markdown, require, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?,?)`,
			step.ID, w.ID, pos, step.Title, step.Markdown, boolToInt(step.Require), ts, ts)
		if err != nil {
			return fmt.Errorf("insert wizard step %d: %w", pos, err)
		}
		for i := range step.Interactions {
			in := &step.Interactions[i]
			if in.ID == "" {
				in.ID = uuid.New().String()
			}
			in.StepID = step.ID
			_, err := tx.ExecContext(ctx,
				`INSERT INTO step_interactions (id, step_id, kind, label, target, required, created_at, updated_at)
				 VALUES (?,?,?,?,?,?,?,?)`,
				in.ID, step.ID, in.Kind, in.Label, in.Target, boolToInt(in.Required), ts, ts)
			if err != nil {
				return fmt.Errorf("insert step interaction: %w", err)
			}
		}
	}
	return nil
}

func scanWizard(row interface{ Scan(...interface{}) error }) (*models.Wizard, error) {
	var w models.Wizard
	var createdAt, updatedAt string
	if err := row.Scan(&w.ID, &w.Name, &w.Slug, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

func (s *Store) loadWizardSteps(ctx context.Context, w *models.Wizard) error {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, wizard_id, position, title, markdown, require, created_at, updated_at
		 FROM wizard_steps WHERE wizard_id = ? ORDER BY position`, w.ID)
	if err != nil {
		return fmt.Errorf("load wizard steps: %w", err)
	}
	for rows.Next() {
		var st models.WizardStep
		var require int
		var createdAt, updatedAt string
		if err := rows.Scan(&st.ID, &st.WizardID, &st.Position, &st.Title,
			&st.Markdown, &require, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan wizard step: %w", err)
		}
		st.Require = require != 0
		st.CreatedAt = parseTime(createdAt)
		st.UpdatedAt = parseTime(updatedAt)
		w.Steps = append(w.Steps, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range w.Steps {
		st := &w.Steps[i]
		rows, err := s.conn.QueryContext(ctx,
			`SELECT id, step_id, kind, label, target, required, created_at, updated_at
			 FROM step_interactions WHERE step_id = ? ORDER BY created_at, id`, st.ID)
		if err != nil {
			return fmt.Errorf("load step interactions: %w", err)
		}
		for rows.Next() {
			var in models.StepInteraction
			var required int
			var createdAt, updatedAt string
			if err := rows.Scan(&in.ID, &in.StepID, &in.Kind, &in.Label,
				&in.Target, &required, &createdAt, &updatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan step interaction: %w", err)
			}
			in.Required = required != 0
			in.CreatedAt = parseTime(createdAt)
			in.UpdatedAt = parseTime(updatedAt)
			st.Interactions = append(st.Interactions, in)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// GetWizard fetches a wizard with steps and interactions by id.
func (s *Store) GetWizard(ctx context.Context, id string) (*models.Wizard, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM wizards WHERE id = ?`, id)
	w, err := scanWizard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wizard %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get wizard: %w", err)
	}
	if err := s.loadWizardSteps(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// FindWizardBySlug fetches a wizard with steps by its URL slug.
func (s *Store) FindWizardBySlug(ctx context.Context, slug string) (*models.Wizard, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM wizards WHERE slug = ?`, slug)
	w, err := scanWizard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find wizard by slug: %w", err)
	}
	if err := s.loadWizardSteps(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWizards returns all wizards without steps, ordered by name.
func (s *Store) ListWizards(ctx context.Context) ([]models.Wizard, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM wizards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list wizards: %w", err)
	}
	defer rows.Close()

	var ws []models.Wizard
	for rows.Next() {
		w, err := scanWizard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wizard: %w", err)
		}
		ws = append(ws, *w)
	}
	return ws, rows.Err()
}

// UpdateWizard rewrites a wizard's name, slug and full step tree. The
// steps are replaced wholesale, which keeps position normalization
// trivial at the cost of fresh step ids.
func (s *Store) UpdateWizard(ctx context.Context, w *models.Wizard) error {
	w.UpdatedAt = now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE wizards SET name=?, slug=?, updated_at=? WHERE id=?`,
			w.Name, w.Slug, fmtTime(w.UpdatedAt), w.ID)
		if isUniqueViolation(err) {
			return fmt.Errorf("wizard slug %s: %w", w.Slug, ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("update wizard: %w", err)
		}
		if err := requireRow(res, w.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM wizard_steps WHERE wizard_id = ?`, w.ID); err != nil {
			return fmt.Errorf("clear wizard steps: %w", err)
		}
		for i := range w.Steps {
			w.Steps[i].ID = ""
			for j := range w.Steps[i].Interactions {
				w.Steps[i].Interactions[j].ID = ""
			}
		}
		return insertWizardSteps(ctx, tx, w)
	})
}

// DeleteWizard removes a wizard; steps and interactions cascade, and
// invitations referencing it fall back to no wizard.
func (s *Store) DeleteWizard(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM wizards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete wizard: %w", err)
	}
	return requireRow(res, id)
}
