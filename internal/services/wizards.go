// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/models"
)

// WizardService owns wizard CRUD and guest progress through a wizard's
// steps. Progress carries no server state: it lives in a signed token
// the guest presents on every call.
type WizardService struct {
	store  *database.Store
	issuer *auth.TokenIssuer
}

// NewWizardService builds the service.
func NewWizardService(store *database.Store, issuer *auth.TokenIssuer) *WizardService {
	return &WizardService{store: store, issuer: issuer}
}

// StepInteractionRequest describes one interaction on a step.
type StepInteractionRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=acknowledge link download"`
	Label    string `json:"label" validate:"required,max=256"`
	Target   string `json:"target" validate:"omitempty,url"`
	Required bool   `json:"required"`
}

// WizardStepRequest describes one step of a wizard.
type WizardStepRequest struct {
	Title        string                   `json:"title" validate:"required,max=256"`
	Markdown     string                   `json:"markdown"`
	Require      bool                     `json:"require"`
	Interactions []StepInteractionRequest `json:"interactions" validate:"dive"`
}

// WizardRequest is the create/update payload. Steps are stored in the
// order given; positions are assigned 0..n-1.
type WizardRequest struct {
	Name  string              `json:"name" validate:"required,max=128"`
	Slug  string              `json:"slug" validate:"required,wizard_slug"`
	Steps []WizardStepRequest `json:"steps" validate:"required,min=1,dive"`
}

// Create persists a new wizard with its steps.
func (s *WizardService) Create(ctx context.Context, req WizardRequest) (*models.Wizard, error) {
	w := &models.Wizard{Name: req.Name, Slug: req.Slug, Steps: stepsFromRequest(req.Steps)}
	if err := s.store.CreateWizard(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Update replaces a wizard's fields and step list wholesale. Progress
// tokens issued against the previous step layout keep working as long
// as the completed positions still exist.
func (s *WizardService) Update(ctx context.Context, id string, req WizardRequest) (*models.Wizard, error) {
	w, err := s.store.GetWizard(ctx, id)
	if err != nil {
		return nil, s.wrapNotFound(err, id)
	}
	w.Name = req.Name
	w.Slug = req.Slug
	w.Steps = stepsFromRequest(req.Steps)
	if err := s.store.UpdateWizard(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Get returns a wizard with its steps and interactions.
func (s *WizardService) Get(ctx context.Context, id string) (*models.Wizard, error) {
	w, err := s.store.GetWizard(ctx, id)
	return w, s.wrapNotFound(err, id)
}

// GetBySlug returns a wizard by its URL slug.
func (s *WizardService) GetBySlug(ctx context.Context, slug string) (*models.Wizard, error) {
	w, err := s.store.FindWizardBySlug(ctx, slug)
	return w, s.wrapNotFound(err, slug)
}

// List returns all wizards without their steps.
func (s *WizardService) List(ctx context.Context) ([]models.Wizard, error) {
	return s.store.ListWizards(ctx)
}

// Delete removes a wizard. Invitations referencing it have the
// reference nulled by the schema's ON DELETE SET NULL.
func (s *WizardService) Delete(ctx context.Context, id string) error {
	return s.wrapNotFound(s.store.DeleteWizard(ctx, id), id)
}

// ProgressState is returned from Begin/Advance: the token the guest
// must present next, the step to render, and whether the wizard is
// finished.
type ProgressState struct {
	Token     string             `json:"token"`
	Step      *models.WizardStep `json:"step,omitempty"`
	Completed bool               `json:"completed"`
}

// Begin issues a fresh progress token pointed at the wizard's first
// step.
func (s *WizardService) Begin(ctx context.Context, wizardID, invitationID string) (*ProgressState, error) {
	w, err := s.Get(ctx, wizardID)
	if err != nil {
		return nil, err
	}
	token, _, err := s.issuer.IssueWizardProgress(invitationID, w.ID, nil, nil)
	if err != nil {
		return nil, err
	}
	state := &ProgressState{Token: token}
	if len(w.Steps) > 0 {
		state.Step = &w.Steps[0]
	} else {
		state.Completed = true
	}
	return state, nil
}

// Advance marks one step complete and returns a token proving it. The
// step must be the next uncompleted one, and every required interaction
// of that step must appear in the submitted (or previously recorded)
// interaction ids.
func (s *WizardService) Advance(ctx context.Context, tokenStr string, position int, interactionIDs []string) (*ProgressState, error) {
	claims, err := s.issuer.Verify(tokenStr, auth.TokenKindWizard)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProgressTokenInvalid, err)
	}
	w, err := s.Get(ctx, claims.WizardID)
	if err != nil {
		return nil, err
	}

	next := nextPosition(claims.CompletedSteps)
	if position > next {
		return nil, ErrStepOutOfOrder
	}
	step := stepAt(w, position)
	if step == nil {
		return nil, ErrStepOutOfOrder
	}

	done := mergeIDs(claims.Interactions, interactionIDs)
	if step.Require {
		for _, req := range step.RequiredInteractionIDs() {
			if _, ok := done[req]; !ok {
				return nil, ErrStepIncomplete
			}
		}
	}

	completed := claims.CompletedSteps
	if position == next {
		completed = append(completed, position)
	}
	token, _, err := s.issuer.IssueWizardProgress(claims.InvitationID, w.ID, completed, sortedKeys(done))
	if err != nil {
		return nil, err
	}

	state := &ProgressState{Token: token}
	if n := nextPosition(completed); n < len(w.Steps) {
		state.Step = stepAt(w, n)
	} else {
		state.Completed = true
	}
	return state, nil
}

// VerifyCompletion checks that a progress token proves every step of
// the given wizard complete. Used to gate redemption on pre-wizards.
func (s *WizardService) VerifyCompletion(ctx context.Context, tokenStr, wizardID, invitationID string) error {
	if tokenStr == "" {
		return ErrWizardRequired
	}
	claims, err := s.issuer.Verify(tokenStr, auth.TokenKindWizard)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProgressTokenInvalid, err)
	}
	if claims.WizardID != wizardID || claims.InvitationID != invitationID {
		return ErrProgressTokenInvalid
	}
	w, err := s.Get(ctx, wizardID)
	if err != nil {
		return err
	}
	if nextPosition(claims.CompletedSteps) < len(w.Steps) {
		return ErrWizardRequired
	}
	return nil
}

func (s *WizardService) wrapNotFound(err error, ref string) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s: %w", ref, ErrWizardNotFound)
	}
	return err
}

func stepsFromRequest(reqs []WizardStepRequest) []models.WizardStep {
	steps := make([]models.WizardStep, 0, len(reqs))
	for i, sr := range reqs {
		step := models.WizardStep{
			Position: i,
			Title:    sr.Title,
			Markdown: sr.Markdown,
			Require:  sr.Require,
		}
		for _, ir := range sr.Interactions {
			step.Interactions = append(step.Interactions, models.StepInteraction{
				Kind:     ir.Kind,
				Label:    ir.Label,
				Target:   ir.Target,
				Required: ir.Required,
			})
		}
		steps = append(steps, step)
	}
	return steps
}

// nextPosition returns the lowest step position not yet completed.
func nextPosition(completed []int) int {
	seen := make(map[int]bool, len(completed))
	for _, p := range completed {
		seen[p] = true
	}
	n := 0
	for seen[n] {
		n++
	}
	return n
}

func stepAt(w *models.Wizard, position int) *models.WizardStep {
	for i := range w.Steps {
		if w.Steps[i].Position == position {
			return &w.Steps[i]
		}
	}
	return nil
}

func mergeIDs(existing, submitted []string) map[string]struct{} {
	out := make(map[string]struct{}, len(existing)+len(submitted))
	for _, id := range existing {
		out[id] = struct{}{}
	}
	for _, id := range submitted {
		out[id] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Stable token payloads make comparisons deterministic.
	sort.Strings(out)
	return out
}
