// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// Interaction kinds a wizard step may present.
const (
	InteractionAcknowledge = "acknowledge"
	InteractionLink        = "link"
	InteractionDownload    = "download"
)

// Wizard is a configurable ordered sequence of onboarding steps shown
// during invitation redemption.
type Wizard struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"` // unique, URL-safe
	Steps     []WizardStep `json:"steps,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// WizardStep is a single page of a wizard. Steps are ordered by Position,
// which is normalized to a gapless 0..n-1 sequence on every write.
type WizardStep struct {
	ID       string `json:"id"`
	WizardID string `json:"wizard_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	// Require forces every required interaction of this step to be
	// completed before the guest may advance.
	Require      bool              `json:"require"`
	Interactions []StepInteraction `json:"interactions,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// StepInteraction is an action a guest can (or must) perform on a step.
type StepInteraction struct {
	ID        string    `json:"id"`
	StepID    string    `json:"step_id"`
	Kind      string    `json:"kind"` // acknowledge, link, download
	Label     string    `json:"label"`
	Target    string    `json:"target,omitempty"` // URL for link/download kinds
	Required  bool      `json:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequiredInteractionIDs returns the ids of interactions that must be
// completed before the step counts as done.
func (s *WizardStep) RequiredInteractionIDs() []string {
	var ids []string
	for i := range s.Interactions {
		if s.Interactions[i].Required {
			ids = append(ids, s.Interactions[i].ID)
		}
	}
	return ids
}
