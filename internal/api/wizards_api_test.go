// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/zondarr/zondarr/internal/models"
)

// wizardPayload is the guest wizard response shape.
type wizardPayload struct {
	Wizard    models.Wizard      `json:"wizard"`
	Token     string             `json:"token"`
	Step      *models.WizardStep `json:"step"`
	Completed bool               `json:"completed"`
}

type stepPayload struct {
	Token     string             `json:"token"`
	Step      *models.WizardStep `json:"step"`
	Completed bool               `json:"completed"`
}

func (env *apiEnv) createWelcomeWizard(t *testing.T, cookies []*http.Cookie) *models.Wizard {
	t.Helper()
	rec, envelope := env.do(t, http.MethodPost, "/api/v1/wizards/", map[string]interface{}{
		"name": "Welcome",
		"slug": "welcome",
		"steps": []map[string]interface{}{
			{"title": "Rules", "markdown": "No sharing."},
			{
				"title":   "Terms",
				"require": true,
				"interactions": []map[string]interface{}{
					{"kind": "acknowledge", "label": "I agree", "required": true},
				},
			},
		},
	}, cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create wizard: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var wiz models.Wizard
	dataInto(t, envelope, &wiz)
	return &wiz
}

func TestGuestWizardGatesRedemption(t *testing.T) {
	env := newAPIEnv(t)
	srv, _ := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	cookies := env.login(t)
	wiz := env.createWelcomeWizard(t, cookies)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/invitations/", map[string]interface{}{
		"server_ids":    []string{srv.ID},
		"pre_wizard_id": wiz.ID,
	}, cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invitation: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var inv models.Invitation
	dataInto(t, envelope, &inv)

	redeemBody := map[string]string{
		"username": "guest",
		"password": "guest-password",
	}
	redeemPath := "/api/v1/public/invitations/" + inv.Code + "/redeem"

	// Redemption is blocked until the wizard is finished.
	rec, envelope = env.do(t, http.MethodPost, redeemPath, redeemBody, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("redeem without wizard: status = %d, want 409", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeWizardIncomplete {
		t.Fatalf("redeem without wizard: error = %+v", envelope.Error)
	}

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/public/wizards/welcome?invitation="+inv.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest wizard: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var wp wizardPayload
	dataInto(t, envelope, &wp)
	if wp.Step == nil || wp.Step.Position != 0 {
		t.Fatalf("guest wizard: first step = %+v", wp.Step)
	}
	if len(wp.Wizard.Steps) != 2 {
		t.Fatalf("guest wizard: %d steps, want 2", len(wp.Wizard.Steps))
	}

	// Step 0 has no required interactions.
	rec, envelope = env.do(t, http.MethodPost, "/api/v1/public/wizards/welcome/steps/0/complete",
		map[string]interface{}{"token": wp.Token}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete step 0: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var sp stepPayload
	dataInto(t, envelope, &sp)
	if sp.Completed {
		t.Fatal("wizard reported complete after step 0")
	}

	// Step 1 requires the acknowledgement.
	rec, envelope = env.do(t, http.MethodPost, "/api/v1/public/wizards/welcome/steps/1/complete",
		map[string]interface{}{"token": sp.Token}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("step 1 without acknowledgement: status = %d, want 409", rec.Code)
	}

	ack := wp.Wizard.Steps[1].Interactions[0].ID
	rec, envelope = env.do(t, http.MethodPost, "/api/v1/public/wizards/welcome/steps/1/complete",
		map[string]interface{}{"token": sp.Token, "interaction_ids": []string{ack}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete step 1: status = %d, body %s", rec.Code, rec.Body.String())
	}
	dataInto(t, envelope, &sp)
	if !sp.Completed {
		t.Fatal("wizard not complete after final step")
	}

	redeemBodyWithToken := map[string]string{
		"username":     "guest",
		"password":     "guest-password",
		"wizard_token": sp.Token,
	}
	rec, _ = env.do(t, http.MethodPost, redeemPath, redeemBodyWithToken, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("redeem with wizard token: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestWizardStepsOutOfOrderOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	cookies := env.login(t)
	env.createWelcomeWizard(t, cookies)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/public/wizards/welcome", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest wizard: status = %d", rec.Code)
	}
	var wp wizardPayload
	dataInto(t, envelope, &wp)

	rec, envelope = env.do(t, http.MethodPost, "/api/v1/public/wizards/welcome/steps/1/complete",
		map[string]interface{}{"token": wp.Token}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("skip ahead: status = %d, want 409", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeConflict {
		t.Fatalf("skip ahead: error = %+v", envelope.Error)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/public/wizards/welcome/steps/0/complete",
		map[string]interface{}{"token": "not-a-jwt"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token: status = %d, want 401", rec.Code)
	}
}

func TestWizardAdminCRUDOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	cookies := env.login(t)
	wiz := env.createWelcomeWizard(t, cookies)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/wizards/", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var wizards []models.Wizard
	dataInto(t, envelope, &wizards)
	if len(wizards) != 1 {
		t.Fatalf("list returned %d wizards, want 1", len(wizards))
	}

	rec, envelope = env.do(t, http.MethodPut, "/api/v1/wizards/"+wiz.ID, map[string]interface{}{
		"name": "Welcome v2",
		"slug": "welcome",
		"steps": []map[string]interface{}{
			{"title": "Only step"},
		},
	}, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.Wizard
	dataInto(t, envelope, &updated)
	if len(updated.Steps) != 1 || updated.Name != "Welcome v2" {
		t.Errorf("update: name = %q steps = %d", updated.Name, len(updated.Steps))
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/wizards/"+wiz.ID, nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wizards/%s", wiz.ID), nil, cookies)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: status = %d, want 404", rec.Code)
	}
}
