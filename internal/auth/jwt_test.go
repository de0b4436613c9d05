// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(testSecret, 15*time.Minute, 24*time.Hour, time.Hour)
}

func TestIssueAndVerifyAccess(t *testing.T) {
	i := newTestIssuer()

	signed, claims, err := i.IssueAccess("admin-1", "admin")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("no JTI assigned")
	}

	got, err := i.Verify(signed, TokenKindAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Subject != "admin-1" || got.Username != "admin" || got.Kind != TokenKindAccess {
		t.Fatalf("claims mismatch: %+v", got)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	i := newTestIssuer()

	signed, _, err := i.IssueRefresh("admin-1", "admin")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := i.Verify(signed, TokenKindAccess); !errors.Is(err, ErrTokenWrongKind) {
		t.Fatalf("expected ErrTokenWrongKind, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	i := newTestIssuer()
	other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Minute, time.Hour, time.Hour)

	signed, _, err := i.IssueAccess("admin-1", "admin")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := other.Verify(signed, TokenKindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	i := NewTokenIssuer(testSecret, -time.Minute, time.Hour, time.Hour)

	signed, _, err := i.IssueAccess("admin-1", "admin")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := i.Verify(signed, TokenKindAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	i := newTestIssuer()
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := i.Verify(tok, TokenKindAccess); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", tok, err)
		}
	}
}

func TestWizardProgressRoundTrip(t *testing.T) {
	i := newTestIssuer()

	signed, _, err := i.IssueWizardProgress("inv-1", "wiz-1", []int{0, 1}, []string{"int-1"})
	if err != nil {
		t.Fatalf("IssueWizardProgress: %v", err)
	}

	got, err := i.Verify(signed, TokenKindWizard)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.InvitationID != "inv-1" || got.WizardID != "wiz-1" {
		t.Fatalf("wizard claims mismatch: %+v", got)
	}
	if len(got.CompletedSteps) != 2 || got.CompletedSteps[1] != 1 {
		t.Fatalf("completed steps mismatch: %+v", got.CompletedSteps)
	}
	if len(got.Interactions) != 1 || got.Interactions[0] != "int-1" {
		t.Fatalf("interactions mismatch: %+v", got.Interactions)
	}
}
