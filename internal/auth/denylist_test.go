// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"testing"
	"time"
)

func newTestDenylist(t *testing.T) *Denylist {
	t.Helper()
	d, err := NewDenylist("")
	if err != nil {
		t.Fatalf("NewDenylist: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDenylistRevokeAndCheck(t *testing.T) {
	d := newTestDenylist(t)

	revoked, err := d.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("fresh store should not know jti-1")
	}

	if err := d.Revoke("jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err = d.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("jti-1 should be revoked")
	}
}

func TestDenylistSkipsExpiredTokens(t *testing.T) {
	d := newTestDenylist(t)

	// Revoking a token that has already expired is a no-op.
	if err := d.Revoke("jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke expired: %v", err)
	}
	revoked, err := d.IsRevoked("jti-old")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("expired token should not occupy the denylist")
	}
}
