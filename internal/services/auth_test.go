// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/zondarr/zondarr/internal/auth"
)

func newAuthService(t *testing.T, env *testEnv) *AuthService {
	t.Helper()
	denylist, err := auth.NewDenylist("")
	if err != nil {
		t.Fatalf("open denylist: %v", err)
	}
	t.Cleanup(func() { _ = denylist.Close() })
	lockout := auth.NewLockout(auth.LockoutConfig{Threshold: 3, Window: time.Minute, Duration: time.Minute})
	return NewAuthService(env.store, env.issuer, denylist, lockout, auth.NewPlexPinClient("zondarr-test"), "")
}

func TestEnsureAdminSeedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(t, env)

	if err := svc.EnsureAdmin(ctx, "admin", "first-password"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// A second boot with different credentials must not touch the
	// existing account.
	if err := svc.EnsureAdmin(ctx, "other", "second-password"); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	n, err := env.store.CountAdminAccounts(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("admin count = %d, want 1", n)
	}
	if _, err := env.store.FindAdminByUsername(ctx, "admin"); err != nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(t, env)
	if err := svc.EnsureAdmin(ctx, "admin", "correct horse battery staple"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := ClientInfo{UserAgent: "test", IP: "10.0.0.1"}

	t.Run("bad password", func(t *testing.T) {
		if _, err := svc.Login(ctx, "admin", "wrong", client); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("got %v, want ErrBadCredentials", err)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		if _, err := svc.Login(ctx, "ghost", "whatever", client); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("got %v, want ErrBadCredentials", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		result, err := svc.Login(ctx, "admin", "correct horse battery staple", client)
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if result.TOTPRequired || result.Tokens == nil {
			t.Fatalf("expected finished tokens, got %+v", result)
		}
		claims, err := env.issuer.Verify(result.Tokens.Access, auth.TokenKindAccess)
		if err != nil {
			t.Fatalf("verify access: %v", err)
		}
		if claims.Username != "admin" {
			t.Fatalf("claims username = %q", claims.Username)
		}

		row, err := env.store.GetRefreshToken(ctx, result.Tokens.RefreshClaims.ID)
		if err != nil {
			t.Fatalf("refresh row: %v", err)
		}
		if row.UserAgent != "test" || row.IP != "10.0.0.1" {
			t.Fatalf("client info not recorded: %+v", row)
		}
	})
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(t, env)
	if err := svc.EnsureAdmin(ctx, "admin", "correct horse battery staple"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := ClientInfo{IP: "10.0.0.1"}

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, "admin", "wrong", client); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}
	// Locked now, even with the right password.
	if _, err := svc.Login(ctx, "admin", "correct horse battery staple", client); !errors.Is(err, auth.ErrLockedOut) {
		t.Fatalf("got %v, want ErrLockedOut", err)
	}
	// A different source address is unaffected.
	if _, err := svc.Login(ctx, "admin", "correct horse battery staple", ClientInfo{IP: "10.0.0.2"}); err != nil {
		t.Fatalf("other IP: %v", err)
	}
}

func TestTOTPEnrollmentAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(t, env)
	if err := svc.EnsureAdmin(ctx, "admin", "correct horse battery staple"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	admin, err := env.store.FindAdminByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	client := ClientInfo{IP: "10.0.0.1"}

	enrollment, err := svc.BeginTOTPEnrollment(ctx, admin.ID)
	if err != nil {
		t.Fatalf("begin enrollment: %v", err)
	}

	// Unconfirmed enrollment must not gate login yet.
	result, err := svc.Login(ctx, "admin", "correct horse battery staple", client)
	if err != nil {
		t.Fatalf("login before confirm: %v", err)
	}
	if result.TOTPRequired {
		t.Fatal("TOTP enforced before confirmation")
	}

	if err := svc.ConfirmTOTP(ctx, admin.ID, "000000"); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("got %v, want ErrTOTPInvalid", err)
	}
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := svc.ConfirmTOTP(ctx, admin.ID, code); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Enforced now: password alone yields a pending token.
	result, err = svc.Login(ctx, "admin", "correct horse battery staple", client)
	if err != nil {
		t.Fatalf("login after confirm: %v", err)
	}
	if !result.TOTPRequired || result.PendingTOTP == "" {
		t.Fatalf("expected pending TOTP, got %+v", result)
	}

	if _, err := svc.CompleteTOTP(ctx, result.PendingTOTP, "000000", client); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("got %v, want ErrTOTPInvalid", err)
	}
	code, err = totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	tokens, err := svc.CompleteTOTP(ctx, result.PendingTOTP, code, client)
	if err != nil {
		t.Fatalf("complete TOTP: %v", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		t.Fatal("incomplete token pair")
	}

	// An access token is not accepted as a pending token.
	if _, err := svc.CompleteTOTP(ctx, tokens.Access, code, client); err == nil {
		t.Fatal("access token accepted as pending token")
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(t, env)
	if err := svc.EnsureAdmin(ctx, "admin", "correct horse battery staple"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := ClientInfo{IP: "10.0.0.1"}

	result, err := svc.Login(ctx, "admin", "correct horse battery staple", client)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	first := result.Tokens

	rotated, err := svc.Refresh(ctx, first.Refresh, client)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshClaims.ID == first.RefreshClaims.ID {
		t.Fatal("refresh JTI not rotated")
	}

	// The old refresh token is burned.
	if _, err := svc.Refresh(ctx, first.Refresh, client); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked", err)
	}

	// Logout burns the new one; a second logout is a no-op.
	if err := svc.Logout(ctx, rotated.Refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.Logout(ctx, rotated.Refresh); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, rotated.Refresh, client); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(t, env)
	if err := svc.EnsureAdmin(ctx, "admin", "old-password-123"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	admin, err := env.store.FindAdminByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}

	if err := svc.ChangePassword(ctx, admin.ID, "wrong", "new-password-456"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("got %v, want ErrBadCredentials", err)
	}
	if err := svc.ChangePassword(ctx, admin.ID, "old-password-123", "new-password-456"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := svc.Login(ctx, "admin", "new-password-456", ClientInfo{IP: "10.0.0.1"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
