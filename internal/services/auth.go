// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/metrics"
	"github.com/zondarr/zondarr/internal/models"
)

// dummyPasswordHash is compared against when the username does not
// exist, keeping the failure path's timing close to a real mismatch.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// AuthService implements admin login, token rotation and TOTP
// enrollment on top of the auth primitives.
type AuthService struct {
	store    *database.Store
	issuer   *auth.TokenIssuer
	denylist *auth.Denylist
	lockout  *auth.Lockout
	plexPin  *auth.PlexPinClient

	// plexOwnerToken, when set, enables Plex PIN sign-in: the PIN'd
	// account must match the owner this token belongs to.
	plexOwnerToken string
}

// NewAuthService builds the service.
func NewAuthService(store *database.Store, issuer *auth.TokenIssuer, denylist *auth.Denylist, lockout *auth.Lockout, plexPin *auth.PlexPinClient, plexOwnerToken string) *AuthService {
	return &AuthService{
		store:          store,
		issuer:         issuer,
		denylist:       denylist,
		lockout:        lockout,
		plexPin:        plexPin,
		plexOwnerToken: plexOwnerToken,
	}
}

// TokenPair is a matched access/refresh token set.
type TokenPair struct {
	Access        string
	AccessClaims  *auth.Claims
	Refresh       string
	RefreshClaims *auth.Claims
}

// LoginResult is either a finished token pair or, when the account has
// TOTP enforced, a pending token the second step must present.
type LoginResult struct {
	Tokens       *TokenPair
	PendingTOTP  string
	TOTPRequired bool
}

// ClientInfo records where a refresh token was minted from.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// Login checks credentials and returns tokens or a pending-TOTP token.
// Failed attempts count toward the username+IP lockout window.
func (s *AuthService) Login(ctx context.Context, username, password string, client ClientInfo) (*LoginResult, error) {
	subject := lockoutSubject(username, client.IP)
	if err := s.lockout.Check(subject); err != nil {
		metrics.LoginAttempts.WithLabelValues("locked_out").Inc()
		return nil, err
	}

	admin, err := s.store.FindAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Burn a comparison so missing accounts cost the same as
			// wrong passwords.
			_ = auth.CheckPassword(dummyPasswordHash, password)
			s.lockout.Fail(subject)
			metrics.LoginAttempts.WithLabelValues("failed").Inc()
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(admin.PasswordHash, password); err != nil {
		s.lockout.Fail(subject)
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		logging.Warn().Str("username", username).Str("ip", client.IP).Msg("Login failed")
		return nil, ErrBadCredentials
	}
	s.lockout.Reset(subject)

	if admin.TOTPSecret != nil && admin.TOTPConfirmedAt != nil {
		pending, _, err := s.issuer.IssuePendingTOTP(admin.ID, admin.Username)
		if err != nil {
			return nil, err
		}
		metrics.LoginAttempts.WithLabelValues("totp_pending").Inc()
		return &LoginResult{PendingTOTP: pending, TOTPRequired: true}, nil
	}

	tokens, err := s.mintTokens(ctx, admin, client)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return &LoginResult{Tokens: tokens}, nil
}

// CompleteTOTP finishes a TOTP-enforced login: the pending token from
// Login plus a valid code yields the real token pair.
func (s *AuthService) CompleteTOTP(ctx context.Context, pendingToken, code string, client ClientInfo) (*TokenPair, error) {
	claims, err := s.issuer.Verify(pendingToken, auth.TokenKindPendingTOTP)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	admin, err := s.store.GetAdminAccount(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if admin.TOTPSecret == nil {
		return nil, ErrBadCredentials
	}

	subject := lockoutSubject(admin.Username, client.IP)
	if err := s.lockout.Check(subject); err != nil {
		metrics.LoginAttempts.WithLabelValues("locked_out").Inc()
		return nil, err
	}
	if !auth.ValidateTOTP(code, *admin.TOTPSecret) {
		s.lockout.Fail(subject)
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		return nil, ErrTOTPInvalid
	}
	s.lockout.Reset(subject)

	tokens, err := s.mintTokens(ctx, admin, client)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return tokens, nil
}

// Refresh rotates a refresh token: the old JTI is revoked in the
// denylist and the DB row, and a fresh pair is minted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, auth.TokenKindRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, auth.ErrTokenRevoked
	}
	row, err := s.store.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, auth.ErrTokenRevoked
		}
		return nil, err
	}
	if row.RevokedAt != nil {
		return nil, auth.ErrTokenRevoked
	}

	admin, err := s.store.GetAdminAccount(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	if err := s.revokeRefresh(ctx, claims); err != nil {
		return nil, err
	}
	return s.mintTokens(ctx, admin, client)
}

// Logout revokes the presented refresh token. An already-invalid token
// is not an error; logout must always succeed from the client's view.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.Verify(refreshToken, auth.TokenKindRefresh)
	if err != nil {
		return nil
	}
	return s.revokeRefresh(ctx, claims)
}

// BeginTOTPEnrollment generates a secret for the admin. The secret is
// stored unconfirmed; enforcement starts only after ConfirmTOTP.
func (s *AuthService) BeginTOTPEnrollment(ctx context.Context, adminID string) (*auth.TOTPEnrollment, error) {
	admin, err := s.store.GetAdminAccount(ctx, adminID)
	if err != nil {
		return nil, err
	}
	enrollment, err := auth.GenerateTOTP(admin.Username)
	if err != nil {
		return nil, err
	}
	admin.TOTPSecret = &enrollment.Secret
	admin.TOTPConfirmedAt = nil
	if err := s.store.UpdateAdminAccount(ctx, admin); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ConfirmTOTP proves the admin's authenticator works before the second
// factor is enforced.
func (s *AuthService) ConfirmTOTP(ctx context.Context, adminID, code string) error {
	admin, err := s.store.GetAdminAccount(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.TOTPSecret == nil {
		return ErrTOTPRequired
	}
	if !auth.ValidateTOTP(code, *admin.TOTPSecret) {
		return ErrTOTPInvalid
	}
	now := time.Now().UTC().Truncate(time.Second)
	admin.TOTPConfirmedAt = &now
	if err := s.store.UpdateAdminAccount(ctx, admin); err != nil {
		return err
	}
	logging.Info().Str("username", admin.Username).Msg("TOTP enabled")
	return nil
}

// DisableTOTP clears the second factor.
func (s *AuthService) DisableTOTP(ctx context.Context, adminID string) error {
	admin, err := s.store.GetAdminAccount(ctx, adminID)
	if err != nil {
		return err
	}
	admin.TOTPSecret = nil
	admin.TOTPConfirmedAt = nil
	return s.store.UpdateAdminAccount(ctx, admin)
}

// BeginPlexPin starts the plex.tv PIN flow.
func (s *AuthService) BeginPlexPin(ctx context.Context) (*auth.PlexPin, error) {
	if s.plexOwnerToken == "" {
		return nil, ErrBadCredentials
	}
	return s.plexPin.CreatePin(ctx)
}

// CompletePlexPin polls the PIN and, when claimed by the configured
// server owner, mints admin tokens for the first admin account.
func (s *AuthService) CompletePlexPin(ctx context.Context, pinID int, client ClientInfo) (*TokenPair, error) {
	if s.plexOwnerToken == "" {
		return nil, ErrBadCredentials
	}
	account, err := s.plexPin.CheckPin(ctx, pinID)
	if err != nil {
		return nil, err
	}
	owner, err := s.plexPin.Account(ctx, s.plexOwnerToken)
	if err != nil {
		return nil, err
	}
	if account.ID != owner.ID {
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		logging.Warn().Str("plex_username", account.Username).Msg("Plex PIN login by non-owner rejected")
		return nil, ErrBadCredentials
	}

	admin, err := s.firstAdmin(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := s.mintTokens(ctx, admin, client)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return tokens, nil
}

// EnsureAdmin seeds the first admin account from configuration when the
// table is empty. Subsequent boots leave existing accounts alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	count, err := s.store.CountAdminAccounts(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("no admin accounts exist and no bootstrap credentials configured")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.AdminAccount{Username: username, PasswordHash: hash}
	if err := s.store.CreateAdminAccount(ctx, admin); err != nil {
		return err
	}
	logging.Info().Str("username", username).Msg("Bootstrap admin account created")
	return nil
}

// ChangePassword sets a new password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, adminID, current, next string) error {
	admin, err := s.store.GetAdminAccount(ctx, adminID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(admin.PasswordHash, current); err != nil {
		return ErrBadCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	admin.PasswordHash = hash
	return s.store.UpdateAdminAccount(ctx, admin)
}

// PruneTokens drops expired refresh rows and runs denylist GC. Called
// from the janitor loop.
func (s *AuthService) PruneTokens(ctx context.Context) error {
	pruned, err := s.store.PruneRefreshTokens(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if pruned > 0 {
		logging.Debug().Int64("pruned", pruned).Msg("Expired refresh tokens pruned")
	}
	return s.denylist.RunGC()
}

func (s *AuthService) mintTokens(ctx context.Context, admin *models.AdminAccount, client ClientInfo) (*TokenPair, error) {
	access, accessClaims, err := s.issuer.IssueAccess(admin.ID, admin.Username)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := s.issuer.IssueRefresh(admin.ID, admin.Username)
	if err != nil {
		return nil, err
	}

	row := &models.RefreshToken{
		ID:        refreshClaims.ID,
		AdminID:   admin.ID,
		IssuedAt:  refreshClaims.IssuedAt.Time,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		UserAgent: client.UserAgent,
		IP:        client.IP,
	}
	if err := s.store.RecordRefreshToken(ctx, row); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	admin.LastLoginAt = &now
	if err := s.store.UpdateAdminAccount(ctx, admin); err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:        access,
		AccessClaims:  accessClaims,
		Refresh:       refresh,
		RefreshClaims: refreshClaims,
	}, nil
}

func (s *AuthService) revokeRefresh(ctx context.Context, claims *auth.Claims) error {
	if err := s.denylist.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	return s.store.RevokeRefreshToken(ctx, claims.ID, time.Now().UTC())
}

func (s *AuthService) firstAdmin(ctx context.Context) (*models.AdminAccount, error) {
	admins, err := s.store.ListAdminAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, ErrBadCredentials
	}
	return &admins[0], nil
}

func lockoutSubject(username, ip string) string {
	return strings.ToLower(username) + "|" + ip
}
