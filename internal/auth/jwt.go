// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package auth implements admin authentication: JWT issuance and
// verification, password hashing, TOTP second factor, login lockout,
// the revoked-token denylist and the CSRF origin check.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "kind" claim. A token of one kind is never
// accepted where another is expected.
const (
	TokenKindAccess      = "access"
	TokenKindRefresh     = "refresh"
	TokenKindPendingTOTP = "pending_totp"
	TokenKindWizard      = "wizard_progress"
)

const tokenIssuer = "zondarr"

// JWT errors.
var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenWrongKind = errors.New("token kind mismatch")
	ErrTokenRevoked   = errors.New("token revoked")
)

// Claims is the JWT payload for all Zondarr-issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Kind discriminates access/refresh/pending-TOTP/wizard tokens.
	Kind string `json:"kind"`

	// Username is set on admin tokens for logging convenience.
	Username string `json:"username,omitempty"`

	// Wizard progress payload, set only on TokenKindWizard.
	InvitationID   string   `json:"invitation_id,omitempty"`
	WizardID       string   `json:"wizard_id,omitempty"`
	CompletedSteps []int    `json:"completed_steps,omitempty"`
	Interactions   []string `json:"interactions,omitempty"` // completed interaction ids
}

// TokenIssuer signs and verifies all token kinds with a shared HS256
// secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	wizardTTL  time.Duration
}

// NewTokenIssuer builds a TokenIssuer. The secret must be at least 32
// bytes; config validation enforces this before we get here.
func NewTokenIssuer(secret string, accessTTL, refreshTTL, wizardTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		wizardTTL:  wizardTTL,
	}
}

// IssueAccess signs a short-lived admin access token.
func (i *TokenIssuer) IssueAccess(adminID, username string) (string, *Claims, error) {
	return i.issue(adminID, username, TokenKindAccess, i.accessTTL, nil)
}

// IssueRefresh signs a refresh token. The returned claims carry the JTI
// recorded in the refresh_tokens table.
func (i *TokenIssuer) IssueRefresh(adminID, username string) (string, *Claims, error) {
	return i.issue(adminID, username, TokenKindRefresh, i.refreshTTL, nil)
}

// IssuePendingTOTP signs the short-lived intermediate token handed out
// after a correct password when the account still owes a TOTP code.
func (i *TokenIssuer) IssuePendingTOTP(adminID, username string) (string, *Claims, error) {
	return i.issue(adminID, username, TokenKindPendingTOTP, 5*time.Minute, nil)
}

// IssueWizardProgress signs a guest wizard progress token.
func (i *TokenIssuer) IssueWizardProgress(invitationID, wizardID string, completedSteps []int, interactions []string) (string, *Claims, error) {
	mutate := func(c *Claims) {
		c.InvitationID = invitationID
		c.WizardID = wizardID
		c.CompletedSteps = completedSteps
		c.Interactions = interactions
	}
	return i.issue("", "", TokenKindWizard, i.wizardTTL, mutate)
}

func (i *TokenIssuer) issue(subject, username, kind string, ttl time.Duration, mutate func(*Claims)) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Kind:     kind,
		Username: username,
	}
	if mutate != nil {
		mutate(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, claims, nil
}

// Verify parses and validates a token, requiring the given kind.
func (i *TokenIssuer) Verify(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("got %q, want %q: %w", claims.Kind, kind, ErrTokenWrongKind)
	}
	return claims, nil
}
