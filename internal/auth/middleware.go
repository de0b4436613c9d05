// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Auth cookie names.
const (
	AccessCookieName  = "zondarr_access"
	RefreshCookieName = "zondarr_refresh"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext returns the verified admin claims stored by
// RequireAdmin, or nil outside an authenticated request.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey).(*Claims)
	return c
}

// WithClaims returns a context carrying verified claims. Exposed for
// handler tests.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// RequireAdmin verifies the access token from the auth cookie (or an
// Authorization bearer header for API clients) and rejects revoked
// tokens. Verified claims are stored in the request context.
func RequireAdmin(issuer *TokenIssuer, denylist *Denylist, onReject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				if c, err := r.Cookie(AccessCookieName); err == nil {
					tokenString = c.Value
				}
			}
			if tokenString == "" {
				onReject(w, r, ErrTokenInvalid)
				return
			}

			claims, err := issuer.Verify(tokenString, TokenKindAccess)
			if err != nil {
				onReject(w, r, err)
				return
			}

			revoked, err := denylist.IsRevoked(claims.ID)
			if err != nil {
				onReject(w, r, err)
				return
			}
			if revoked {
				onReject(w, r, ErrTokenRevoked)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// IsAuthError reports whether err is one of the token verification
// sentinels, letting the reject callback pick 401 vs 500.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenWrongKind) ||
		errors.Is(err, ErrTokenRevoked)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SetAuthCookies writes the access and refresh cookies. The refresh
// cookie is path-restricted to the refresh endpoint so it never rides
// on ordinary API calls.
func SetAuthCookies(w http.ResponseWriter, access, refresh string, accessTTL, refreshTTL time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     "/api/v1/auth/refresh",
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearAuthCookies expires both auth cookies.
func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name: AccessCookieName, Value: "", Path: "/",
		MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: RefreshCookieName, Value: "", Path: "/api/v1/auth/refresh",
		MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteStrictMode,
	})
}
