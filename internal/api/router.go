// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/middleware"
)

// Rate limits per route class. Guests get tight redemption limits;
// admin dashboards need headroom for parallel panel loads.
var (
	rateLimitGuest = rateLimitSpec{Requests: 60, Window: time.Minute}
	rateLimitLogin = rateLimitSpec{Requests: 5, Window: 5 * time.Minute}
	rateLimitAuth  = rateLimitSpec{Requests: 30, Window: time.Minute}
	rateLimitAPI   = rateLimitSpec{Requests: 300, Window: time.Minute}
	rateLimitSync  = rateLimitSpec{Requests: 10, Window: time.Minute}
)

type rateLimitSpec struct {
	Requests int
	Window   time.Duration
}

// Router assembles the chi route tree around a handler set.
type Router struct {
	h *Handlers
}

// NewRouter builds the router.
func NewRouter(h *Handlers) *Router {
	return &Router{h: h}
}

// limit returns an IP rate limiter, or a pass-through when rate
// limiting is disabled for tests and development.
func (rt *Router) limit(spec rateLimitSpec) func(http.Handler) http.Handler {
	if rt.h.cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByRealIP(spec.Requests, spec.Window)
}

// Routes builds the complete handler tree.
func (rt *Router) Routes() http.Handler {
	h := rt.h
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.TrustedOriginSet(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.HealthLive)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(auth.CSRFProtect(h.cfg.TrustedOriginSet()))

		// Public guest surface: invitation validation/redemption and
		// wizard progress. Lives under /public so the admin CRUD
		// routes keep the bare resource paths.
		r.Route("/public", func(r chi.Router) {
			r.Use(rt.limit(rateLimitGuest))
			r.Get("/invitations/{code}", h.ValidateInvitation)
			r.With(rt.limit(rateLimitLogin)).Post("/invitations/{code}/redeem", h.RedeemInvitation)
			r.Get("/wizards/{slug}", h.GuestWizard)
			r.Post("/wizards/{slug}/steps/{position}/complete", h.CompleteWizardStep)
		})

		// Authentication endpoints.
		r.Route("/auth", func(r chi.Router) {
			r.Use(rt.limit(rateLimitAuth))
			r.With(rt.limit(rateLimitLogin)).Post("/login", h.Login)
			r.With(rt.limit(rateLimitLogin)).Post("/totp", h.LoginTOTP)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
			r.Get("/plex/pin", h.PlexPinStart)
			r.Get("/plex/pin/{id}", h.PlexPinPoll)

			r.Group(func(r chi.Router) {
				r.Use(rt.requireAdmin())
				r.Get("/me", h.Me)
				r.Post("/totp/enroll", h.TOTPEnroll)
				r.Post("/totp/confirm", h.TOTPConfirm)
				r.Post("/password", h.ChangePassword)
			})
		})

		// Admin surface behind JWT cookies.
		r.Group(func(r chi.Router) {
			r.Use(rt.limit(rateLimitAPI))
			r.Use(rt.requireAdmin())

			r.Get("/status", h.Status)
			r.Get("/logs/stream", h.LogStream)

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", h.ListInvitations)
				r.Post("/", h.CreateInvitation)
				r.Get("/{id}", h.GetInvitation)
				r.Put("/{id}", h.UpdateInvitation)
				r.Delete("/{id}", h.DeleteInvitation)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Get("/{id}", h.GetUser)
				r.Post("/{id}/enable", h.EnableUser)
				r.Post("/{id}/disable", h.DisableUser)
				r.Post("/{id}/claim", h.ClaimUser)
				r.Delete("/{id}", h.DeleteUser)
			})

			r.Route("/identities", func(r chi.Router) {
				r.Get("/", h.ListIdentities)
				r.Post("/", h.CreateIdentity)
				r.Get("/{id}", h.GetIdentity)
				r.Put("/{id}", h.UpdateIdentity)
				r.Delete("/{id}", h.DeleteIdentity)
			})

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", h.ListServers)
				r.Post("/", h.CreateServer)
				r.Get("/{id}", h.GetServer)
				r.Put("/{id}", h.UpdateServer)
				r.Delete("/{id}", h.DeleteServer)
				r.Post("/{id}/verify", h.VerifyServer)
				r.Get("/{id}/libraries", h.ListLibraries)
				r.Post("/{id}/libraries/refresh", h.RefreshLibraries)
				r.Put("/{id}/libraries/{libraryID}", h.SetLibraryEnabled)
				r.With(rt.limit(rateLimitSync)).Post("/{id}/sync", h.TriggerSync)
				r.Get("/{id}/sync/runs", h.ListSyncRuns)
				r.Get("/{id}/exclusions", h.ListSyncExclusions)
				r.Post("/{id}/exclusions", h.AddSyncExclusion)
				r.Delete("/{id}/exclusions/{exclusionID}", h.RemoveSyncExclusion)
			})

			r.Route("/wizards", func(r chi.Router) {
				r.Get("/", h.ListWizards)
				r.Post("/", h.CreateWizard)
				r.Get("/{id}", h.GetWizard)
				r.Put("/{id}", h.UpdateWizard)
				r.Delete("/{id}", h.DeleteWizard)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.ListSettings)
				r.Get("/{key}", h.GetSetting)
				r.Put("/{key}", h.PutSetting)
				r.Delete("/{key}", h.ResetSetting)
			})
		})
	})

	return r
}

// requireAdmin adapts the auth middleware to the response envelope.
func (rt *Router) requireAdmin() func(http.Handler) http.Handler {
	return auth.RequireAdmin(rt.h.issuer, rt.h.denylist, func(w http.ResponseWriter, r *http.Request, err error) {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
	})
}
