// Copyright 2026 The LexGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// @title LexGuard Admin API
// @version 1.0.0
// @description Role-based access control and invitation lifecycle for the LexGuard admin panel

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name __session

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/lexguard/lexguard/internal/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Services are the dependencies of the HTTP handlers.
type Services struct {
	Authz       *authz.Service
	Identity    *identity.Service
	Invitations *invitation.Service
	// Webhooks is nil when identity webhooks are disabled.
	Webhooks *webhook.Processor
	// Pages serves the admin panel; nil disables page routes.
	Pages        http.Handler
	HealthChecks map[string]HealthCheck
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	authz        *authz.Service
	identity     *identity.Service
	invitations  *invitation.Service
	webhooks     *webhook.Processor
	pages        http.Handler
	healthChecks map[string]HealthCheck
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		authz:        s.Authz,
		identity:     s.Identity,
		invitations:  s.Invitations,
		webhooks:     s.Webhooks,
		pages:        s.Pages,
		healthChecks: s.HealthChecks,
	}
}

// RouterConfig holds router-level settings
type RouterConfig struct {
	Resolver       ActorResolver
	Metrics        *metrics.HTTPMetrics
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(cfg.Metrics.Middleware)
	r.Use(ActorMiddleware(cfg.Resolver))
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if h.webhooks != nil {
		r.Post("/webhooks/identity", h.IdentityWebhook)
	}

	// JSON API calls below /admin go through the same gate chain.
	api := chi.Chain(
		CSRFMiddleware,
		RequirePermission(h.authz, rbac.PermViewAdmin),
		middleware.AllowContentType("application/json"),
	)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/api/me", h.Me)

		r.Group(func(r chi.Router) {
			r.Use(api...)
			r.Post("/invitations", h.CreateInvitation)
			r.Post("/invitations/{id}/revoke", h.RevokeInvitation)
			r.Put("/users", h.UpdateUserRole)
		})

		// These paths are also admin pages; browsers get the page.
		r.Method(http.MethodGet, "/invitations", h.pageOr(api.HandlerFunc(h.ListInvitations)))
		r.Method(http.MethodGet, "/users/{id}", h.pageOr(api.HandlerFunc(h.GetUser)))

		if h.pages != nil {
			r.Method(http.MethodGet, "/", h.pages)
			r.Method(http.MethodGet, "/*", h.pages)
		}
	})

	return r
}

// pageOr serves the admin page to browsers and api to everyone else.
func (h *Handler) pageOr(api http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.pages != nil && strings.Contains(r.Header.Get("Accept"), "text/html") {
			h.pages.ServeHTTP(w, r)
			return
		}
		api.ServeHTTP(w, r)
	}
}

// HealthCheck returns the health status of the service and its dependencies.
// @Summary Health Check
// @Description Reports the service and the state of each dependency
// @Tags System
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.healthChecks))
	for name, check := range h.healthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	respondJSON(w, status, map[string]any{
		"status":  state,
		"service": "lexguard",
		"checks":  checks,
	})
}
