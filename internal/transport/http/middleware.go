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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/lexguard/lexguard/internal/session"
)

// CSRFHeader must be present on state-changing admin API calls.
const CSRFHeader = "X-CSRF-Token"

// ActorResolver turns a request into an actor.
type ActorResolver interface {
	ActorFromRequest(r *http.Request) (authz.Actor, error)
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.ActorID(ActorFrom(r.Context()).ID),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// ActorMiddleware resolves the session into an actor. Requests without a
// valid session continue as the anonymous actor.
func ActorMiddleware(resolver ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolver.ActorFromRequest(r)
			if err != nil && !errors.Is(err, session.ErrNoToken) {
				slog.DebugContext(r.Context(), "session rejected",
					logger.Path(r.URL.Path),
					logger.Error(err),
				)
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// CSRFMiddleware requires the CSRF header on state-changing methods.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get(CSRFHeader) == "" {
			slog.WarnContext(r.Context(), "missing CSRF token header", logger.Method(r.Method), logger.Path(r.URL.Path))
			respondError(w, invitation.KindForbidden, "CSRF protection: "+CSRFHeader+" header is required for state-changing operations")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects actors lacking perm with a JSON envelope:
// 401 for anonymous actors and 403 otherwise.
func RequirePermission(authzService *authz.Service, perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := authzService.Check(r.Context(), ActorFrom(r.Context()), perm)
			if !d.Allowed {
				respondErr(w, r, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
