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
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/rbac"
)

var deniedPage = template.Must(template.New("denied").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} | LexGuard Admin</title></head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .SignIn}}<p><a href="/sign-in?redirect_url={{.Path}}">Sign in</a></p>{{else}}<p><a href="/">Return to the website</a></p>{{end}}
</main>
</body>
</html>
`))

// AdminPageHandler serves admin pages, rendering an access-denied page for
// actors without the permission that gates the page's section.
type AdminPageHandler struct {
	authz *authz.Service
	spa   http.Handler
}

// NewAdminPageHandler creates the gated page handler over the built admin app.
func NewAdminPageHandler(authzService *authz.Service, static fs.FS) *AdminPageHandler {
	return &AdminPageHandler{
		authz: authzService,
		spa:   http.StripPrefix("/admin", adminApp(static)),
	}
}

func (h *AdminPageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	perm, ok := authz.PagePermission(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor := ActorFrom(r.Context())

	serve := authz.Guard(r.Context(), h.authz, actor, perm,
		func() http.HandlerFunc { return h.spa.ServeHTTP },
		func() http.HandlerFunc { return denied(actor, perm) },
	)
	serve(w, r)
}

func denied(actor authz.Actor, perm rbac.Permission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := struct {
			Title   string
			Message string
			SignIn  bool
			Path    string
		}{
			Title:   "Access denied",
			Message: "Your role (" + rbac.DisplayName(actor.Role) + ") does not have access to this page.",
			Path:    r.URL.Path,
		}
		status := http.StatusForbidden
		if !actor.Authenticated {
			status = http.StatusUnauthorized
			data.Title = "Sign in required"
			data.Message = "You need to sign in to view the admin panel."
			data.SignIn = true
		}

		slog.InfoContext(r.Context(), "admin page denied",
			logger.ActorID(actor.ID),
			logger.Role(string(actor.Role)),
			logger.Permission(string(perm)),
			logger.Path(r.URL.Path),
		)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		if err := deniedPage.Execute(w, data); err != nil {
			slog.ErrorContext(r.Context(), "failed to render denied page", logger.Error(err))
		}
	}
}
