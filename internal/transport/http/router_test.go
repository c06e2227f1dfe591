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

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/identity/identitytest"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/invitation/invitationtest"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/lexguard/lexguard/internal/session"
	transportHTTP "github.com/lexguard/lexguard/internal/transport/http"
	"github.com/lexguard/lexguard/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionSecret = "router-test-session-secret"

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	Retryable bool            `json:"retryable"`
}

type testEnv struct {
	router   http.Handler
	provider *invitationtest.Provider
	dir      *identitytest.Directory
	audit    *audit.MemoryLogger
	webhooks *webhook.Verifier
}

func newTestEnv(t *testing.T, rl *transportHTTP.RateLimiter) *testEnv {
	t.Helper()

	log := &audit.MemoryLogger{}
	az := authz.NewService(log, metrics.Noop())
	provider := invitationtest.NewProvider()
	dir := identitytest.NewDirectory(
		&identity.User{ID: "u_super", Email: "owner@firm.example", Role: rbac.RoleSuperadmin},
		&identity.User{ID: "u_admin", Email: "admin@firm.example", Role: rbac.RoleAdmin},
		&identity.User{ID: "u_dev", Email: "dev@firm.example", FirstName: "Dana", LastName: "Vo", Role: rbac.RoleDeveloper},
		&identity.User{ID: "u_user", Email: "user@firm.example", Role: rbac.RoleUser},
	)
	invitations := invitation.NewService(provider, az, log, metrics.Noop())
	identities := identity.NewService(dir, az, log, metrics.Noop(), identity.Options{})

	verifier, err := session.NewVerifier(session.Config{Secret: sessionSecret})
	require.NoError(t, err)
	whVerifier, err := webhook.NewVerifier("router-test-webhook-secret", 0)
	require.NoError(t, err)

	static := fstest.MapFS{
		"index.html":    {Data: []byte("<html><body>PROTECTED-APP</body></html>")},
		"assets/app.js": {Data: []byte("console.log('admin')")},
	}

	if rl == nil {
		rl = transportHTTP.NewRateLimiter(1000, 1000)
	}
	t.Cleanup(rl.Stop)

	h := transportHTTP.NewHandler(transportHTTP.Services{
		Authz:       az,
		Identity:    identities,
		Invitations: invitations,
		Webhooks:    webhook.NewProcessor(whVerifier, nil, invitations, identities, log),
		Pages:       transportHTTP.NewAdminPageHandler(az, static),
		HealthChecks: map[string]transportHTTP.HealthCheck{
			"directory": func(context.Context) error { return nil },
		},
	})
	router := transportHTTP.NewRouter(h, rl, transportHTTP.RouterConfig{
		Resolver:       verifier,
		Metrics:        metrics.NewHTTPMetrics(),
		AllowedOrigins: []string{"https://admin.firm.example"},
	})

	return &testEnv{router: router, provider: provider, dir: dir, audit: log, webhooks: whVerifier}
}

func sessionToken(t *testing.T, sub, role string) string {
	t.Helper()
	now := time.Now()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Metadata: map[string]any{"role": role},
	}).SignedString([]byte(sessionSecret))
	require.NoError(t, err)
	return s
}

// apiRequest builds a JSON admin API call with the CSRF header set.
func apiRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(transportHTTP.CSRFHeader, "1")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "__session", Value: token})
	}
	return req
}

func pageRequest(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "__session", Value: token})
	}
	return req
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

// TestPurpose: An admin cannot change the role of a superadmin through the API.
// Scope: Integration Test (router + services)
// Security: Vertical privilege escalation (CWE-269)
// Permissions: manage_users
// Expected: PUT /admin/users answers 403 with a forbidden envelope; the superadmin keeps the role; the rejection is audited.
// Test Case ID: RT-01
func TestRouter_AdminCannotModifySuperadmin(t *testing.T) {
	e := newTestEnv(t, nil)
	tok := sessionToken(t, "u_admin", "admin")

	w := e.serve(apiRequest(t, http.MethodPut, "/admin/users", tok, map[string]string{"userId": "u_super", "role": "user"}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "forbidden", env.Code)
	assert.False(t, env.Retryable)
	assert.NotEmpty(t, env.Error)

	u, err := e.dir.GetUser(context.Background(), "u_super")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSuperadmin, u.Role)
	assert.Len(t, e.audit.OfType(audit.TypeRoleChangeRejected), 1)

	w = e.serve(apiRequest(t, http.MethodPut, "/admin/users", tok, map[string]string{"userId": "u_dev", "role": "content_creator"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user transportHTTP.UserResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &user))
	assert.Equal(t, rbac.RoleContentCreator, user.Role)
	assert.Equal(t, "Dana Vo", user.FullName)
}

// TestPurpose: A superadmin invites, revokes, and a second revoke is an explicit conflict.
// Scope: Integration Test (router + services)
// Permissions: manage_invitations
// Expected: 201 with a pending invitation, 200 with status revoked, then 409 with a conflict envelope.
// Test Case ID: RT-02
func TestRouter_InviteThenRevokeTwice(t *testing.T) {
	e := newTestEnv(t, nil)
	tok := sessionToken(t, "u_super", "superadmin")

	w := e.serve(apiRequest(t, http.MethodPost, "/admin/invitations", tok, map[string]string{
		"emailAddress": "new@example.com", "role": "user",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv invitation.Invitation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &inv))
	assert.Equal(t, invitation.StatusPending, inv.Status)
	assert.Equal(t, "new@example.com", inv.EmailAddress)
	assert.Equal(t, "u_super", inv.InvitedBy)

	w = e.serve(apiRequest(t, http.MethodPost, "/admin/invitations/"+inv.ID+"/revoke", tok, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var revoked invitation.Invitation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &revoked))
	assert.Equal(t, invitation.StatusRevoked, revoked.Status)

	w = e.serve(apiRequest(t, http.MethodPost, "/admin/invitations/"+inv.ID+"/revoke", tok, nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "conflict", env.Code)
	assert.Contains(t, env.Error, "already revoked")

	w = e.serve(apiRequest(t, http.MethodGet, "/admin/invitations?status=revoked", tok, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []invitation.Invitation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, inv.ID, list[0].ID)
}

// TestPurpose: A user without admin permissions opening a gated admin page sees the denied view.
// Scope: Integration Test (router + page gate)
// Security: Forced browsing (CWE-425)
// Permissions: manage_services
// Expected: 403 HTML denied page; the admin app is never served; the invitation provider is never called.
// Test Case ID: RT-03
func TestRouter_UserDeniedServicesPage(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.serve(pageRequest("/admin/services", sessionToken(t, "u_user", "user")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Access denied")
	assert.NotContains(t, w.Body.String(), "PROTECTED-APP")
	assert.Empty(t, e.provider.Calls)
	assert.NotEmpty(t, e.audit.OfType(audit.TypeAccessDenied))
}

// TestPurpose: Validates page gating for allowed, anonymous, nested and asset paths.
// Scope: Integration Test (router + page gate)
// Expected: Developers reach services pages and assets; anonymous visitors get the sign-in page; developers cannot open user management.
// Test Case ID: RT-04
func TestRouter_AdminPageGating(t *testing.T) {
	e := newTestEnv(t, nil)
	dev := sessionToken(t, "u_dev", "developer")

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		contains string
	}{
		{"developer services", "/admin/services", dev, http.StatusOK, "PROTECTED-APP"},
		{"developer nested services", "/admin/services/new", dev, http.StatusOK, "PROTECTED-APP"},
		{"developer dashboard", "/admin", dev, http.StatusOK, "PROTECTED-APP"},
		{"developer asset", "/admin/assets/app.js", dev, http.StatusOK, "console.log"},
		{"developer users", "/admin/users", dev, http.StatusForbidden, "Access denied"},
		{"anonymous dashboard", "/admin", "", http.StatusUnauthorized, "Sign in required"},
		{"garbage token", "/admin/blog", "not-a-jwt", http.StatusUnauthorized, "Sign in required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.serve(pageRequest(tt.path, tt.token))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

// TestPurpose: Validates the admin API gate chain.
// Scope: Integration Test (router middleware)
// Security: CSRF (CWE-352) and unauthenticated access
// Expected: Missing CSRF header is 403; anonymous calls are 401; non-JSON bodies are 415; users without view_admin are 403.
// Test Case ID: RT-05
func TestRouter_APIGateChain(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := sessionToken(t, "u_admin", "admin")
	body := map[string]string{"emailAddress": "x@firm.example", "role": "user"}

	req := apiRequest(t, http.MethodPost, "/admin/invitations", admin, body)
	req.Header.Del(transportHTTP.CSRFHeader)
	w := e.serve(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeEnvelope(t, w).Code)

	w = e.serve(apiRequest(t, http.MethodPost, "/admin/invitations", "", body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeEnvelope(t, w).Code)

	req = apiRequest(t, http.MethodPost, "/admin/invitations", admin, body)
	req.Header.Set("Content-Type", "text/plain")
	w = e.serve(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = e.serve(apiRequest(t, http.MethodGet, "/admin/invitations", sessionToken(t, "u_user", "user"), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Zero(t, e.provider.Calls["Create"])
}

// TestPurpose: Validates the actor description used by the admin UI.
// Scope: Integration Test (router)
// Expected: Admins see their rank, permissions and grantable roles; anonymous callers see the lowest role with nothing granted.
// Test Case ID: RT-06
func TestRouter_Me(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.serve(apiRequest(t, http.MethodGet, "/admin/api/me", sessionToken(t, "u_admin", "ADMIN"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var me transportHTTP.MeResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &me))
	assert.True(t, me.Authenticated)
	assert.Equal(t, rbac.RoleAdmin, me.Role)
	assert.Equal(t, 3, me.Rank)
	assert.Contains(t, me.Permissions, rbac.PermManageInvitations)
	assert.Equal(t, []rbac.Role{rbac.RoleUser, rbac.RoleContentCreator, rbac.RoleDeveloper}, me.AssignableRoles)

	w = e.serve(apiRequest(t, http.MethodGet, "/admin/api/me", "", nil))
	require.Equal(t, http.StatusOK, w.Code)
	me = transportHTTP.MeResponse{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &me))
	assert.False(t, me.Authenticated)
	assert.Equal(t, rbac.LowestRole, me.Role)
	assert.Empty(t, me.Permissions)
	assert.Empty(t, me.AssignableRoles)
}

// TestPurpose: Permission failures are distinguishable from transient failures in the envelope.
// Scope: Integration Test (router + error classification)
// Expected: Provider outages are 503 retryable; validation errors are 400 not retryable; unknown users are 404.
// Test Case ID: RT-07
func TestRouter_ErrorEnvelope(t *testing.T) {
	e := newTestEnv(t, nil)
	tok := sessionToken(t, "u_super", "superadmin")

	e.provider.FailWith(invitation.ErrProviderUnavailable)
	w := e.serve(apiRequest(t, http.MethodGet, "/admin/invitations", tok, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "unavailable", env.Code)
	assert.True(t, env.Retryable)
	e.provider.FailWith(nil)

	w = e.serve(apiRequest(t, http.MethodPost, "/admin/invitations", tok, map[string]string{"emailAddress": "not-an-email", "role": "user"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env = decodeEnvelope(t, w)
	assert.Equal(t, "validation", env.Code)
	assert.False(t, env.Retryable)

	w = e.serve(apiRequest(t, http.MethodGet, "/admin/invitations?status=bogus", tok, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.serve(apiRequest(t, http.MethodGet, "/admin/users/u_missing", tok, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeEnvelope(t, w).Code)
}

// TestPurpose: Paths shared by pages and the API are negotiated on Accept.
// Scope: Integration Test (router)
// Expected: Browsers get the gated admin page; API clients get the JSON envelope.
// Test Case ID: RT-08
func TestRouter_ContentNegotiation(t *testing.T) {
	e := newTestEnv(t, nil)
	tok := sessionToken(t, "u_admin", "admin")

	w := e.serve(pageRequest("/admin/invitations", tok))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PROTECTED-APP")

	w = e.serve(apiRequest(t, http.MethodGet, "/admin/invitations", tok, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)

	w = e.serve(pageRequest("/admin/users/u_dev", sessionToken(t, "u_dev", "developer")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Access denied")
}

// TestPurpose: Validates the identity webhook route.
// Scope: Integration Test (router + webhook processor)
// Security: Webhook authenticity (CWE-345)
// Expected: A signed user.created delivery accepts the invitation; a bad signature is 401 and changes nothing.
// Test Case ID: RT-09
func TestRouter_IdentityWebhook(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	inv, err := e.provider.Create(ctx, invitation.CreateParams{EmailAddress: "hire@firm.example", Role: rbac.RoleContentCreator})
	require.NoError(t, err)

	body := []byte(`{"type":"user.created","data":{"id":"u_hire","primary_email_address_id":"e1","email_addresses":[{"id":"e1","email_address":"hire@firm.example"}]}}`)
	now := time.Now()

	bad := httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewReader(body))
	bad.Header.Set(webhook.HeaderID, "msg_1")
	bad.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	bad.Header.Set(webhook.HeaderSignature, "v1,Zm9yZ2Vk")
	w := e.serve(bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	got, err := e.provider.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusPending, got.Status)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewReader(body))
	req.Header.Set(webhook.HeaderID, "msg_1")
	req.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	req.Header.Set(webhook.HeaderSignature, "v1,"+e.webhooks.Sign("msg_1", now, body))
	w = e.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(decodeEnvelope(t, w).Data), "processed")

	got, err = e.provider.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusAccepted, got.Status)
	u, err := e.dir.GetUser(ctx, "u_hire")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleContentCreator, u.Role)
}

// TestPurpose: Validates health reporting, the metrics endpoint and per-IP rate limiting.
// Scope: Integration Test (router)
// Security: Resource exhaustion (CWE-770)
// Expected: /health is 200; /metrics exposes request counters; the second request over a burst of one is 429.
// Test Case ID: RT-10
func TestRouter_HealthMetricsAndRateLimit(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = e.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "lexguard_http_requests_total"))

	limited := newTestEnv(t, transportHTTP.NewRateLimiter(1, 1))
	first := httptest.NewRequest(http.MethodGet, "/health", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, http.StatusOK, limited.serve(first).Code)

	second := httptest.NewRequest(http.MethodGet, "/health", nil)
	second.Header.Set("X-Forwarded-For", "203.0.113.7")
	w = limited.serve(second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.True(t, decodeEnvelope(t, w).Retryable)
}

func TestRouter_HealthReportsFailingCheck(t *testing.T) {
	rl := transportHTTP.NewRateLimiter(100, 100)
	t.Cleanup(rl.Stop)
	h := transportHTTP.NewHandler(transportHTTP.Services{
		HealthChecks: map[string]transportHTTP.HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	verifier, err := session.NewVerifier(session.Config{Secret: sessionSecret})
	require.NoError(t, err)
	router := transportHTTP.NewRouter(h, rl, transportHTTP.RouterConfig{Resolver: verifier})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
