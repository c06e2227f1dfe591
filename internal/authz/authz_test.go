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

package authz_test

import (
	"context"
	"testing"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*authz.Service, *audit.MemoryLogger) {
	log := &audit.MemoryLogger{}
	return authz.NewService(log, metrics.Noop()), log
}

// TestPurpose: Validates that role strings from a session are coerced and that anonymous actors hold nothing.
// Scope: Unit Test
// Security: Fail-safe default for unknown roles and missing sessions
// Expected: Unknown roles become user; an empty id yields the anonymous actor.
// Test Case ID: AZ-01
func TestAuthz_NewActor(t *testing.T) {
	a := authz.NewActor("user_1", "ROOT")
	assert.True(t, a.Authenticated)
	assert.Equal(t, rbac.RoleUser, a.Role)

	anon := authz.NewActor("", "superadmin")
	assert.Equal(t, authz.Anonymous(), anon)
	for _, p := range rbac.AllPermissions() {
		assert.False(t, anon.Can(p), "anonymous must not hold %s", p)
	}
	assert.False(t, anon.CanModify(rbac.RoleUser))
}

// TestPurpose: Validates that Check is exactly HasPermission for authenticated actors and audits denials.
// Scope: Unit Test
// Security: Access control decision integrity
// Permissions: all
// Expected: Allowed matches the role table; every denial produces one access_denied event.
// Test Case ID: AZ-02
func TestAuthz_Check_MatchesPermissionTable(t *testing.T) {
	svc, log := newService()
	ctx := context.Background()

	denials := 0
	for _, role := range rbac.Roles() {
		actor := authz.NewActor("user_"+string(role), string(role))
		for _, perm := range rbac.AllPermissions() {
			d := svc.Check(ctx, actor, perm)
			assert.Equal(t, rbac.HasPermission(role, perm), d.Allowed, "%s/%s", role, perm)
			if !d.Allowed {
				denials++
				assert.Equal(t, authz.ReasonMissingPerm, d.Reason)
				assert.ErrorIs(t, d.Err(), authz.ErrForbidden)
			} else {
				assert.NoError(t, d.Err())
			}
		}
	}
	assert.Len(t, log.OfType(audit.TypeAccessDenied), denials)
}

// TestPurpose: Validates that unauthenticated actors are denied with a distinct reason.
// Scope: Unit Test
// Security: Authentication precedes authorization
// Expected: ErrUnauthenticated is returned, not ErrForbidden.
// Test Case ID: AZ-03
func TestAuthz_Authorize_Unauthenticated(t *testing.T) {
	svc, _ := newService()
	err := svc.Authorize(context.Background(), authz.Anonymous(), rbac.PermViewAdmin)
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
	assert.NotErrorIs(t, err, authz.ErrForbidden)
}

// TestPurpose: Validates that Guard evaluates exactly one branch.
// Scope: Unit Test
// Security: Protected content is never produced for denied actors
// Expected: The protected branch runs only when allowed; the denied branch runs otherwise.
// Test Case ID: AZ-04
func TestAuthz_Guard_EvaluatesExactlyOneBranch(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	for _, role := range rbac.Roles() {
		protectedCalls, deniedCalls := 0, 0
		actor := authz.NewActor("u", string(role))
		got := authz.Guard(ctx, svc, actor, rbac.PermManageServices,
			func() string { protectedCalls++; return "protected" },
			func() string { deniedCalls++; return "denied" },
		)

		assert.Equal(t, 1, protectedCalls+deniedCalls)
		if rbac.HasPermission(role, rbac.PermManageServices) {
			assert.Equal(t, "protected", got)
		} else {
			assert.Equal(t, "denied", got)
			assert.Zero(t, protectedCalls)
		}
	}
}

// TestPurpose: Validates that a role change is observed on the next check.
// Scope: Unit Test
// Security: No cached decisions after demotion
// Expected: The same actor id is allowed as admin and denied once demoted to developer.
// Test Case ID: AZ-05
func TestAuthz_Check_NoCachingAcrossRoleChange(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	assert.True(t, svc.Check(ctx, authz.NewActor("u1", "admin"), rbac.PermManageUsers).Allowed)
	assert.False(t, svc.Check(ctx, authz.NewActor("u1", "developer"), rbac.PermManageUsers).Allowed)
}

// TestPurpose: Validates the hierarchy check used before modifying another user.
// Scope: Unit Test
// Security: Vertical privilege escalation
// Expected: Admin may not modify admin or superadmin; superadmin may modify anyone.
// Test Case ID: AZ-06
func TestAuthz_AuthorizeModify(t *testing.T) {
	svc, log := newService()
	ctx := context.Background()

	admin := authz.NewActor("a", "admin")
	assert.NoError(t, svc.AuthorizeModify(ctx, admin, rbac.RoleDeveloper))
	assert.ErrorIs(t, svc.AuthorizeModify(ctx, admin, rbac.RoleAdmin), authz.ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizeModify(ctx, admin, rbac.RoleSuperadmin), authz.ErrForbidden)

	super := authz.NewActor("s", "superadmin")
	assert.NoError(t, svc.AuthorizeModify(ctx, super, rbac.RoleSuperadmin))

	events := log.OfType(audit.TypeAccessDenied)
	require.Len(t, events, 2)
	assert.Equal(t, authz.ReasonRank, events[0].Metadata[audit.AttrReason])
}

// TestPurpose: Validates the admin page gating table, including nested paths.
// Scope: Unit Test
// Permissions: view_admin, manage_services, manage_users
// Expected: Each section maps to its permission; unrelated paths are not gated.
// Test Case ID: AZ-07
func TestAuthz_PagePermission(t *testing.T) {
	tests := []struct {
		path  string
		perm  rbac.Permission
		gated bool
	}{
		{"/admin", rbac.PermViewAdmin, true},
		{"/admin/", rbac.PermViewAdmin, true},
		{"/admin/services", rbac.PermManageServices, true},
		{"/admin/services/new", rbac.PermManageServices, true},
		{"/admin/users/42", rbac.PermManageUsers, true},
		{"/admin/unknown", rbac.PermViewAdmin, true},
		{"/administrator", "", false},
		{"/blog", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			perm, gated := authz.PagePermission(tt.path)
			assert.Equal(t, tt.gated, gated)
			assert.Equal(t, tt.perm, perm)
		})
	}
}
