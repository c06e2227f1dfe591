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

package rbac_test

import (
	"testing"

	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that rank, permissions and display name are defined for every role.
// Scope: Unit Test
// Security: Totality of the role taxonomy (no role without a decision)
// Expected: Ranks are distinct, ascending in Roles() order, and every display name is non-empty.
// Test Case ID: RBAC-01
func TestRBAC_Taxonomy_IsTotal(t *testing.T) {
	roles := rbac.Roles()
	require.Len(t, roles, 5)

	seen := map[int]bool{}
	prev := -1
	for _, r := range roles {
		rank := rbac.RankOf(r)
		assert.GreaterOrEqual(t, rank, 0, "role %s must have a rank", r)
		assert.False(t, seen[rank], "rank %d assigned twice", rank)
		seen[rank] = true
		assert.Greater(t, rank, prev, "Roles() must be ordered by rank")
		prev = rank

		assert.NotNil(t, rbac.PermissionsOf(r))
		assert.NotEmpty(t, rbac.DisplayName(r))
	}

	assert.Equal(t, rbac.RoleSuperadmin, roles[len(roles)-1])
	assert.Equal(t, 4, rbac.RankOf(rbac.RoleSuperadmin))
	assert.Equal(t, 3, rbac.RankOf(rbac.RoleAdmin))
	assert.Empty(t, rbac.PermissionsOf(rbac.RoleUser))
}

// TestPurpose: Validates that HasPermission is exactly set membership over PermissionsOf, including unknown permissions.
// Scope: Unit Test
// Security: Default-deny for undefined permissions
// Expected: Membership matches for all roles; unknown permissions and roles are denied without panicking.
// Test Case ID: RBAC-02
func TestRBAC_HasPermission_MatchesPermissionSet(t *testing.T) {
	candidates := append(rbac.AllPermissions(), "delete_everything", "", "*")

	for _, r := range rbac.Roles() {
		set := map[rbac.Permission]bool{}
		for _, p := range rbac.PermissionsOf(r) {
			set[p] = true
		}
		for _, p := range candidates {
			assert.Equal(t, set[p], rbac.HasPermission(r, p), "role=%s perm=%s", r, p)
		}
	}

	for _, r := range rbac.Roles() {
		assert.False(t, rbac.HasPermission(r, "*"), "wildcard must not be honoured")
		assert.False(t, rbac.HasPermission(r, "delete_everything"))
	}
	assert.False(t, rbac.HasPermission("ghost", rbac.PermViewAdmin))
}

// TestPurpose: Validates the permission table for representative role/permission pairs.
// Scope: Unit Test
// Permissions: manage_services, manage_users, manage_invitations, edit_content
// Expected: Each role holds exactly the capabilities of the admin panel it is meant to reach.
// Test Case ID: RBAC-03
func TestRBAC_PermissionTable(t *testing.T) {
	tests := []struct {
		role     rbac.Role
		perm     rbac.Permission
		expected bool
	}{
		{rbac.RoleUser, rbac.PermViewAdmin, false},
		{rbac.RoleUser, rbac.PermManageServices, false},
		{rbac.RoleContentCreator, rbac.PermEditContent, true},
		{rbac.RoleContentCreator, rbac.PermDeleteContent, false},
		{rbac.RoleDeveloper, rbac.PermManageServices, true},
		{rbac.RoleDeveloper, rbac.PermManageUsers, false},
		{rbac.RoleAdmin, rbac.PermManageInvitations, true},
		{rbac.RoleAdmin, rbac.PermPublishContent, true},
		{rbac.RoleSuperadmin, rbac.PermManageSettings, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := rbac.HasPermission(tt.role, tt.perm); got != tt.expected {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.expected)
			}
		})
	}

	assert.ElementsMatch(t, rbac.AllPermissions(), rbac.PermissionsOf(rbac.RoleSuperadmin))
}

// TestPurpose: Validates that accessors return copies so the process-wide tables cannot be mutated.
// Scope: Unit Test
// Security: Immutability of the permission map
// Expected: Mutating a returned slice does not change later results.
// Test Case ID: RBAC-04
func TestRBAC_Accessors_ReturnCopies(t *testing.T) {
	perms := rbac.PermissionsOf(rbac.RoleAdmin)
	require.NotEmpty(t, perms)
	perms[0] = "hijacked"
	assert.NotContains(t, rbac.PermissionsOf(rbac.RoleAdmin), rbac.Permission("hijacked"))

	roles := rbac.Roles()
	roles[0] = rbac.RoleSuperadmin
	assert.Equal(t, rbac.RoleUser, rbac.Roles()[0])
}

// TestPurpose: Validates that role strings from the identity provider are coerced into the enum.
// Scope: Unit Test
// Security: Fail-safe default-deny on untrusted role values
// Expected: Known spellings map to their role; unknown or empty values map to the lowest role.
// Test Case ID: RBAC-05
func TestRBAC_ParseRole_CoercesUnknownToLowest(t *testing.T) {
	tests := map[string]rbac.Role{
		"superadmin":      rbac.RoleSuperadmin,
		"SUPERADMIN":      rbac.RoleSuperadmin,
		"super_admin":     rbac.RoleSuperadmin,
		"Admin":           rbac.RoleAdmin,
		"CONTENT_CREATOR": rbac.RoleContentCreator,
		"content-creator": rbac.RoleContentCreator,
		" developer ":     rbac.RoleDeveloper,
		"user":            rbac.RoleUser,
		"":                rbac.RoleUser,
		"root":            rbac.RoleUser,
		"admin; drop":     rbac.RoleUser,
	}
	for in, want := range tests {
		assert.Equal(t, want, rbac.ParseRole(in), "ParseRole(%q)", in)
	}

	_, err := rbac.ValidateRole("root")
	assert.ErrorIs(t, err, rbac.ErrInvalidRole)
	r, err := rbac.ValidateRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, r)
}

// TestPurpose: Validates the hierarchy comparator for every role pair.
// Scope: Unit Test
// Security: Vertical privilege escalation (peers and superiors cannot be modified)
// Expected: CanModify(a, b) iff a is the top role or rank(a) > rank(b).
// Test Case ID: RBAC-06
func TestRBAC_CanModify_AllPairs(t *testing.T) {
	for _, a := range rbac.Roles() {
		for _, b := range rbac.Roles() {
			want := a == rbac.TopRole || rbac.RankOf(a) > rbac.RankOf(b)
			assert.Equal(t, want, rbac.CanModify(a, b), "CanModify(%s, %s)", a, b)
		}
		if a != rbac.TopRole {
			assert.False(t, rbac.CanModify(a, a), "%s must not modify a peer", a)
		}
		assert.True(t, rbac.CanModify(rbac.TopRole, a))
	}

	assert.False(t, rbac.CanModify(rbac.RoleAdmin, rbac.RoleSuperadmin))
	assert.False(t, rbac.CanModify("ghost", rbac.RoleUser))
}

// TestPurpose: Validates the list of roles an actor may grant.
// Scope: Unit Test
// Expected: Superadmin may grant every role; admin only strictly lower roles; user none.
// Test Case ID: RBAC-07
func TestRBAC_AssignableRoles(t *testing.T) {
	assert.Equal(t, rbac.Roles(), rbac.AssignableRoles(rbac.RoleSuperadmin))
	assert.Equal(t, []rbac.Role{rbac.RoleUser, rbac.RoleContentCreator, rbac.RoleDeveloper},
		rbac.AssignableRoles(rbac.RoleAdmin))
	assert.Empty(t, rbac.AssignableRoles(rbac.RoleUser))
}
