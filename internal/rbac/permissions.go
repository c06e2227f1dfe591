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

package rbac

import "sort"

// Permission names a capability gating an admin action.
type Permission string

const (
	PermViewAdmin         Permission = "view_admin"
	PermCreateContent     Permission = "create_content"
	PermEditContent       Permission = "edit_content"
	PermDeleteContent     Permission = "delete_content"
	PermPublishContent    Permission = "publish_content"
	PermManageServices    Permission = "manage_services"
	PermManageAttorneys   Permission = "manage_attorneys"
	PermViewUsers         Permission = "view_users"
	PermManageUsers       Permission = "manage_users"
	PermManageInvitations Permission = "manage_invitations"
	PermManageSettings    Permission = "manage_settings"
)

// -----------------------------------------------------------------------------
// Role Permission Mappings
// There is deliberately no wildcard: superadmin lists every permission so that
// a permission nobody defined is denied for every role.
// -----------------------------------------------------------------------------

var contentCreatorPermissions = []Permission{
	PermViewAdmin,
	PermCreateContent,
	PermEditContent,
}

var developerPermissions = append(append([]Permission{}, contentCreatorPermissions...),
	PermDeleteContent,
	PermManageServices,
	PermManageAttorneys,
	PermViewUsers,
	PermManageSettings,
)

var adminPermissions = append(append([]Permission{}, developerPermissions...),
	PermPublishContent,
	PermManageUsers,
	PermManageInvitations,
)

var superadminPermissions = []Permission{
	PermViewAdmin,
	PermCreateContent,
	PermEditContent,
	PermDeleteContent,
	PermPublishContent,
	PermManageServices,
	PermManageAttorneys,
	PermViewUsers,
	PermManageUsers,
	PermManageInvitations,
	PermManageSettings,
}

// rolePermissions is total over the enum; user has an empty set.
var rolePermissions = buildPermissionSets(map[Role][]Permission{
	RoleUser:           nil,
	RoleContentCreator: contentCreatorPermissions,
	RoleDeveloper:      developerPermissions,
	RoleAdmin:          adminPermissions,
	RoleSuperadmin:     superadminPermissions,
})

func buildPermissionSets(src map[Role][]Permission) map[Role]map[Permission]struct{} {
	out := make(map[Role]map[Permission]struct{}, len(src))
	for role, perms := range src {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		out[role] = set
	}
	return out
}

// AllPermissions returns every defined permission, sorted.
func AllPermissions() []Permission {
	return sortedCopy(superadminPermissions)
}

// PermissionsOf returns the permission set of a role, sorted by name.
// The result is a fresh slice; an unknown role yields an empty slice.
func PermissionsOf(r Role) []Permission {
	set := rolePermissions[r]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasPermission reports whether the role carries the permission.
func HasPermission(r Role, p Permission) bool {
	_, ok := rolePermissions[r][p]
	return ok
}

func sortedCopy(in []Permission) []Permission {
	out := make([]Permission, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
