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

// Package rbac holds the role taxonomy of the admin panel: the closed set of
// roles, their rank in the hierarchy and the permissions each role carries.
//
// Everything in this package is a process-wide constant. Tables are built at
// package initialisation and are never mutated afterwards; accessors hand out
// copies.
package rbac

import (
	"errors"
	"strings"
)

// ErrInvalidRole is returned by ValidateRole for values outside the enum.
var ErrInvalidRole = errors.New("invalid role")

// Role is an authority level assigned to an actor.
type Role string

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names stored in identity provider metadata and in
// the database.
// -----------------------------------------------------------------------------

const (
	// RoleUser is a signed-in visitor with no admin capabilities.
	// Rank: 0
	RoleUser Role = "user"

	// RoleContentCreator writes and edits blog content.
	// Rank: 1
	RoleContentCreator Role = "content_creator"

	// RoleDeveloper maintains services, attorneys and site settings.
	// Rank: 2
	RoleDeveloper Role = "developer"

	// RoleAdmin manages users and invitations.
	// Rank: 3
	RoleAdmin Role = "admin"

	// RoleSuperadmin holds every permission and may modify any role.
	// Rank: 4
	RoleSuperadmin Role = "superadmin"
)

const (
	// TopRole is the highest-ranked role.
	TopRole = RoleSuperadmin

	// LowestRole is what unknown or missing role values degrade to.
	LowestRole = RoleUser
)

// roleRanks is the total order over roles. Higher rank means more authority.
var roleRanks = map[Role]int{
	RoleUser:           0,
	RoleContentCreator: 1,
	RoleDeveloper:      2,
	RoleAdmin:          3,
	RoleSuperadmin:     4,
}

var displayNames = map[Role]string{
	RoleUser:           "User",
	RoleContentCreator: "Content Creator",
	RoleDeveloper:      "Developer",
	RoleAdmin:          "Admin",
	RoleSuperadmin:     "Super Admin",
}

// orderedRoles lists roles by ascending rank.
var orderedRoles = []Role{
	RoleUser,
	RoleContentCreator,
	RoleDeveloper,
	RoleAdmin,
	RoleSuperadmin,
}

// Roles returns every role ordered by ascending rank.
func Roles() []Role {
	out := make([]Role, len(orderedRoles))
	copy(out, orderedRoles)
	return out
}

// IsValid reports whether r is a member of the enum.
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// String returns the canonical role name.
func (r Role) String() string {
	return string(r)
}

// RankOf returns the hierarchy rank of a role.
// Values outside the enum rank below every role.
func RankOf(r Role) int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return -1
}

// DisplayName returns a human readable label for a role.
func DisplayName(r Role) string {
	if name, ok := displayNames[r]; ok {
		return name
	}
	return displayNames[LowestRole]
}

// ParseRole coerces a role string received from an external system into the
// enum. Matching ignores case and treats '-' and ' ' like '_', so "SUPERADMIN",
// "Content-Creator" and "content creator" are all recognised. Anything else
// degrades to LowestRole.
func ParseRole(s string) Role {
	r := normalize(s)
	if r.IsValid() {
		return r
	}
	return LowestRole
}

// ValidateRole is the strict counterpart of ParseRole used for admin input,
// where an unknown role is a caller mistake rather than untrusted data.
func ValidateRole(s string) (Role, error) {
	r := normalize(s)
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func normalize(s string) Role {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "super_admin":
		s = string(RoleSuperadmin)
	case "contentcreator":
		s = string(RoleContentCreator)
	}
	return Role(s)
}
