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

package authz

import "github.com/lexguard/lexguard/internal/rbac"

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	ID            string
	Role          rbac.Role
	Authenticated bool
}

// Anonymous returns the actor used when no valid session is present.
func Anonymous() Actor {
	return Actor{Role: rbac.LowestRole}
}

// NewActor builds an authenticated actor, coercing the raw role string
// reported by the identity provider into the role enum.
func NewActor(id, rawRole string) Actor {
	if id == "" {
		return Anonymous()
	}
	return Actor{ID: id, Role: rbac.ParseRole(rawRole), Authenticated: true}
}

// Can reports whether the actor holds perm. Unauthenticated actors hold nothing.
func (a Actor) Can(perm rbac.Permission) bool {
	return a.Authenticated && rbac.HasPermission(a.Role, perm)
}

// CanModify reports whether the actor outranks a user holding target.
func (a Actor) CanModify(target rbac.Role) bool {
	return a.Authenticated && rbac.CanModify(a.Role, target)
}
