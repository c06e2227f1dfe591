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

// CanModify reports whether an actor holding actor may change the role of,
// or otherwise edit, a user currently holding target.
//
// The top role may modify anyone, itself included. Every other role may only
// modify strictly lower ranks, so peers and superiors are out of reach.
func CanModify(actor, target Role) bool {
	if actor == TopRole {
		return true
	}
	if !actor.IsValid() {
		return false
	}
	return RankOf(actor) > RankOf(target)
}

// AssignableRoles returns the roles an actor may grant, by ascending rank.
func AssignableRoles(actor Role) []Role {
	var out []Role
	for _, r := range orderedRoles {
		if CanModify(actor, r) {
			out = append(out, r)
		}
	}
	return out
}
