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

import (
	"sort"
	"strings"

	"github.com/lexguard/lexguard/internal/rbac"
)

// Admin page gating table.
var adminPages = map[string]rbac.Permission{
	"/admin":             rbac.PermViewAdmin,
	"/admin/blog":        rbac.PermEditContent,
	"/admin/services":    rbac.PermManageServices,
	"/admin/attorneys":   rbac.PermManageAttorneys,
	"/admin/users":       rbac.PermManageUsers,
	"/admin/invitations": rbac.PermManageInvitations,
	"/admin/settings":    rbac.PermManageSettings,
}

// AdminPages returns the gated admin page prefixes, longest first.
func AdminPages() []string {
	out := make([]string, 0, len(adminPages))
	for p := range adminPages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// PagePermission returns the permission gating an admin page path. Nested
// paths inherit the permission of their section; anything else under /admin
// falls back to view_admin.
func PagePermission(path string) (rbac.Permission, bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "", false
	}
	for _, prefix := range AdminPages() {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return adminPages[prefix], true
		}
	}
	return "", false
}
