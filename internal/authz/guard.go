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
	"context"

	"github.com/lexguard/lexguard/internal/rbac"
)

// Guard evaluates exactly one of protected or denied depending on whether
// actor holds perm, and returns its result.
func Guard[T any](ctx context.Context, s *Service, actor Actor, perm rbac.Permission, protected, denied func() T) T {
	if s.Check(ctx, actor, perm).Allowed {
		return protected()
	}
	return denied()
}
