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
	"context"

	"github.com/lexguard/lexguard/internal/authz"
)

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the request's actor.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor resolved for the request, or the anonymous
// actor when none was resolved.
func ActorFrom(ctx context.Context) authz.Actor {
	if actor, ok := ctx.Value(actorKey).(authz.Actor); ok {
		return actor
	}
	return authz.Anonymous()
}
