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
	"errors"
	"fmt"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/rbac"
)

var (
	// ErrForbidden is returned when the actor lacks a permission or rank.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when an operation requires a session.
	ErrUnauthenticated = errors.New("authentication required")
)

// Denial reasons
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonMissingPerm     = "missing_permission"
	ReasonRank            = "insufficient_rank"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed    bool
	Actor      Actor
	Permission rbac.Permission
	Reason     string
}

// Err converts a denial into an error wrapping ErrForbidden or ErrUnauthenticated.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonUnauthenticated {
		return fmt.Errorf("%w: %s", ErrUnauthenticated, d.Permission)
	}
	return fmt.Errorf("%w: %s requires %s", ErrForbidden, d.Actor.Role, d.Permission)
}

// Service evaluates permission checks. It holds no per-actor state; every
// call recomputes the decision from the actor's current role.
type Service struct {
	auditLogger audit.Logger
	metrics     *metrics.Instruments
}

// NewService creates a new authorization service
func NewService(auditLogger audit.Logger, instruments *metrics.Instruments) *Service {
	return &Service{
		auditLogger: auditLogger,
		metrics:     instruments,
	}
}

// Check decides whether actor holds perm. Denials are audited.
func (s *Service) Check(ctx context.Context, actor Actor, perm rbac.Permission) Decision {
	d := Decision{Actor: actor, Permission: perm}
	switch {
	case !actor.Authenticated:
		d.Reason = ReasonUnauthenticated
	case !rbac.HasPermission(actor.Role, perm):
		d.Reason = ReasonMissingPerm
	default:
		d.Allowed = true
	}

	s.metrics.AddDecision(ctx, string(perm), d.Allowed)
	if !d.Allowed {
		s.logDenial(ctx, actor, string(perm), d.Reason)
	}
	return d
}

// Authorize is Check for service code: nil when allowed, a wrapped sentinel otherwise.
func (s *Service) Authorize(ctx context.Context, actor Actor, perm rbac.Permission) error {
	return s.Check(ctx, actor, perm).Err()
}

// AuthorizeModify requires that actor outranks a user holding target.
func (s *Service) AuthorizeModify(ctx context.Context, actor Actor, target rbac.Role) error {
	if actor.CanModify(target) {
		return nil
	}
	s.logDenial(ctx, actor, "modify:"+string(target), ReasonRank)
	return fmt.Errorf("%w: %s cannot modify %s", ErrForbidden, actor.Role, target)
}

func (s *Service) logDenial(ctx context.Context, actor Actor, what, reason string) {
	if s.auditLogger == nil {
		return
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeAccessDenied,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Resource:  what,
		Metadata: map[string]any{
			audit.AttrPermission: what,
			audit.AttrReason:     reason,
		},
	})
}
