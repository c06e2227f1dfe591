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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/observability/tracing"
	"github.com/lexguard/lexguard/internal/rbac"
	"go.opentelemetry.io/otel/attribute"
)

// Options toggles policy that is off by default.
type Options struct {
	// ProtectLastSuperadmin rejects demoting the only remaining superadmin.
	ProtectLastSuperadmin bool
}

// Service provides user role management
type Service struct {
	dir         UserDirectory
	authz       *authz.Service
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	validate    *validator.Validate
	opts        Options
}

// NewService creates a new identity service
func NewService(
	dir UserDirectory,
	authzService *authz.Service,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
	opts Options,
) *Service {
	return &Service{
		dir:         dir,
		authz:       authzService,
		auditLogger: auditLogger,
		metrics:     instruments,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		opts:        opts,
	}
}

// GetUser retrieves a user by ID. Requires view_users.
func (s *Service) GetUser(ctx context.Context, actor authz.Actor, userID string) (*User, error) {
	if err := s.authz.Authorize(ctx, actor, rbac.PermViewUsers); err != nil {
		return nil, err
	}
	return s.dir.GetUser(ctx, userID)
}

// UpdateUserRole changes the role of another user.
//
// The target's current role is read from the directory, never from the
// request. The actor must outrank both the current role and the new one,
// except the top role which may modify anyone.
func (s *Service) UpdateUserRole(ctx context.Context, actor authz.Actor, in UpdateRoleInput) (_ *User, err error) {
	ctx, span := tracing.Start(ctx, "identity.UpdateUserRole",
		attribute.String("user.id", in.UserID),
		attribute.String("actor.role", string(actor.Role)),
	)
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, actor, rbac.PermManageUsers); err != nil {
		s.metrics.AddRoleChange(ctx, "forbidden")
		return nil, err
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	newRole, err := rbac.ValidateRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	target, err := s.dir.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.authz.AuthorizeModify(ctx, actor, target.Role); err != nil {
		s.reject(ctx, actor, target, newRole, "target_outranks_actor")
		return nil, err
	}
	if err := s.authz.AuthorizeModify(ctx, actor, newRole); err != nil {
		s.reject(ctx, actor, target, newRole, "role_not_grantable")
		return nil, err
	}

	if s.opts.ProtectLastSuperadmin && target.Role == rbac.TopRole && newRole != rbac.TopRole {
		n, err := s.dir.CountUsersByRole(ctx, rbac.TopRole)
		if err != nil {
			return nil, fmt.Errorf("failed to count superadmins: %w", err)
		}
		if n <= 1 {
			s.reject(ctx, actor, target, newRole, "last_superadmin")
			return nil, ErrLastSuperadmin
		}
	}

	updated, err := s.dir.UpdateUserRole(ctx, target.ID, newRole, in.Department)
	if err != nil {
		s.metrics.AddRoleChange(ctx, "error")
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.metrics.AddRoleChange(ctx, "success")
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeRoleChanged,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Resource:  audit.ResourceUser,
		TargetID:  target.ID,
		Metadata: map[string]any{
			audit.AttrPreviousRole: string(target.Role),
			audit.AttrRole:         string(newRole),
		},
	})
	slog.InfoContext(ctx, "user role changed",
		logger.ActorID(actor.ID),
		logger.UserID(target.ID),
		logger.Role(string(newRole)),
	)

	return updated, nil
}

func (s *Service) reject(ctx context.Context, actor authz.Actor, target *User, newRole rbac.Role, reason string) {
	s.metrics.AddRoleChange(ctx, "rejected")
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeRoleChangeRejected,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Resource:  audit.ResourceUser,
		TargetID:  target.ID,
		Metadata: map[string]any{
			audit.AttrPreviousRole: string(target.Role),
			audit.AttrRole:         string(newRole),
			audit.AttrReason:       reason,
		},
	})
}

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
