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
	"fmt"
	"log/slog"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/rbac"
)

// BootstrapService promotes the configured owner account to superadmin
// on a fresh installation.
type BootstrapService struct {
	dir         UserDirectory
	auditLogger audit.Logger
	email       string
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(dir UserDirectory, auditLogger audit.Logger, email string) *BootstrapService {
	return &BootstrapService{
		dir:         dir,
		auditLogger: auditLogger,
		email:       email,
	}
}

// Bootstrap promotes the configured user when no superadmin exists yet.
// It is a no-op without a configured email or once any superadmin exists.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	if s.email == "" {
		return nil
	}

	n, err := s.dir.CountUsersByRole(ctx, rbac.TopRole)
	if err != nil {
		return fmt.Errorf("failed to check for existing superadmin: %w", err)
	}
	if n > 0 {
		return nil
	}

	user, err := s.dir.GetUserByEmail(ctx, s.email)
	if err != nil {
		return fmt.Errorf("bootstrap user %s: %w", s.email, err)
	}

	if _, err := s.dir.UpdateUserRole(ctx, user.ID, rbac.TopRole, nil); err != nil {
		return fmt.Errorf("failed to grant superadmin during bootstrap: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSuperadminBootstrap,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: audit.ResourceUser,
		TargetID: user.ID,
		Metadata: map[string]any{
			audit.AttrEmail:        s.email,
			audit.AttrPreviousRole: string(user.Role),
		},
	})

	slog.InfoContext(ctx, "bootstrapped initial superadmin", logger.Email(s.email), logger.UserID(user.ID))
	return nil
}
