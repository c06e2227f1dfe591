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
	"strings"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/rbac"
)

// Signup describes an account that was just created at the identity provider.
type Signup struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// ProvisionIdentity records a signup in the local directory with role. When
// the directory is the identity provider itself there is nothing to record
// and (nil, nil) is returned.
func (s *Service) ProvisionIdentity(ctx context.Context, signup Signup, role rbac.Role) (*User, error) {
	p, ok := s.dir.(Provisioner)
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(signup.ID) == "" || strings.TrimSpace(signup.Email) == "" {
		return nil, fmt.Errorf("%w: signup requires id and email", ErrInvalidInput)
	}
	if !role.IsValid() {
		role = rbac.LowestRole
	}

	user, err := p.ProvisionUser(ctx, &User{
		ID:        signup.ID,
		Email:     strings.ToLower(strings.TrimSpace(signup.Email)),
		FirstName: signup.FirstName,
		LastName:  signup.LastName,
		Role:      role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserProvisioned,
		ActorID:  audit.ActorIdentityWebhook,
		Resource: audit.ResourceUser,
		TargetID: user.ID,
		Metadata: map[string]any{
			audit.AttrEmail: user.Email,
			audit.AttrRole:  string(user.Role),
		},
	})
	slog.InfoContext(ctx, "user provisioned",
		logger.UserID(user.ID),
		logger.Role(string(user.Role)),
	)
	return user, nil
}
