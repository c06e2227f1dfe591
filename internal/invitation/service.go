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

package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/observability/tracing"
	"github.com/lexguard/lexguard/internal/rbac"
	"go.opentelemetry.io/otel/attribute"
)

// Listing bounds
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// CreateInput is an admin request to invite someone.
type CreateInput struct {
	EmailAddress string `validate:"required,email,max=254"`
	Role         string `validate:"required"`
	RedirectURL  string `validate:"omitempty,http_url"`
}

// Service applies authorization and lifecycle rules on top of a Provider.
type Service struct {
	provider    Provider
	recorder    AcceptanceRecorder
	authz       *authz.Service
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	validate    *validator.Validate
}

// NewService creates a new invitation service. When the provider also
// implements AcceptanceRecorder, acceptances reported by webhook are recorded
// through it.
func NewService(
	provider Provider,
	authzService *authz.Service,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
) *Service {
	s := &Service{
		provider:    provider,
		authz:       authzService,
		auditLogger: auditLogger,
		metrics:     instruments,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	if r, ok := provider.(AcceptanceRecorder); ok {
		s.recorder = r
	}
	return s
}

// Create issues a pending invitation.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (_ *Invitation, err error) {
	ctx, span := tracing.Start(ctx, "invitation.Create", attribute.String("actor.role", string(actor.Role)))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, actor, rbac.PermManageInvitations); err != nil {
		return nil, err
	}

	in.EmailAddress = strings.ToLower(strings.TrimSpace(in.EmailAddress))
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	role, err := rbac.ValidateRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.authz.AuthorizeModify(ctx, actor, role); err != nil {
		return nil, err
	}

	if err := s.ensureNoPending(ctx, in.EmailAddress); err != nil {
		return nil, err
	}

	inv, err := s.provider.Create(ctx, CreateParams{
		EmailAddress: in.EmailAddress,
		Role:         role,
		InvitedBy:    actor.ID,
		RedirectURL:  in.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.metrics.AddInvitationCreated(ctx, string(role))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeInvitationCreated,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Resource:  audit.ResourceInvitation,
		TargetID:  inv.ID,
		Metadata: map[string]any{
			audit.AttrEmail: inv.EmailAddress,
			audit.AttrRole:  string(inv.Role),
		},
	})

	return inv, nil
}

func (s *Service) ensureNoPending(ctx context.Context, email string) error {
	pending := StatusPending
	existing, err := ListAll(ctx, s.provider, Filter{Status: &pending})
	if err != nil {
		return fmt.Errorf("failed to check pending invitations: %w", err)
	}
	for _, inv := range existing {
		if strings.EqualFold(inv.EmailAddress, email) {
			return ErrDuplicatePending
		}
	}
	return nil
}

// Revoke moves a pending invitation to revoked. Revoking an invitation that
// is already accepted or revoked fails with the matching conflict error.
func (s *Service) Revoke(ctx context.Context, actor authz.Actor, id string) (_ *Invitation, err error) {
	ctx, span := tracing.Start(ctx, "invitation.Revoke", attribute.String("invitation.id", id))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, actor, rbac.PermManageInvitations); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}

	inv, err := s.provider.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeModify(ctx, actor, inv.Role); err != nil {
		return nil, err
	}
	if err := Transition(inv.Status, StatusRevoked); err != nil {
		return nil, err
	}

	if err := s.provider.Revoke(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to revoke invitation: %w", err)
	}

	revoked := inv.Clone()
	revoked.Status = StatusRevoked

	s.metrics.AddInvitationRevoked(ctx)
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeInvitationRevoked,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Resource:  audit.ResourceInvitation,
		TargetID:  id,
		Metadata: map[string]any{
			audit.AttrEmail: inv.EmailAddress,
			audit.AttrRole:  string(inv.Role),
		},
	})

	return revoked, nil
}

// List reads invitations from the provider. Nothing is cached.
func (s *Service) List(ctx context.Context, actor authz.Actor, f Filter) ([]*Invitation, error) {
	if err := s.authz.Authorize(ctx, actor, rbac.PermManageInvitations); err != nil {
		return nil, err
	}
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.provider.List(ctx, f)
}

// Get returns one invitation.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*Invitation, error) {
	if err := s.authz.Authorize(ctx, actor, rbac.PermManageInvitations); err != nil {
		return nil, err
	}
	return s.provider.Get(ctx, id)
}

// RecordAcceptance reflects a completed signup reported by the identity
// provider and returns the invitation the signup redeemed. Providers that
// track acceptance themselves need nothing recorded, and a signup without
// an invitation is not an error. A redelivered signup returns the
// invitation it already accepted without auditing it again.
func (s *Service) RecordAcceptance(ctx context.Context, email string) (*Invitation, error) {
	if s.recorder == nil {
		return nil, nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	inv, accepted, err := s.recorder.MarkAccepted(ctx, email)
	if errors.Is(err, ErrNotFound) {
		slog.DebugContext(ctx, "signup without invitation", logger.Email(email))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record acceptance: %w", err)
	}
	if !accepted {
		return inv, nil
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeInvitationAccepted,
		ActorID:  audit.ActorIdentityWebhook,
		Resource: audit.ResourceInvitation,
		TargetID: inv.ID,
		Metadata: map[string]any{
			audit.AttrEmail: inv.EmailAddress,
			audit.AttrRole:  string(inv.Role),
		},
	})
	return inv, nil
}

// NewView returns a last-request-wins view over the invitations actor may list.
func (s *Service) NewView(actor authz.Actor, f Filter) *View {
	return NewView(func(ctx context.Context) ([]*Invitation, error) {
		return s.List(ctx, actor, f)
	})
}

// ListAll reads every invitation matching f, MaxListLimit at a time, until
// the provider returns a short page. f's Limit and Offset are ignored.
func ListAll(ctx context.Context, provider Provider, f Filter) ([]*Invitation, error) {
	var all []*Invitation
	f.Limit = MaxListLimit
	for f.Offset = 0; ; f.Offset += MaxListLimit {
		page, err := provider.List(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < MaxListLimit {
			return all, nil
		}
	}
}

func normalizeFilter(f Filter) (Filter, error) {
	if f.Status != nil {
		if _, err := ParseStatus(string(*f.Status)); err != nil {
			return f, err
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return f, fmt.Errorf("%w: limit and offset must not be negative", ErrValidation)
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f, nil
}
