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

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/observability/tracing"
	"github.com/lexguard/lexguard/internal/rbac"
	"go.opentelemetry.io/otel/attribute"
)

// ErrMalformedPayload is returned for bodies that are not a valid event.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Outcome describes what happened to a verified delivery.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// AcceptanceRecorder marks the pending invitation of an address accepted.
type AcceptanceRecorder interface {
	RecordAcceptance(ctx context.Context, email string) (*invitation.Invitation, error)
}

// IdentityProvisioner records a new account locally.
type IdentityProvisioner interface {
	ProvisionIdentity(ctx context.Context, signup identity.Signup, role rbac.Role) (*identity.User, error)
}

// Processor verifies, deduplicates and dispatches deliveries.
type Processor struct {
	verifier    *Verifier
	deduper     *Deduper
	invitations AcceptanceRecorder
	identities  IdentityProvisioner
	auditLogger audit.Logger
}

// NewProcessor creates a processor. deduper and identities may be nil.
func NewProcessor(
	verifier *Verifier,
	deduper *Deduper,
	invitations AcceptanceRecorder,
	identities IdentityProvisioner,
	auditLogger audit.Logger,
) *Processor {
	return &Processor{
		verifier:    verifier,
		deduper:     deduper,
		invitations: invitations,
		identities:  identities,
		auditLogger: auditLogger,
	}
}

// Handle processes one delivery. Verification errors wrap ErrMissingHeaders,
// ErrInvalidTimestamp or ErrInvalidSignature. If dispatch fails the message
// id is released so the provider's retry is processed.
func (p *Processor) Handle(ctx context.Context, h http.Header, body []byte) (Outcome, error) {
	msgID, err := p.verifier.Verify(h, body)
	if err != nil {
		return "", err
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil || evt.Type == "" {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if p.deduper != nil {
		first, err := p.deduper.Claim(ctx, msgID)
		if err != nil {
			return "", err
		}
		if !first {
			slog.InfoContext(ctx, "duplicate webhook delivery", logger.Component("webhook"), slog.String("webhook_id", msgID))
			return OutcomeDuplicate, nil
		}
	}

	p.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeWebhookReceived,
		ActorID:  audit.ActorIdentityWebhook,
		TargetID: msgID,
		Metadata: map[string]any{"event_type": evt.Type},
	})

	outcome, err := p.dispatch(ctx, evt)
	if err != nil {
		if p.deduper != nil {
			if relErr := p.deduper.Release(context.WithoutCancel(ctx), msgID); relErr != nil {
				slog.WarnContext(ctx, "failed to release webhook id", logger.Component("webhook"), logger.Error(relErr))
			}
		}
		return "", err
	}
	return outcome, nil
}

func (p *Processor) dispatch(ctx context.Context, evt Event) (_ Outcome, err error) {
	ctx, span := tracing.Start(ctx, "webhook.dispatch", attribute.String("webhook.event_type", evt.Type))
	defer func() { tracing.End(span, err) }()

	switch evt.Type {
	case EventUserCreated:
		var u UserCreated
		if err := json.Unmarshal(evt.Data, &u); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return OutcomeProcessed, p.userCreated(ctx, u)
	default:
		return OutcomeIgnored, nil
	}
}

func (p *Processor) userCreated(ctx context.Context, u UserCreated) error {
	email := u.PrimaryEmail()
	if u.ID == "" || email == "" {
		return fmt.Errorf("%w: user.created without id or email", ErrMalformedPayload)
	}

	role := rbac.LowestRole
	inv, err := p.invitations.RecordAcceptance(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to record acceptance: %w", err)
	}
	if inv != nil {
		role = inv.Role
	}

	if p.identities == nil {
		return nil
	}
	_, err = p.identities.ProvisionIdentity(ctx, identity.Signup{
		ID:        u.ID,
		Email:     email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, role)
	return err
}
