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

// Package invitation manages the lifecycle of invitations to the admin panel.
//
// An invitation is created pending and ends accepted or revoked. Revocation is
// driven by admins; acceptance happens at the identity provider and is only
// observed here.
package invitation

import (
	"context"
	"fmt"
	"time"

	"github.com/lexguard/lexguard/internal/rbac"
)

// Status is the lifecycle state of an invitation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
	// StatusExpired is set by the hosted provider once an invitation outlives
	// its validity window. The local store never produces it.
	StatusExpired Status = "expired"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRevoked || s == StatusExpired
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusRevoked, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// Transition checks that moving from one status to another is allowed.
// Leaving a terminal state reports which state the invitation is already in.
func Transition(from, to Status) error {
	switch from {
	case StatusAccepted:
		return ErrAlreadyAccepted
	case StatusRevoked:
		return ErrAlreadyRevoked
	case StatusExpired:
		return fmt.Errorf("%w: invitation expired", ErrInvalidTransition)
	case StatusPending:
		if to == StatusAccepted || to == StatusRevoked {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Invitation is an outstanding offer to join with a pre-assigned role.
type Invitation struct {
	ID           string    `json:"id"`
	EmailAddress string    `json:"emailAddress"`
	Role         rbac.Role `json:"role"`
	Status       Status    `json:"status"`
	InvitedBy    string    `json:"invitedBy,omitempty"`
	RedirectURL  string    `json:"redirectUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no memory with inv.
func (inv *Invitation) Clone() *Invitation {
	if inv == nil {
		return nil
	}
	c := *inv
	return &c
}

// CreateParams is what a provider needs to issue an invitation.
type CreateParams struct {
	EmailAddress string
	Role         rbac.Role
	InvitedBy    string
	RedirectURL  string
}

// Filter narrows a listing. Zero values mean no constraint.
type Filter struct {
	Status *Status
	Limit  int
	Offset int
}

// Matches reports whether inv passes the status constraint.
func (f Filter) Matches(inv *Invitation) bool {
	return f.Status == nil || inv.Status == *f.Status
}

// Provider persists invitations and delivers them. It is the source of truth
// for invitation state; List results are ordered newest first.
type Provider interface {
	Create(ctx context.Context, p CreateParams) (*Invitation, error)
	List(ctx context.Context, f Filter) ([]*Invitation, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Invitation, error)
	// Revoke fails with ErrAlreadyAccepted or ErrAlreadyRevoked when the
	// invitation left pending before the call reached the provider.
	Revoke(ctx context.Context, id string) error
}

// AcceptanceRecorder is implemented by providers that keep invitation state
// locally and must be told when an invitee completes signup.
//
// MarkAccepted accepts the pending invitation for email and reports
// accepted=true. When nothing is pending it returns the most recently
// accepted invitation for email with accepted=false, so a redelivered
// signup resolves to the same role. ErrNotFound means neither exists.
type AcceptanceRecorder interface {
	MarkAccepted(ctx context.Context, email string) (inv *Invitation, accepted bool, err error)
}

// Mailer delivers the invitation e-mail.
type Mailer interface {
	SendInvitation(ctx context.Context, inv *Invitation) error
}
