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

package clerk

import (
	"context"
	"encoding/json"
	"net/http"

	sdk "github.com/clerk/clerk-sdk-go/v2"
	sdkinvitation "github.com/clerk/clerk-sdk-go/v2/invitation"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/rbac"
)

const maxPageSize = 500

// invitationMetadata is what we store in an invitation's public metadata.
type invitationMetadata struct {
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
}

func toInvitation(r *sdk.Invitation) *invitation.Invitation {
	var meta invitationMetadata
	if len(r.PublicMetadata) > 0 {
		_ = json.Unmarshal(r.PublicMetadata, &meta)
	}
	status, err := invitation.ParseStatus(r.Status)
	if err != nil {
		// Unmodeled provider state; Transition rejects it.
		status = invitation.Status(r.Status)
	}
	return &invitation.Invitation{
		ID:           r.ID,
		EmailAddress: r.EmailAddress,
		Role:         rbac.ParseRole(meta.Role),
		Status:       status,
		InvitedBy:    meta.InvitedBy,
		CreatedAt:    millis(r.CreatedAt),
		UpdatedAt:    millis(r.UpdatedAt),
	}
}

// Create issues an invitation; the provider sends the e-mail.
func (c *Client) Create(ctx context.Context, p invitation.CreateParams) (*invitation.Invitation, error) {
	meta, err := json.Marshal(invitationMetadata{Role: string(p.Role), InvitedBy: p.InvitedBy})
	if err != nil {
		return nil, err
	}
	params := &sdkinvitation.CreateParams{
		EmailAddress:   p.EmailAddress,
		PublicMetadata: sdk.JSONRawMessage(meta),
		Notify:         sdk.Bool(true),
	}
	if p.RedirectURL != "" {
		params.RedirectURL = sdk.String(p.RedirectURL)
	}
	res, err := c.invitations.Create(ctx, params)
	if err != nil {
		return nil, mapErr(err, invitation.ErrNotFound)
	}
	inv := toInvitation(res)
	inv.RedirectURL = p.RedirectURL
	return inv, nil
}

// List returns invitations newest first.
func (c *Client) List(ctx context.Context, f invitation.Filter) ([]*invitation.Invitation, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	params := &sdkinvitation.ListParams{OrderBy: sdk.String("-created_at")}
	params.Limit = sdk.Int64(int64(limit))
	if f.Offset > 0 {
		params.Offset = sdk.Int64(int64(f.Offset))
	}
	if f.Status != nil {
		params.Statuses = []string{string(*f.Status)}
	}

	res, err := c.invitations.List(ctx, params)
	if err != nil {
		return nil, mapErr(err, invitation.ErrNotFound)
	}
	out := make([]*invitation.Invitation, 0, len(res.Invitations))
	for _, r := range res.Invitations {
		out = append(out, toInvitation(r))
	}
	return out, nil
}

// Get pages through the listing; the API has no single-invitation lookup.
func (c *Client) Get(ctx context.Context, id string) (*invitation.Invitation, error) {
	for offset := 0; ; offset += maxPageSize {
		page, err := c.List(ctx, invitation.Filter{Limit: maxPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, inv := range page {
			if inv.ID == id {
				return inv, nil
			}
		}
		if len(page) < maxPageSize {
			return nil, invitation.ErrNotFound
		}
	}
}

// Revoke revokes a pending invitation. When the provider refuses, the
// invitation's current state decides which conflict is reported.
func (c *Client) Revoke(ctx context.Context, id string) error {
	_, err := c.invitations.Revoke(ctx, id)
	if err == nil {
		return nil
	}
	if apiErr, ok := apiError(err); ok && stateConflict(apiErr.HTTPStatusCode) {
		inv, getErr := c.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		if err := invitation.Transition(inv.Status, invitation.StatusRevoked); err != nil {
			return err
		}
	}
	return mapErr(err, invitation.ErrNotFound)
}

// stateConflict reports client errors that may stem from the invitation
// no longer being pending.
func stateConflict(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

var _ invitation.Provider = (*Client)(nil)
