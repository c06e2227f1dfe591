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

	sdk "github.com/clerk/clerk-sdk-go/v2"
	sdkuser "github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/rbac"
)

// userMetadata is the role data kept in a user's public metadata.
type userMetadata struct {
	Role       string  `json:"role"`
	Department *string `json:"department,omitempty"`
}

func primaryEmail(u *sdk.User) string {
	for _, e := range u.EmailAddresses {
		if u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toUser(u *sdk.User) *identity.User {
	var meta userMetadata
	if len(u.PublicMetadata) > 0 {
		_ = json.Unmarshal(u.PublicMetadata, &meta)
	}
	return &identity.User{
		ID:         u.ID,
		Email:      primaryEmail(u),
		FirstName:  deref(u.FirstName),
		LastName:   deref(u.LastName),
		Role:       rbac.ParseRole(meta.Role),
		Department: meta.Department,
		CreatedAt:  millis(u.CreatedAt),
		UpdatedAt:  millis(u.UpdatedAt),
	}
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id string) (*identity.User, error) {
	u, err := c.users.Get(ctx, id)
	if err != nil {
		return nil, userErr(mapErr(err, identity.ErrUserNotFound))
	}
	return toUser(u), nil
}

// GetUserByEmail finds the user owning email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	params := &sdkuser.ListParams{EmailAddresses: []string{email}}
	params.Limit = sdk.Int64(1)
	res, err := c.users.List(ctx, params)
	if err != nil {
		return nil, userErr(mapErr(err, identity.ErrUserNotFound))
	}
	if len(res.Users) == 0 {
		return nil, identity.ErrUserNotFound
	}
	return toUser(res.Users[0]), nil
}

// UpdateUserRole merges role and department into the user's public metadata.
func (c *Client) UpdateUserRole(ctx context.Context, id string, role rbac.Role, department *string) (*identity.User, error) {
	meta, err := json.Marshal(userMetadata{Role: string(role), Department: department})
	if err != nil {
		return nil, err
	}
	u, err := c.users.UpdateMetadata(ctx, id, &sdkuser.UpdateMetadataParams{
		PublicMetadata: sdk.JSONRawMessage(meta),
	})
	if err != nil {
		return nil, userErr(mapErr(err, identity.ErrUserNotFound))
	}
	return toUser(u), nil
}

// CountUsersByRole scans every user. Role lives in metadata and cannot be
// filtered server-side.
func (c *Client) CountUsersByRole(ctx context.Context, role rbac.Role) (int, error) {
	n := 0
	for offset := int64(0); ; offset += maxPageSize {
		params := &sdkuser.ListParams{}
		params.Limit = sdk.Int64(maxPageSize)
		params.Offset = sdk.Int64(offset)
		res, err := c.users.List(ctx, params)
		if err != nil {
			return 0, userErr(mapErr(err, identity.ErrUserNotFound))
		}
		for _, u := range res.Users {
			if toUser(u).Role == role {
				n++
			}
		}
		if len(res.Users) < maxPageSize {
			return n, nil
		}
	}
}

var _ identity.UserDirectory = (*Client)(nil)
