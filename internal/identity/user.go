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
	"time"

	"github.com/lexguard/lexguard/internal/rbac"
)

// Domain errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrLastSuperadmin       = errors.New("cannot demote the last superadmin")
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)

// User is an admin-panel account as seen by the identity provider.
type User struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	Role       rbac.Role
	Department *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserDirectory is the store of record for users and their roles.
type UserDirectory interface {
	// GetUser returns ErrUserNotFound when the id is unknown.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUserRole replaces the role and, when department is non-nil, the department.
	UpdateUserRole(ctx context.Context, id string, role rbac.Role, department *string) (*User, error)

	// CountUsersByRole counts users currently holding role.
	CountUsersByRole(ctx context.Context, role rbac.Role) (int, error)
}

// UpdateRoleInput is a request to change another user's role.
type UpdateRoleInput struct {
	UserID     string  `validate:"required,max=128"`
	Role       string  `validate:"required"`
	Department *string `validate:"omitempty,max=100"`
}

// Provisioner is implemented by directories that keep a local copy of the
// accounts created at the identity provider.
type Provisioner interface {
	// ProvisionUser inserts u, or refreshes the profile of an existing row
	// without touching its role.
	ProvisionUser(ctx context.Context, u *User) (*User, error)
}
