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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/rbac"
)

const userColumns = `id, email, first_name, last_name, role, department, created_at, updated_at`

// UserRepository implements identity.UserDirectory and identity.Provisioner
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var (
		user identity.User
		role string
	)
	if err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &role, &user.Department,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = rbac.ParseRole(role)
	return &user, nil
}

func userStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return identity.ErrUserNotFound
	case isServerError(err):
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", identity.ErrDirectoryUnavailable, op, err)
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, userStoreErr("get user", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, userStoreErr("get user by email", err)
	}
	return user, nil
}

// UpdateUserRole sets the role, and the department when one is given.
func (r *UserRepository) UpdateUserRole(ctx context.Context, userID string, role rbac.Role, department *string) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx, `
		UPDATE users
		SET role = $2, department = COALESCE($3, department), updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, string(role), department,
	))
	if err != nil {
		return nil, userStoreErr("update user role", err)
	}
	return user, nil
}

// CountUsersByRole counts users holding role
func (r *UserRepository) CountUsersByRole(ctx context.Context, role rbac.Role) (int, error) {
	var n int
	if err := r.db.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, userStoreErr("count users", err)
	}
	return n, nil
}

// ProvisionUser inserts a user created at the identity provider. Profile
// fields of an existing row are refreshed; its role is left alone.
func (r *UserRepository) ProvisionUser(ctx context.Context, u *identity.User) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, department)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = now()
		RETURNING `+userColumns,
		u.ID, u.Email, u.FirstName, u.LastName, string(u.Role), u.Department,
	))
	if err != nil {
		return nil, userStoreErr("provision user", err)
	}
	return user, nil
}

var (
	_ identity.UserDirectory = (*UserRepository)(nil)
	_ identity.Provisioner   = (*UserRepository)(nil)
)
