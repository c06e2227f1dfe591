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

// Package identitytest provides an in-memory user directory for tests.
package identitytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/rbac"
)

// Directory is an in-memory identity.UserDirectory.
type Directory struct {
	mu           sync.Mutex
	users        map[string]*identity.User
	provisionErr error
}

// NewDirectory returns a directory seeded with users.
func NewDirectory(users ...*identity.User) *Directory {
	d := &Directory{users: map[string]*identity.User{}}
	for _, u := range users {
		c := *u
		d.users[u.ID] = &c
	}
	return d
}

// GetUser returns a copy of the user.
func (d *Directory) GetUser(_ context.Context, id string) (*identity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// GetUserByEmail matches case-insensitively.
func (d *Directory) GetUserByEmail(_ context.Context, email string) (*identity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

// UpdateUserRole replaces the role and optionally the department.
func (d *Directory) UpdateUserRole(_ context.Context, id string, role rbac.Role, department *string) (*identity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	u.Role = role
	if department != nil {
		dep := *department
		u.Department = &dep
	}
	u.UpdatedAt = time.Now()
	c := *u
	return &c, nil
}

// CountUsersByRole counts users holding role.
func (d *Directory) CountUsersByRole(_ context.Context, role rbac.Role) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, u := range d.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// FailProvisionWith makes ProvisionUser fail with err until cleared with nil.
func (d *Directory) FailProvisionWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.provisionErr = err
}

// ProvisionUser inserts u or refreshes the profile of an existing user.
func (d *Directory) ProvisionUser(_ context.Context, u *identity.User) (*identity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.provisionErr != nil {
		return nil, d.provisionErr
	}
	now := time.Now()
	if cur, ok := d.users[u.ID]; ok {
		cur.Email = u.Email
		cur.FirstName = u.FirstName
		cur.LastName = u.LastName
		cur.UpdatedAt = now
		c := *cur
		return &c, nil
	}
	c := *u
	c.CreatedAt, c.UpdatedAt = now, now
	d.users[u.ID] = &c
	out := c
	return &out, nil
}

var (
	_ identity.UserDirectory = (*Directory)(nil)
	_ identity.Provisioner   = (*Directory)(nil)
)
