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

// Package invitationtest provides an in-memory invitation provider for tests.
package invitationtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lexguard/lexguard/internal/invitation"
)

// Provider is an in-memory invitation.Provider and AcceptanceRecorder.
type Provider struct {
	mu      sync.Mutex
	items   map[string]*invitation.Invitation
	seq     int
	now     time.Time
	failErr error

	// Calls counts provider calls by method name.
	Calls map[string]int
}

// NewProvider returns an empty provider.
func NewProvider() *Provider {
	return &Provider{
		items: map[string]*invitation.Invitation{},
		now:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Calls: map[string]int{},
	}
}

// FailWith makes every following call fail with err until cleared with nil.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failErr = err
}

func (p *Provider) enter(method string) error {
	p.Calls[method]++
	return p.failErr
}

func (p *Provider) tick() time.Time {
	p.now = p.now.Add(time.Second)
	return p.now
}

// ListCalls returns how many times List was called.
func (p *Provider) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls["List"]
}

// Create issues a pending invitation.
func (p *Provider) Create(_ context.Context, params invitation.CreateParams) (*invitation.Invitation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Create"); err != nil {
		return nil, err
	}
	for _, inv := range p.items {
		if inv.Status == invitation.StatusPending && strings.EqualFold(inv.EmailAddress, params.EmailAddress) {
			return nil, invitation.ErrDuplicatePending
		}
	}
	p.seq++
	now := p.tick()
	inv := &invitation.Invitation{
		ID:           fmt.Sprintf("inv_%03d", p.seq),
		EmailAddress: params.EmailAddress,
		Role:         params.Role,
		Status:       invitation.StatusPending,
		InvitedBy:    params.InvitedBy,
		RedirectURL:  params.RedirectURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.items[inv.ID] = inv
	return inv.Clone(), nil
}

// List returns matching invitations newest first.
func (p *Provider) List(_ context.Context, f invitation.Filter) ([]*invitation.Invitation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("List"); err != nil {
		return nil, err
	}
	var out []*invitation.Invitation
	for _, inv := range p.items {
		if f.Matches(inv) {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return []*invitation.Invitation{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// Get returns one invitation.
func (p *Provider) Get(_ context.Context, id string) (*invitation.Invitation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Get"); err != nil {
		return nil, err
	}
	inv, ok := p.items[id]
	if !ok {
		return nil, invitation.ErrNotFound
	}
	return inv.Clone(), nil
}

// Revoke moves a pending invitation to revoked.
func (p *Provider) Revoke(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Revoke"); err != nil {
		return err
	}
	return p.transition(id, invitation.StatusRevoked)
}

// MarkAccepted accepts the pending invitation for email, falling back to
// the latest accepted one.
func (p *Provider) MarkAccepted(_ context.Context, email string) (*invitation.Invitation, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("MarkAccepted"); err != nil {
		return nil, false, err
	}
	var latest *invitation.Invitation
	for _, inv := range p.items {
		if !strings.EqualFold(inv.EmailAddress, email) {
			continue
		}
		switch inv.Status {
		case invitation.StatusPending:
			if err := p.transition(inv.ID, invitation.StatusAccepted); err != nil {
				return nil, false, err
			}
			return inv.Clone(), true, nil
		case invitation.StatusAccepted:
			if latest == nil || inv.UpdatedAt.After(latest.UpdatedAt) {
				latest = inv
			}
		}
	}
	if latest == nil {
		return nil, false, invitation.ErrNotFound
	}
	return latest.Clone(), false, nil
}

// Accept simulates the invitee completing signup at the identity provider.
func (p *Provider) Accept(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transition(id, invitation.StatusAccepted)
}

func (p *Provider) transition(id string, to invitation.Status) error {
	inv, ok := p.items[id]
	if !ok {
		return invitation.ErrNotFound
	}
	if err := invitation.Transition(inv.Status, to); err != nil {
		return err
	}
	inv.Status = to
	inv.UpdatedAt = p.tick()
	return nil
}

var (
	_ invitation.Provider           = (*Provider)(nil)
	_ invitation.AcceptanceRecorder = (*Provider)(nil)
)
