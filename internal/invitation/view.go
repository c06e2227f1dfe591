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
	"sync"
	"time"
)

// ErrStale is returned by Refresh when a newer refresh superseded this one.
// The stale result is discarded.
var ErrStale = errors.New("invitation listing superseded by a newer request")

// Fetcher loads a fresh invitation listing.
type Fetcher func(ctx context.Context) ([]*Invitation, error)

// Snapshot is an applied listing and the generation that produced it.
type Snapshot struct {
	Generation  uint64
	Invitations []*Invitation
	UpdatedAt   time.Time
}

// View holds the most recently applied listing. Each Refresh takes a new
// generation and cancels the fetch it supersedes; a result is applied only
// if its generation is still the latest when it arrives.
type View struct {
	fetch Fetcher
	now   func() time.Time

	mu      sync.Mutex
	latest  uint64
	cancel  context.CancelFunc
	current Snapshot
}

// NewView creates an empty view.
func NewView(fetch Fetcher) *View {
	return &View{fetch: fetch, now: time.Now}
}

// Refresh fetches a new listing and applies it unless superseded.
func (v *View) Refresh(ctx context.Context) (Snapshot, error) {
	v.mu.Lock()
	v.latest++
	gen := v.latest
	if v.cancel != nil {
		v.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	items, err := v.fetch(fctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	cancel()
	if gen != v.latest {
		return Snapshot{}, ErrStale
	}
	v.cancel = nil
	if err != nil {
		return Snapshot{}, err
	}

	v.current = Snapshot{
		Generation:  gen,
		Invitations: cloneAll(items),
		UpdatedAt:   v.now(),
	}
	return v.snapshotLocked(), nil
}

// Snapshot returns a copy of the applied listing.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	s := v.current
	s.Invitations = cloneAll(v.current.Invitations)
	return s
}

func cloneAll(in []*Invitation) []*Invitation {
	if in == nil {
		return nil
	}
	out := make([]*Invitation, len(in))
	for i, inv := range in {
		out[i] = inv.Clone()
	}
	return out
}
