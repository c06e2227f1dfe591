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
	"log/slog"
	"time"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/observability/metrics"
)

// DefaultPollInterval is how often the watcher re-reads the provider.
const DefaultPollInterval = time.Minute

// Watcher polls the provider and reports invitations that left pending
// since the previous poll. This is how acceptances at a hosted identity
// provider become visible.
type Watcher struct {
	view        *View
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	interval    time.Duration

	// status of every invitation seen in the last applied snapshot
	seen map[string]Status
}

// NewWatcher creates a watcher reading straight from the provider.
func NewWatcher(provider Provider, auditLogger audit.Logger, instruments *metrics.Instruments, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		view: NewView(func(ctx context.Context) ([]*Invitation, error) {
			return ListAll(ctx, provider, Filter{})
		}),
		auditLogger: auditLogger,
		metrics:     instruments,
		interval:    interval,
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	slog.InfoContext(ctx, "invitation watcher started",
		logger.Component("invitation_watcher"),
		slog.Duration("interval", w.interval),
	)

	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("invitation watcher stopped", logger.Component("invitation_watcher"))
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	if _, err := w.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "invitation poll failed",
			logger.Component("invitation_watcher"),
			logger.Error(err),
			logger.ErrorKind(string(Kind(err))),
		)
	}
}

// Poll refreshes once and returns the invitations observed as accepted
// since the previous successful poll. The first poll only records a baseline.
func (w *Watcher) Poll(ctx context.Context) ([]*Invitation, error) {
	snap, err := w.view.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	var accepted []*Invitation
	pending := 0
	next := make(map[string]Status, len(snap.Invitations))
	for _, inv := range snap.Invitations {
		next[inv.ID] = inv.Status
		if inv.Status == StatusPending {
			pending++
		}
		if w.seen != nil && w.seen[inv.ID] == StatusPending && inv.Status == StatusAccepted {
			accepted = append(accepted, inv)
		}
	}
	w.seen = next

	w.metrics.SetPending(ctx, pending)
	for _, inv := range accepted {
		w.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeInvitationAccepted,
			ActorID:  audit.ActorSystemWatcher,
			Resource: audit.ResourceInvitation,
			TargetID: inv.ID,
			Metadata: map[string]any{
				audit.AttrEmail: inv.EmailAddress,
				audit.AttrRole:  string(inv.Role),
			},
		})
		slog.InfoContext(ctx, "invitation accepted",
			logger.InvitationID(inv.ID),
			logger.Generation(snap.Generation),
		)
	}
	return accepted, nil
}
