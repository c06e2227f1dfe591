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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeAccessDenied        = "access_denied"
	TypeRoleChanged         = "role_changed"
	TypeRoleChangeRejected  = "role_change_rejected"
	TypeInvitationCreated   = "invitation_created"
	TypeInvitationRevoked   = "invitation_revoked"
	TypeInvitationAccepted  = "invitation_accepted"
	TypeSuperadminBootstrap = "superadmin_bootstrap"
	TypeWebhookReceived     = "webhook_received"
	TypeUserProvisioned     = "user_provisioned"
)

// Resources
const (
	ResourceUser       = "user"
	ResourceInvitation = "invitation"
	ResourceAdminPage  = "admin_page"
)

// Actors that are not people.
const (
	ActorSystemBootstrap = "system:bootstrap"
	ActorSystemWatcher   = "system:invitation_watcher"
	ActorIdentityWebhook = "system:identity_webhook"
)

// Metadata keys
const (
	AttrEmail        = "email"
	AttrRole         = "role"
	AttrPreviousRole = "previous_role"
	AttrPermission   = "permission"
	AttrReason       = "reason"
)

// Event represents an auditable action
type Event struct {
	Type      string
	ActorID   string
	ActorRole string
	Resource  string
	TargetID  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.ActorRole != "" {
		attrs = append(attrs, slog.String("actor_role", event.ActorRole))
	}
	if event.TargetID != "" {
		attrs = append(attrs, slog.String("target_id", event.TargetID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	key = strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "authorization", "hash", "credential", "signature"}
	for _, s := range secrets {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
