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

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP delivery settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SiteURL  string
	Timeout  time.Duration
}

// sendFunc delivers one message; replaced in tests.
type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPMailer sends invitations through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

// NewSMTPMailer creates a mailer. STARTTLS is used when the relay offers it
// and PLAIN auth when a username is set.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP client: %w", err)
	}
	send := func(ctx context.Context, msg *mail.Msg) error {
		return client.DialAndSendWithContext(ctx, msg)
	}
	return &SMTPMailer{cfg: cfg, send: send, now: time.Now}, nil
}

// SendInvitation renders and sends the invitation e-mail.
func (m *SMTPMailer) SendInvitation(ctx context.Context, inv *invitation.Invitation) error {
	composed, err := Compose(m.cfg.From, m.cfg.SiteURL, inv)
	if err != nil {
		return err
	}
	msg, err := composed.Msg(m.now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if err := m.send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send invitation e-mail",
			logger.Component("notify"),
			logger.InvitationID(inv.ID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to send invitation e-mail: %w", err)
	}

	slog.InfoContext(ctx, "invitation e-mail sent",
		logger.Component("notify"),
		logger.InvitationID(inv.ID),
	)
	return nil
}

var _ invitation.Mailer = (*SMTPMailer)(nil)
