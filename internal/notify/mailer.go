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

// Package notify delivers invitation e-mails for the self-hosted backend.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/wneessen/go-mail"
)

// ErrInvalidRecipient is returned for addresses that cannot be put in a header.
var ErrInvalidRecipient = errors.New("invalid recipient")

const subject = "You have been invited to the LexGuard admin panel"

var bodyTemplate = template.Must(template.New("invitation").Parse(
	`Hello,

You have been invited to join the LexGuard admin panel as {{.RoleName}}.

Accept the invitation here:
{{.Link}}

If you were not expecting this e-mail you can ignore it.
`))

// Message is a rendered invitation e-mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Msg builds the MIME message for delivery, dated now.
func (m Message) Msg(now time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithNoDefaultUserAgent())
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	msg.Subject(m.Subject)
	msg.SetDateWithValue(now.UTC())
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

// Compose renders the e-mail for inv. The link points at the invitation's
// redirect URL when set, otherwise at the sign-up page of siteURL.
func Compose(from, siteURL string, inv *invitation.Invitation) (Message, error) {
	if strings.ContainsAny(inv.EmailAddress, "\r\n") || !strings.Contains(inv.EmailAddress, "@") {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, inv.EmailAddress)
	}

	link := inv.RedirectURL
	if link == "" {
		link = strings.TrimRight(siteURL, "/") + "/sign-up"
	}
	u, err := url.Parse(link)
	if err != nil {
		return Message{}, fmt.Errorf("failed to parse invitation link: %w", err)
	}
	q := u.Query()
	q.Set("invitation", inv.ID)
	u.RawQuery = q.Encode()

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, struct {
		RoleName string
		Link     string
	}{rbac.DisplayName(inv.Role), u.String()}); err != nil {
		return Message{}, fmt.Errorf("failed to render invitation: %w", err)
	}

	return Message{From: from, To: inv.EmailAddress, Subject: subject, Body: body.String()}, nil
}

// LogMailer writes invitations to the log instead of sending them.
type LogMailer struct {
	SiteURL string
}

// NewLogMailer creates a mailer for development setups without SMTP.
func NewLogMailer(siteURL string) *LogMailer {
	return &LogMailer{SiteURL: siteURL}
}

// SendInvitation logs the rendered invitation.
func (m *LogMailer) SendInvitation(ctx context.Context, inv *invitation.Invitation) error {
	msg, err := Compose("", m.SiteURL, inv)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "invitation e-mail (not sent)",
		logger.Component("notify"),
		logger.InvitationID(inv.ID),
		logger.Email(msg.To),
		slog.String("body", msg.Body),
	)
	return nil
}

var _ invitation.Mailer = (*LogMailer)(nil)
