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

// Package webhook verifies and processes identity-provider event deliveries.
package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Delivery headers. Deliveries using the svix-* names are accepted too.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// DefaultTolerance bounds the clock skew accepted on webhook-timestamp.
const DefaultTolerance = 5 * time.Minute

const secretPrefix = "whsec_"

// Verification errors
var (
	ErrMissingHeaders   = errors.New("missing webhook headers")
	ErrInvalidTimestamp = errors.New("webhook timestamp outside tolerance")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Verifier authenticates deliveries signed with the provider's signing
// secret.
type Verifier struct {
	wh        *svix.Webhook
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier. A "whsec_" prefixed secret is base64
// decoded; anything else is used as raw key material.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	var (
		wh  *svix.Webhook
		err error
	)
	if strings.HasPrefix(secret, secretPrefix) {
		wh, err = svix.NewWebhook(secret)
	} else {
		wh, err = svix.NewWebhookRaw([]byte(secret))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode webhook secret: %w", err)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{wh: wh, tolerance: tolerance, now: time.Now}, nil
}

// Sign returns the base64 signature of a delivery, without the "v1,"
// version prefix.
func (v *Verifier) Sign(msgID string, ts time.Time, body []byte) string {
	sig, _ := v.wh.Sign(msgID, ts, body)
	_, b64, _ := strings.Cut(sig, ",")
	return b64
}

// Verify authenticates a delivery and returns its message id. The signature
// header may carry several space-separated "v1,<sig>" entries; any match
// is accepted.
func (v *Verifier) Verify(h http.Header, body []byte) (string, error) {
	msgID, rawTS, sigs := h.Get(HeaderID), h.Get(HeaderTimestamp), h.Get(HeaderSignature)
	if msgID == "" || rawTS == "" || sigs == "" {
		msgID, rawTS, sigs = h.Get("svix-id"), h.Get("svix-timestamp"), h.Get("svix-signature")
	}
	if msgID == "" || rawTS == "" || sigs == "" {
		return "", ErrMissingHeaders
	}

	// The skew window is configurable, so it is checked here and the
	// library only compares signatures.
	sec, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimestamp, rawTS)
	}
	if skew := v.now().Sub(time.Unix(sec, 0)); skew > v.tolerance || skew < -v.tolerance {
		return "", ErrInvalidTimestamp
	}

	if err := v.wh.VerifyIgnoringTimestamp(body, h); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return msgID, nil
}
