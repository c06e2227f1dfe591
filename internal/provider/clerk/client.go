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

// Package clerk adapts the hosted identity provider's backend SDK to
// invitation.Provider and identity.UserDirectory.
package clerk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/clerk/clerk-sdk-go/v2"
	sdkinvitation "github.com/clerk/clerk-sdk-go/v2/invitation"
	sdkuser "github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/invitation"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the production backend API.
const DefaultBaseURL = "https://api.clerk.com"

// ErrMisconfigured means the provider rejected our credentials.
var ErrMisconfigured = errors.New("identity provider rejected credentials")

// Provider error codes we branch on.
const (
	codeNotFound        = "resource_not_found"
	codeDuplicateRecord = "duplicate_record"
	codeIdentifierTaken = "form_identifier_exists"
	codeAuthInvalid     = "authentication_invalid"
	codeAuthzInvalid    = "authorization_invalid"
	codeFormPrefix      = "form_"
)

// Config holds client configuration
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client wraps the SDK's invitation and user clients.
type Client struct {
	invitations *sdkinvitation.Client
	users       *sdkuser.Client
}

// New creates a client. Outbound requests are traced through otelhttp.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conf := &sdk.ClientConfig{
		BackendConfig: sdk.BackendConfig{
			HTTPClient: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			URL: sdk.String(apiURL(cfg.BaseURL)),
			Key: sdk.String(cfg.SecretKey),
		},
	}
	return &Client{
		invitations: sdkinvitation.NewClient(conf),
		users:       sdkuser.NewClient(conf),
	}
}

// apiURL appends the API version segment to a host URL.
func apiURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// apiError extracts the provider's error payload, if err carries one.
func apiError(err error) (*sdk.APIErrorResponse, bool) {
	var apiErr *sdk.APIErrorResponse
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func hasCode(apiErr *sdk.APIErrorResponse, match func(string) bool) bool {
	for _, e := range apiErr.Errors {
		if match(e.Code) {
			return true
		}
	}
	return false
}

func codeIs(codes ...string) func(string) bool {
	return func(code string) bool {
		for _, c := range codes {
			if code == c {
				return true
			}
		}
		return false
	}
}

func detail(apiErr *sdk.APIErrorResponse) string {
	var parts []string
	for _, e := range apiErr.Errors {
		msg := e.LongMessage
		if msg == "" {
			msg = e.Message
		}
		parts = append(parts, e.Code+": "+msg)
	}
	if len(parts) == 0 {
		return http.StatusText(apiErr.HTTPStatusCode)
	}
	return strings.Join(parts, "; ")
}

// mapErr converts an SDK error into a domain error. notFound is the
// sentinel returned for missing resources.
func mapErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	apiErr, ok := apiError(err)
	if !ok {
		// Transport failures and unparseable error bodies.
		return fmt.Errorf("%w: %v", invitation.ErrProviderUnavailable, err)
	}

	status := apiErr.HTTPStatusCode
	msg := detail(apiErr)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", invitation.ErrProviderUnavailable, status, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		hasCode(apiErr, codeIs(codeAuthInvalid, codeAuthzInvalid)):
		return fmt.Errorf("%w: status %d: %s", ErrMisconfigured, status, msg)
	case status == http.StatusNotFound || hasCode(apiErr, codeIs(codeNotFound)):
		return fmt.Errorf("%w: %s", notFound, msg)
	case hasCode(apiErr, codeIs(codeDuplicateRecord, codeIdentifierTaken)):
		return fmt.Errorf("%w: %s", invitation.ErrDuplicatePending, msg)
	case hasCode(apiErr, func(c string) bool { return strings.HasPrefix(c, codeFormPrefix) }),
		status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", invitation.ErrValidation, msg)
	}
	return fmt.Errorf("identity provider returned status %d: %s", status, msg)
}

// userErr rewraps failures with the user directory's sentinels.
func userErr(err error) error {
	switch {
	case errors.Is(err, invitation.ErrProviderUnavailable):
		return fmt.Errorf("%w: %w", identity.ErrDirectoryUnavailable, err)
	case errors.Is(err, invitation.ErrValidation):
		return fmt.Errorf("%w: %w", identity.ErrInvalidInput, err)
	}
	return err
}

// millis converts the provider's epoch-millisecond timestamps.
func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
