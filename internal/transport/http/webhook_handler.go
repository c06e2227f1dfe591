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

package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/webhook"
)

const maxWebhookBody = 1 << 20

// IdentityWebhook receives identity-provider events. Failures other than
// authentication and payload errors answer 503 so the provider retries.
// @Summary Identity Webhook
// @Description Signed user and invitation events from the identity provider
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param webhook-id header string true "Message ID"
// @Param webhook-timestamp header string true "Unix timestamp"
// @Param webhook-signature header string true "v1 signatures"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /webhooks/identity [post]
func (h *Handler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, invitation.KindValidation, "request body too large or unreadable")
		return
	}

	outcome, err := h.webhooks.Handle(r.Context(), r.Header, body)
	switch {
	case err == nil:
		respondOK(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
	case errors.Is(err, webhook.ErrMissingHeaders),
		errors.Is(err, webhook.ErrInvalidTimestamp),
		errors.Is(err, webhook.ErrInvalidSignature):
		slog.WarnContext(r.Context(), "webhook rejected", logger.Component("webhook"), logger.Error(err))
		respondError(w, invitation.KindUnauthenticated, "invalid webhook signature")
	case errors.Is(err, webhook.ErrMalformedPayload):
		respondError(w, invitation.KindValidation, err.Error())
	default:
		slog.ErrorContext(r.Context(), "webhook processing failed", logger.Component("webhook"), logger.Error(err))
		respondError(w, invitation.KindUnavailable, "webhook processing failed")
	}
}
