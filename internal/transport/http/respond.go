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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/rbac"
)

// Response is the success envelope.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

var kindStatus = map[invitation.ErrorKind]int{
	invitation.KindValidation:      http.StatusBadRequest,
	invitation.KindUnauthenticated: http.StatusUnauthorized,
	invitation.KindForbidden:       http.StatusForbidden,
	invitation.KindNotFound:        http.StatusNotFound,
	invitation.KindConflict:        http.StatusConflict,
	invitation.KindUnavailable:     http.StatusServiceUnavailable,
	invitation.KindInternal:        http.StatusInternalServerError,
}

// errorKind classifies errors from every service behind the admin API.
func errorKind(err error) invitation.ErrorKind {
	switch {
	case errors.Is(err, identity.ErrInvalidInput), errors.Is(err, rbac.ErrInvalidRole):
		return invitation.KindValidation
	case errors.Is(err, identity.ErrUserNotFound):
		return invitation.KindNotFound
	case errors.Is(err, identity.ErrLastSuperadmin):
		return invitation.KindConflict
	case errors.Is(err, identity.ErrDirectoryUnavailable):
		return invitation.KindUnavailable
	}
	return invitation.Kind(err)
}

// errorMessage returns the text shown to the admin. Internal and upstream
// details stay in the log.
func errorMessage(kind invitation.ErrorKind, err error) string {
	switch kind {
	case invitation.KindUnauthenticated:
		return "authentication required"
	case invitation.KindForbidden:
		return "you do not have permission to perform this action"
	case invitation.KindUnavailable:
		return "the identity service is temporarily unavailable, please try again"
	case invitation.KindInternal:
		return "internal server error"
	}
	return err.Error()
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", logger.Error(err))
	}
}

func respondOK(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, Response{Success: true, Data: data})
}

// respondError writes a failure envelope for a known kind.
func respondError(w http.ResponseWriter, kind invitation.ErrorKind, message string) {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      string(kind),
		Retryable: kind == invitation.KindUnavailable,
	})
}

// respondErr classifies err and writes the matching failure envelope.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := errorKind(err)
	if kind == invitation.KindInternal || kind == invitation.KindUnavailable {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Path(r.URL.Path),
			logger.ErrorKind(string(kind)),
			logger.Error(err),
		)
	}
	respondError(w, kind, errorMessage(kind, err))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
