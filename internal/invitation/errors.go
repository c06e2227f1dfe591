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

	"github.com/lexguard/lexguard/internal/authz"
)

// Domain errors
var (
	ErrValidation          = errors.New("invalid invitation request")
	ErrNotFound            = errors.New("invitation not found")
	ErrDuplicatePending    = errors.New("a pending invitation already exists for this email")
	ErrAlreadyAccepted     = errors.New("invitation already accepted")
	ErrAlreadyRevoked      = errors.New("invitation already revoked")
	ErrInvalidTransition   = errors.New("invalid invitation transition")
	ErrProviderUnavailable = errors.New("invitation provider unavailable")
)

// ErrorKind classifies failures for callers deciding whether to retry.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindUnauthenticated ErrorKind = "unauthorized"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindUnavailable     ErrorKind = "unavailable"
	KindInternal        ErrorKind = "internal"
)

// Kind classifies err. A nil error has no kind.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, authz.ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, authz.ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicatePending),
		errors.Is(err, ErrAlreadyAccepted),
		errors.Is(err, ErrAlreadyRevoked),
		errors.Is(err, ErrInvalidTransition):
		return KindConflict
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindUnavailable
	}
	return KindInternal
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	return Kind(err) == KindUnavailable
}
