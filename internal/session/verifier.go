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

// Package session verifies identity-provider session tokens and maps them
// to authorization actors.
package session

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lexguard/lexguard/internal/authz"
)

// Domain errors
var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpired      = errors.New("session expired")
)

// Config describes how tokens are verified. Exactly one of Secret (HS256)
// or PublicKeyPEM (RS256) is used; the public key wins when both are set.
type Config struct {
	CookieName   string
	Secret       string
	PublicKeyPEM string
	Issuer       string
	Leeway       time.Duration
}

// Claims is the session token payload. The role is read from the
// metadata object first and from the top-level claim otherwise.
type Claims struct {
	jwt.RegisteredClaims
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RawRole returns the role string carried by the token, possibly empty.
func (c *Claims) RawRole() string {
	if r, ok := c.Metadata["role"].(string); ok && r != "" {
		return r
	}
	return c.Role
}

// Verifier validates session tokens.
type Verifier struct {
	cookieName string
	method     jwt.SigningMethod
	hmacKey    []byte
	publicKey  *rsa.PublicKey
	parser     *jwt.Parser
}

// NewVerifier creates a verifier from configuration
func NewVerifier(cfg Config) (*Verifier, error) {
	v := &Verifier{cookieName: cfg.CookieName}
	if v.cookieName == "" {
		v.cookieName = "__session"
	}

	switch {
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse session public key: %w", err)
		}
		v.publicKey = key
		v.method = jwt.SigningMethodRS256
	case cfg.Secret != "":
		v.hmacKey = []byte(cfg.Secret)
		v.method = jwt.SigningMethodHS256
	default:
		return nil, errors.New("session verifier needs a secret or a public key")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(raw, claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	if v.publicKey != nil {
		return v.publicKey, nil
	}
	return v.hmacKey, nil
}

// TokenFromRequest extracts the token from the session cookie or a bearer header.
func (v *Verifier) TokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(v.cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return strings.TrimSpace(token), nil
		}
	}
	return "", ErrNoToken
}

// ActorFromRequest resolves the request's actor. Callers treat any error
// as the anonymous actor.
func (v *Verifier) ActorFromRequest(r *http.Request) (authz.Actor, error) {
	raw, err := v.TokenFromRequest(r)
	if err != nil {
		return authz.Anonymous(), err
	}
	claims, err := v.Verify(raw)
	if err != nil {
		return authz.Anonymous(), err
	}
	return authz.NewActor(claims.Subject, claims.RawRole()), nil
}
