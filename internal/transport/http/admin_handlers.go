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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lexguard/lexguard/internal/identity"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/rbac"
)

// MeResponse describes the signed-in actor to the admin UI.
type MeResponse struct {
	ID              string            `json:"id,omitempty"`
	Authenticated   bool              `json:"authenticated"`
	Role            rbac.Role         `json:"role"`
	DisplayName     string            `json:"displayName"`
	Rank            int               `json:"rank"`
	Permissions     []rbac.Permission `json:"permissions"`
	AssignableRoles []rbac.Role       `json:"assignableRoles"`
}

// Me returns the actor's role, permissions and the roles it may grant.
// @Summary Current Actor
// @Description Role, permissions and grantable roles of the caller; anonymous callers get the unauthenticated view
// @Tags Admin
// @Produce json
// @Security CookieAuth
// @Security BearerAuth
// @Success 200 {object} Response{data=MeResponse}
// @Router /admin/api/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())
	resp := MeResponse{
		ID:              actor.ID,
		Authenticated:   actor.Authenticated,
		Role:            actor.Role,
		DisplayName:     rbac.DisplayName(actor.Role),
		Rank:            rbac.RankOf(actor.Role),
		Permissions:     rbac.PermissionsOf(actor.Role),
		AssignableRoles: []rbac.Role{},
	}
	if actor.Authenticated {
		if roles := rbac.AssignableRoles(actor.Role); roles != nil {
			resp.AssignableRoles = roles
		}
	}
	respondOK(w, http.StatusOK, resp)
}

// CreateInvitationRequest is the body of POST /admin/invitations.
type CreateInvitationRequest struct {
	EmailAddress string `json:"emailAddress"`
	Role         string `json:"role"`
	RedirectURL  string `json:"redirectUrl"`
}

// CreateInvitation issues a new invitation.
// @Summary Create Invitation
// @Description Invite an e-mail address with a role the caller outranks
// @Tags Invitations
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param request body CreateInvitationRequest true "Invitation"
// @Success 201 {object} Response{data=invitation.Invitation}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/invitations [post]
func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invitation.KindValidation, "invalid request body")
		return
	}

	inv, err := h.invitations.Create(r.Context(), ActorFrom(r.Context()), invitation.CreateInput{
		EmailAddress: req.EmailAddress,
		Role:         req.Role,
		RedirectURL:  req.RedirectURL,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, inv)
}

// ListInvitations lists invitations, optionally filtered by ?status=.
// @Summary List Invitations
// @Description List invitations newest first
// @Tags Invitations
// @Produce json
// @Security CookieAuth
// @Security BearerAuth
// @Param status query string false "pending, accepted, revoked or expired"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} Response{data=[]invitation.Invitation}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/invitations [get]
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	list, err := h.invitations.List(r.Context(), ActorFrom(r.Context()), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, list)
}

func parseFilter(r *http.Request) (invitation.Filter, error) {
	var f invitation.Filter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, err := invitation.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be an integer", invitation.ErrValidation, name)
		}
		*dst = n
	}
	return f, nil
}

// RevokeInvitation revokes a pending invitation.
// @Summary Revoke Invitation
// @Tags Invitations
// @Produce json
// @Security CookieAuth
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param id path string true "Invitation ID"
// @Success 200 {object} Response{data=invitation.Invitation}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/invitations/{id}/revoke [post]
func (h *Handler) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invitations.Revoke(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, inv)
}

// UserResponse is the admin view of a user.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	FullName   string    `json:"fullName"`
	Role       rbac.Role `json:"role"`
	RoleName   string    `json:"roleName"`
	Department *string   `json:"department,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   u.FullName(),
		Role:       u.Role,
		RoleName:   rbac.DisplayName(u.Role),
		Department: u.Department,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// UpdateUserRoleRequest is the body of PUT /admin/users.
type UpdateUserRoleRequest struct {
	UserID     string  `json:"userId"`
	Role       string  `json:"role"`
	Department *string `json:"department,omitempty"`
}

// UpdateUserRole changes another user's role.
// @Summary Update User Role
// @Description Change a user's role and optionally their department
// @Tags Users
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param request body UpdateUserRoleRequest true "Role change"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/users [put]
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invitation.KindValidation, "invalid request body")
		return
	}

	user, err := h.identity.UpdateUserRole(r.Context(), ActorFrom(r.Context()), identity.UpdateRoleInput{
		UserID:     req.UserID,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, toUserResponse(user))
}

// GetUser returns one user.
// @Summary Get User
// @Tags Users
// @Produce json
// @Security CookieAuth
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.GetUser(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, toUserResponse(user))
}
