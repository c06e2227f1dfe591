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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lexguard/lexguard/internal/id"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/rbac"
)

const invitationColumns = `id, email, role, status, invited_by, redirect_url, created_at, updated_at`

// InvitationRepository implements invitation.Provider and
// invitation.AcceptanceRecorder on PostgreSQL, delivering mail through a Mailer.
type InvitationRepository struct {
	db     *DB
	mailer invitation.Mailer
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *DB, mailer invitation.Mailer) *InvitationRepository {
	return &InvitationRepository{db: db, mailer: mailer}
}

func scanInvitation(row pgx.Row) (*invitation.Invitation, error) {
	var (
		inv    invitation.Invitation
		role   string
		status string
	)
	if err := row.Scan(
		&inv.ID, &inv.EmailAddress, &role, &status, &inv.InvitedBy, &inv.RedirectURL,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.Role = rbac.ParseRole(role)
	inv.Status = invitation.Status(status)
	return &inv, nil
}

// storeErr maps driver errors into invitation sentinels.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return invitation.ErrNotFound
	case isUniqueViolation(err):
		return invitation.ErrDuplicatePending
	case isServerError(err):
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", invitation.ErrProviderUnavailable, op, err)
}

// Create inserts a pending invitation and sends it. If delivery fails the
// row is removed again so the admin can retry.
func (r *InvitationRepository) Create(ctx context.Context, p invitation.CreateParams) (*invitation.Invitation, error) {
	now := time.Now().UTC()
	row := r.db.pool.QueryRow(ctx, `
		INSERT INTO invitations (id, email, role, status, invited_by, redirect_url, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6, $6)
		RETURNING `+invitationColumns,
		id.NewUUIDv7(), strings.ToLower(p.EmailAddress), string(p.Role), p.InvitedBy, p.RedirectURL, now,
	)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, storeErr("insert invitation", err)
	}

	if r.mailer != nil {
		if err := r.mailer.SendInvitation(ctx, inv); err != nil {
			if _, delErr := r.db.pool.Exec(context.WithoutCancel(ctx), `DELETE FROM invitations WHERE id = $1`, inv.ID); delErr != nil {
				return nil, fmt.Errorf("failed to roll back undelivered invitation %s: %w", inv.ID, delErr)
			}
			return nil, fmt.Errorf("%w: delivering invitation: %v", invitation.ErrProviderUnavailable, err)
		}
	}
	return inv, nil
}

// List returns invitations newest first.
func (r *InvitationRepository) List(ctx context.Context, f invitation.Filter) ([]*invitation.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations`
	var args []any
	if f.Status != nil {
		args = append(args, string(*f.Status))
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list invitations", err)
	}
	defer rows.Close()

	out := []*invitation.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, storeErr("scan invitation", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list invitations", err)
	}
	return out, nil
}

// Get retrieves an invitation by ID
func (r *InvitationRepository) Get(ctx context.Context, invID string) (*invitation.Invitation, error) {
	inv, err := scanInvitation(r.db.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, invID))
	if err != nil {
		return nil, storeErr("get invitation", err)
	}
	return inv, nil
}

// Revoke performs a conditional update so two concurrent revokes cannot both
// succeed. When nothing was updated, a follow-up read says why.
func (r *InvitationRepository) Revoke(ctx context.Context, invID string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE invitations
		SET status = 'revoked', revoked_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, invID)
	if err != nil {
		return storeErr("revoke invitation", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	inv, err := r.Get(ctx, invID)
	if err != nil {
		return err
	}
	if err := invitation.Transition(inv.Status, invitation.StatusRevoked); err != nil {
		return err
	}
	// Pending again between the two statements; report as a conflict.
	return fmt.Errorf("%w: concurrent update", invitation.ErrInvalidTransition)
}

// MarkAccepted accepts the pending invitation for email. Without one, the
// most recently accepted invitation for email is returned unchanged.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, email string) (*invitation.Invitation, bool, error) {
	inv, err := scanInvitation(r.db.pool.QueryRow(ctx, `
		UPDATE invitations
		SET status = 'accepted', accepted_at = now(), updated_at = now()
		WHERE lower(email) = lower($1) AND status = 'pending'
		RETURNING `+invitationColumns, email))
	if err == nil {
		return inv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, storeErr("accept invitation", err)
	}

	inv, err = scanInvitation(r.db.pool.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE lower(email) = lower($1) AND status = 'accepted'
		ORDER BY accepted_at DESC NULLS LAST, id DESC
		LIMIT 1`, email))
	if err != nil {
		return nil, false, storeErr("find accepted invitation", err)
	}
	return inv, false, nil
}

var (
	_ invitation.Provider           = (*InvitationRepository)(nil)
	_ invitation.AcceptanceRecorder = (*InvitationRepository)(nil)
)
