package invitation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/lexguard/lexguard/internal/audit"
	"github.com/lexguard/lexguard/internal/authz"
	"github.com/lexguard/lexguard/internal/invitation"
	"github.com/lexguard/lexguard/internal/invitation/invitationtest"
	"github.com/lexguard/lexguard/internal/observability/metrics"
	"github.com/lexguard/lexguard/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newService(p invitation.Provider) (*invitation.Service, *audit.MemoryLogger) {
	log := &audit.MemoryLogger{}
	return invitation.NewService(p, authz.NewService(log, metrics.Noop()), log, metrics.Noop()), log
}

var (
	superadmin = authz.NewActor("user_super", "superadmin")
	admin      = authz.NewActor("user_admin", "admin")
	developer  = authz.NewActor("user_dev", "developer")
)

// TestPurpose: Superadmin invites a user, revokes it, and a second revoke fails explicitly.
// Scope: Integration Test (service + in-memory provider)
// Permissions: manage_invitations
// Expected: Created pending; first revoke succeeds with status revoked; second revoke returns ErrAlreadyRevoked.
// Test Case ID: INV-03
func TestInvitation_Service_CreateThenRevokeTwice(t *testing.T) {
	ctx := context.Background()
	provider := invitationtest.NewProvider()
	svc, log := newService(provider)

	inv, err := svc.Create(ctx, superadmin, invitation.CreateInput{EmailAddress: "New@Example.com", Role: "USER"})
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusPending, inv.Status)
	assert.Equal(t, "new@example.com", inv.EmailAddress)
	assert.Equal(t, rbac.RoleUser, inv.Role)
	assert.Equal(t, "user_super", inv.InvitedBy)

	revoked, err := svc.Revoke(ctx, superadmin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusRevoked, revoked.Status)

	stored, err := provider.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusRevoked, stored.Status)

	_, err = svc.Revoke(ctx, superadmin, inv.ID)
	assert.ErrorIs(t, err, invitation.ErrAlreadyRevoked)
	assert.Equal(t, invitation.KindConflict, invitation.Kind(err))

	assert.Len(t, log.OfType(audit.TypeInvitationCreated), 1)
	assert.Len(t, log.OfType(audit.TypeInvitationRevoked), 1)
}

// TestPurpose: Validates that accepted invitations can never be revoked.
// Scope: Unit Test
// Expected: ErrAlreadyAccepted; the provider revoke is never called.
// Test Case ID: INV-04
func TestInvitation_Service_RevokeAccepted(t *testing.T) {
	ctx := context.Background()
	provider := invitationtest.NewProvider()
	svc, _ := newService(provider)

	inv, err := svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "a@firm.example", Role: "developer"})
	require.NoError(t, err)
	require.NoError(t, provider.Accept(inv.ID))

	_, err = svc.Revoke(ctx, admin, inv.ID)
	assert.ErrorIs(t, err, invitation.ErrAlreadyAccepted)
	assert.Zero(t, provider.Calls["Revoke"])
}

// TestPurpose: Validates duplicate pending detection, case-insensitively.
// Scope: Unit Test
// Expected: ErrDuplicatePending while pending; a new invite is allowed once the old one is revoked.
// Test Case ID: INV-05
func TestInvitation_Service_DuplicatePending(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(invitationtest.NewProvider())

	first, err := svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "dup@firm.example", Role: "user"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "DUP@firm.example", Role: "developer"})
	assert.ErrorIs(t, err, invitation.ErrDuplicatePending)

	_, err = svc.Revoke(ctx, admin, first.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "dup@firm.example", Role: "developer"})
	assert.NoError(t, err)
}

// TestPurpose: Validates authorization and input checks on create.
// Scope: Unit Test
// Security: Privilege escalation through invitations (CWE-269)
// Permissions: manage_invitations
// Expected: Developers are forbidden; admins cannot invite admins or superadmins; bad input is a validation error; the provider is untouched.
// Test Case ID: INV-06
func TestInvitation_Service_CreateRejections(t *testing.T) {
	tests := []struct {
		name  string
		actor authz.Actor
		in    invitation.CreateInput
		want  error
	}{
		{"developer lacks permission", developer, invitation.CreateInput{EmailAddress: "x@firm.example", Role: "user"}, authz.ErrForbidden},
		{"anonymous", authz.Anonymous(), invitation.CreateInput{EmailAddress: "x@firm.example", Role: "user"}, authz.ErrUnauthenticated},
		{"admin invites admin", admin, invitation.CreateInput{EmailAddress: "x@firm.example", Role: "admin"}, authz.ErrForbidden},
		{"admin invites superadmin", admin, invitation.CreateInput{EmailAddress: "x@firm.example", Role: "superadmin"}, authz.ErrForbidden},
		{"bad email", admin, invitation.CreateInput{EmailAddress: "not-an-email", Role: "user"}, invitation.ErrValidation},
		{"unknown role", admin, invitation.CreateInput{EmailAddress: "x@firm.example", Role: "partner"}, invitation.ErrValidation},
		{"bad redirect", admin, invitation.CreateInput{EmailAddress: "x@firm.example", Role: "user", RedirectURL: "javascript:alert(1)"}, invitation.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := invitationtest.NewProvider()
			svc, _ := newService(provider)
			_, err := svc.Create(context.Background(), tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, provider.Calls["Create"])
		})
	}
}

// TestPurpose: Validates that superadmin may invite any role, including superadmin.
// Scope: Unit Test
// Expected: Every role is grantable by the top role.
// Test Case ID: INV-07
func TestInvitation_Service_SuperadminInvitesAnyRole(t *testing.T) {
	svc, _ := newService(invitationtest.NewProvider())
	for i, r := range rbac.Roles() {
		_, err := svc.Create(context.Background(), superadmin, invitation.CreateInput{
			EmailAddress: fmt.Sprintf("p%d@firm.example", i),
			Role:         string(r),
			RedirectURL:  "https://firm.example/sign-up",
		})
		assert.NoError(t, err, "role %s", r)
	}
}

// MockProvider lets tests script provider failures and races.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Create(ctx context.Context, p invitation.CreateParams) (*invitation.Invitation, error) {
	args := m.Called(ctx, p)
	inv, _ := args.Get(0).(*invitation.Invitation)
	return inv, args.Error(1)
}

func (m *MockProvider) List(ctx context.Context, f invitation.Filter) ([]*invitation.Invitation, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]*invitation.Invitation)
	return out, args.Error(1)
}

func (m *MockProvider) Get(ctx context.Context, id string) (*invitation.Invitation, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*invitation.Invitation)
	return inv, args.Error(1)
}

func (m *MockProvider) Revoke(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// TestPurpose: Validates that a concurrent acceptance between read and revoke surfaces as a conflict.
// Scope: Unit Test
// Expected: The provider's ErrAlreadyAccepted propagates; no revoke is audited.
// Test Case ID: INV-08
func TestInvitation_Service_RevokeRace(t *testing.T) {
	p := new(MockProvider)
	p.On("Get", mock.Anything, "inv_1").Return(&invitation.Invitation{ID: "inv_1", Role: rbac.RoleUser, Status: invitation.StatusPending}, nil)
	p.On("Revoke", mock.Anything, "inv_1").Return(invitation.ErrAlreadyAccepted)

	svc, log := newService(p)
	_, err := svc.Revoke(context.Background(), admin, "inv_1")
	assert.ErrorIs(t, err, invitation.ErrAlreadyAccepted)
	assert.Empty(t, log.OfType(audit.TypeInvitationRevoked))
	p.AssertExpectations(t)
}

// TestPurpose: Validates that provider outages are reported as retryable and never retried internally.
// Scope: Unit Test
// Expected: Retryable error; the provider is called once.
// Test Case ID: INV-09
func TestInvitation_Service_ProviderUnavailable(t *testing.T) {
	p := new(MockProvider)
	p.On("List", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("dial tcp: %w", invitation.ErrProviderUnavailable)).Once()

	svc, _ := newService(p)
	_, err := svc.List(context.Background(), admin, invitation.Filter{})
	assert.True(t, invitation.Retryable(err))
	p.AssertNumberOfCalls(t, "List", 1)
}

// TestPurpose: Validates listing filters and defaults.
// Scope: Unit Test
// Expected: Status filter is applied; default limit is used; negative paging is rejected.
// Test Case ID: INV-10
func TestInvitation_Service_List(t *testing.T) {
	ctx := context.Background()
	provider := invitationtest.NewProvider()
	svc, _ := newService(provider)

	a, err := svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "a@firm.example", Role: "user"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "b@firm.example", Role: "user"})
	require.NoError(t, err)
	_, err = svc.Revoke(ctx, admin, a.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, admin, invitation.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b@firm.example", all[0].EmailAddress, "newest first")

	revoked := invitation.StatusRevoked
	only, err := svc.List(ctx, admin, invitation.Filter{Status: &revoked})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, a.ID, only[0].ID)

	_, err = svc.List(ctx, admin, invitation.Filter{Offset: -1})
	assert.ErrorIs(t, err, invitation.ErrValidation)

	_, err = svc.List(ctx, developer, invitation.Filter{})
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

// TestPurpose: Validates webhook-driven acceptance for local providers.
// Scope: Unit Test
// Expected: The pending invitation becomes accepted and is audited; unknown emails are ignored.
// Test Case ID: INV-11
func TestInvitation_Service_RecordAcceptance(t *testing.T) {
	ctx := context.Background()
	provider := invitationtest.NewProvider()
	svc, log := newService(provider)

	inv, err := svc.Create(ctx, admin, invitation.CreateInput{EmailAddress: "joiner@firm.example", Role: "content_creator"})
	require.NoError(t, err)

	got, err := svc.RecordAcceptance(ctx, "Joiner@Firm.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, invitation.StatusAccepted, got.Status)
	assert.Len(t, log.OfType(audit.TypeInvitationAccepted), 1)

	// Redelivery resolves to the same invitation without a second audit.
	again, err := svc.RecordAcceptance(ctx, "joiner@firm.example")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, rbac.RoleContentCreator, again.Role)
	assert.Len(t, log.OfType(audit.TypeInvitationAccepted), 1)

	got, err = svc.RecordAcceptance(ctx, "stranger@firm.example")
	assert.NoError(t, err)
	assert.Nil(t, got)

	// Providers that track acceptance themselves need nothing recorded.
	mp := new(MockProvider)
	svc2, _ := newService(mp)
	got, err = svc2.RecordAcceptance(ctx, "joiner@firm.example")
	assert.NoError(t, err)
	assert.Nil(t, got)
	mp.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
