package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/chatdesk/internal/account/domain"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccountWithOwner(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	assert.Equal(t, domain.RoleOwner, seeded.Owner.Role)
	assert.Equal(t, seeded.Account.ID, seeded.Owner.AccountID)

	found, err := h.Accounts.GetByGatewayToken(ctx, seeded.Token)
	require.NoError(t, err)
	assert.Equal(t, seeded.Account.ID, found.Account.ID)
	assert.Equal(t, seeded.Tenant.ID, found.Tenant.ID)

	_, _, err = h.Accounts.Create(ctx, domain.CreateAccountRequest{
		TenantID:     seeded.Tenant.ID,
		Name:         "Copy",
		OwnerUserID:  h.GenID.Generate(),
		OwnerEmail:   "copy@example.com",
		GatewayToken: seeded.Token,
	})
	assert.ErrorIs(t, err, domain.ErrGatewayTokenTaken)

	_, err = h.Accounts.GetByGatewayToken(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAccountValidation(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)

	tenant, err := h.Tenants.Provision(ctx, tenantdomain.ProvisionRequest{Name: "Dormant"})
	require.NoError(t, err)
	_, err = h.Tenants.UpdateStatus(ctx, tenant.ID, tenantdomain.StatusInactive)
	require.NoError(t, err)

	base := domain.CreateAccountRequest{
		TenantID:     tenant.ID,
		Name:         "Shop",
		OwnerEmail:   "owner@example.com",
		GatewayToken: "tok",
	}

	_, _, err = h.Accounts.Create(ctx, base)
	assert.ErrorIs(t, err, domain.ErrTenantInactive)

	missing := base
	missing.TenantID = h.GenID.Generate()
	_, _, err = h.Accounts.Create(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	noToken := base
	noToken.GatewayToken = " "
	_, _, err = h.Accounts.Create(ctx, noToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	badEmail := base
	badEmail.OwnerEmail = "owner"
	_, _, err = h.Accounts.Create(ctx, badEmail)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestAgentsByAvailability(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	online := h.AddAgent(t, seeded.Account.ID, "Online", domain.AvailabilityOnline)
	busy := h.AddAgent(t, seeded.Account.ID, "Busy", domain.AvailabilityBusy)
	h.AddAgent(t, seeded.Account.ID, "Offline", domain.AvailabilityOffline)

	agents, err := h.Accounts.ListActiveByAvailability(ctx, seeded.Account.ID, []domain.Availability{
		domain.AvailabilityOnline, domain.AvailabilityBusy,
	})
	require.NoError(t, err)
	ids := make(map[string]bool, len(agents))
	for _, agent := range agents {
		ids[agent.ID.String()] = true
	}
	assert.Len(t, agents, 2)
	assert.True(t, ids[online.ID.String()])
	assert.True(t, ids[busy.ID.String()])

	err = h.Accounts.UpdateAvailability(ctx, seeded.Account.ID, online.ID, domain.Availability("away"))
	assert.ErrorIs(t, err, domain.ErrInvalidAvailability)

	other := h.SeedAccount(t)
	err = h.Accounts.UpdateAvailability(ctx, other.Account.ID, online.ID, domain.AvailabilityBusy)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestCreateAgentDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	_, err := h.Accounts.CreateAgent(ctx, domain.CreateAgentRequest{
		AccountID: seeded.Account.ID,
		Name:      "Twin",
		Email:     " " + seeded.Owner.Email + " ",
		Role:      domain.RoleAgent,
	})
	assert.ErrorIs(t, err, domain.ErrAgentEmailTaken)

	_, err = h.Accounts.CreateAgent(ctx, domain.CreateAgentRequest{
		AccountID: seeded.Account.ID,
		Name:      "Boss",
		Email:     "boss@example.com",
		Role:      domain.Role("superuser"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestStartSessionStoresHashOnly(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	session, err := h.Accounts.StartSession(ctx, seeded.Account.ID, seeded.Owner.ID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.NotEqual(t, session.Token, session.Session.TokenHash)
	assert.Equal(t, testkit.Epoch.Add(time.Hour), session.Session.ExpiresAt)

	assert.Equal(t, int64(0), h.Count(t, "agent_sessions", "token_hash = ?", session.Token))
	assert.Equal(t, int64(1), h.Count(t, "agent_sessions", "token_hash = ?", session.Session.TokenHash))
}

func TestInviteRejectsOwnerRole(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	_, err := h.Accounts.Invite(ctx, seeded.Account.ID, "new@example.com", domain.RoleOwner)
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	invitation, err := h.Accounts.Invite(ctx, seeded.Account.ID, "New@Example.com", domain.RoleAgent)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", invitation.Email)
	assert.Equal(t, domain.InvitationPending, invitation.Status)
}
