package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/smallbiznis/chatdesk/internal/inbox/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMembersBestEffort(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	other := h.SeedAccount(t)

	a := h.AddAgent(t, seeded.Account.ID, "A", accountdomain.AvailabilityOnline)
	b := h.AddAgent(t, seeded.Account.ID, "B", accountdomain.AvailabilityOnline)
	foreign := h.AddAgent(t, other.Account.ID, "Foreign", accountdomain.AvailabilityOnline)

	inbox, err := h.Inboxes.Create(ctx, domain.CreateRequest{AccountID: seeded.Account.ID, Name: "Sales"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelWhatsApp, inbox.ChannelType)

	result := h.Inboxes.AddMembers(ctx, seeded.Account.ID, inbox.ID, []snowflake.ID{a.ID, foreign.ID, b.ID})
	assert.ElementsMatch(t, []snowflake.ID{a.ID, b.ID}, result.Added)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[foreign.ID], domain.ErrAgentNotFound)

	// re-adding is a no-op
	require.NoError(t, h.Inboxes.AddMember(ctx, seeded.Account.ID, inbox.ID, a.ID))

	members, err := h.Inboxes.ListMemberIDs(ctx, seeded.Account.ID, inbox.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{a.ID, b.ID}, members)

	require.NoError(t, h.Inboxes.RemoveMember(ctx, seeded.Account.ID, inbox.ID, b.ID))
	err = h.Inboxes.RemoveMember(ctx, seeded.Account.ID, inbox.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	_, err = h.Inboxes.ListMemberIDs(ctx, other.Account.ID, inbox.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPickAgentRoundRobin(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	a := h.AddAgent(t, seeded.Account.ID, "A", accountdomain.AvailabilityOnline)
	b := h.AddAgent(t, seeded.Account.ID, "B", accountdomain.AvailabilityOnline)
	inbox, err := h.Inboxes.Create(ctx, domain.CreateRequest{AccountID: seeded.Account.ID, Name: "Support"})
	require.NoError(t, err)
	result := h.Inboxes.AddMembers(ctx, seeded.Account.ID, inbox.ID, []snowflake.ID{a.ID, b.ID})
	require.Empty(t, result.Failed)

	picked, err := h.Inboxes.PickAgent(ctx, seeded.Account.ID, inbox.ID)
	require.NoError(t, err)
	assert.Nil(t, picked, "auto assignment disabled by default")

	require.NoError(t, h.Inboxes.ConfigureAutoAssignment(ctx, seeded.Account.ID, inbox.ID, domain.AutoAssignment{Enabled: true}))

	first, second := a.ID, b.ID
	if second < first {
		first, second = second, first
	}
	var got []snowflake.ID
	for i := 0; i < 3; i++ {
		picked, err := h.Inboxes.PickAgent(ctx, seeded.Account.ID, inbox.ID)
		require.NoError(t, err)
		require.NotNil(t, picked)
		got = append(got, *picked)
	}
	assert.Equal(t, []snowflake.ID{first, second, first}, got)

	require.NoError(t, h.Inboxes.ConfigureAutoAssignment(ctx, seeded.Account.ID, inbox.ID, domain.AutoAssignment{
		Enabled:  true,
		AgentIDs: []string{b.ID.String()},
	}))
	for i := 0; i < 2; i++ {
		picked, err := h.Inboxes.PickAgent(ctx, seeded.Account.ID, inbox.ID)
		require.NoError(t, err)
		require.NotNil(t, picked)
		assert.Equal(t, b.ID, *picked)
	}
}

func TestFindByGatewayToken(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	inbox, err := h.Inboxes.Create(ctx, domain.CreateRequest{
		AccountID:    seeded.Account.ID,
		Name:         "Main number",
		GatewayToken: seeded.Token,
	})
	require.NoError(t, err)

	found, err := h.Inboxes.FindByGatewayToken(ctx, seeded.Account.ID, seeded.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, inbox.ID, found.ID)

	missing, err := h.Inboxes.FindByGatewayToken(ctx, seeded.Account.ID, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = h.Inboxes.Create(ctx, domain.CreateRequest{AccountID: seeded.Account.ID, Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}
