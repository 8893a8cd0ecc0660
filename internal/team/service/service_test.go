package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/smallbiznis/chatdesk/internal/team/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamMembership(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	agent := h.AddAgent(t, seeded.Account.ID, "Rina", accountdomain.AvailabilityOnline)

	team, err := h.Teams.Create(ctx, seeded.Account.ID, "Billing", "invoices and refunds")
	require.NoError(t, err)

	_, err = h.Teams.Create(ctx, seeded.Account.ID, "Billing", "")
	assert.ErrorIs(t, err, domain.ErrNameTaken)

	result := h.Teams.AddMembers(ctx, seeded.Account.ID, team.ID, []snowflake.ID{agent.ID, seeded.Owner.ID, h.GenID.Generate()})
	assert.Len(t, result.Added, 2)
	assert.Len(t, result.Failed, 1)

	members, err := h.Teams.ListMemberIDs(ctx, seeded.Account.ID, team.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{agent.ID, seeded.Owner.ID}, members)

	require.NoError(t, h.Teams.RemoveMember(ctx, seeded.Account.ID, team.ID, agent.ID))
	assert.ErrorIs(t, h.Teams.RemoveMember(ctx, seeded.Account.ID, team.ID, agent.ID), domain.ErrMemberNotFound)

	other := h.SeedAccount(t)
	_, err = h.Teams.GetByID(ctx, other.Account.ID, team.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
