package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/smallbiznis/chatdesk/internal/conversation/domain"
	conversationrepo "github.com/smallbiznis/chatdesk/internal/conversation/repository"
	inboxdomain "github.com/smallbiznis/chatdesk/internal/inbox/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// racingRepo hides existing rows from the first lookups so GetOrCreate takes
// the insert path against a row that is already there.
type racingRepo struct {
	domain.Repository
	misses atomic.Int32
}

func (r *racingRepo) FindByContact(ctx context.Context, db *gorm.DB, accountID snowflake.ID, contact string) (*domain.Conversation, error) {
	if r.misses.Load() > 0 {
		r.misses.Add(-1)
		return nil, nil
	}
	return r.Repository.FindByContact(ctx, db, accountID, contact)
}

func TestGetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	first, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, " 628100 ", domain.ContactInfo{Name: "Budi"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "628100", first.Conversation.ContactIdentifier)
	assert.Equal(t, domain.StatusOpen, first.Conversation.Status)

	second, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628100", domain.ContactInfo{Name: "Someone else"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, "Budi", second.Conversation.ContactName)

	_, err = h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "  ", domain.ContactInfo{})
	assert.ErrorIs(t, err, domain.ErrInvalidContact)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	const workers = 8
	ids := make([]snowflake.ID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628200", domain.ContactInfo{})
			if assert.NoError(t, err) {
				ids[i] = res.Conversation.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(1), h.Count(t, "conversations", "account_id = ?", seeded.Account.ID))
}

func TestGetOrCreateLosesInsertRace(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{Repository: conversationrepo.Provide()}
	h := testkit.NewWithOptions(t, testkit.Options{ConversationRepo: repo})
	seeded := h.SeedAccount(t)

	winner, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628300", domain.ContactInfo{})
	require.NoError(t, err)

	repo.misses.Store(1)
	loser, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628300", domain.ContactInfo{})
	require.NoError(t, err)
	assert.False(t, loser.Created)
	assert.Equal(t, winner.Conversation.ID, loser.Conversation.ID)
	assert.Equal(t, int64(1), h.Count(t, "conversations", "account_id = ?", seeded.Account.ID))
}

func TestGetOrCreateAutoAssigns(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	agent := h.AddAgent(t, seeded.Account.ID, "Sari", accountdomain.AvailabilityOnline)

	inbox, err := h.Inboxes.Create(ctx, inboxdomain.CreateRequest{AccountID: seeded.Account.ID, Name: "Support"})
	require.NoError(t, err)
	require.NoError(t, h.Inboxes.AddMember(ctx, seeded.Account.ID, inbox.ID, agent.ID))
	require.NoError(t, h.Inboxes.ConfigureAutoAssignment(ctx, seeded.Account.ID, inbox.ID, inboxdomain.AutoAssignment{Enabled: true}))

	res, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628400", domain.ContactInfo{InboxID: &inbox.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Conversation.InboxID)
	require.NotNil(t, res.Conversation.AssignedAgentID)
	assert.Equal(t, agent.ID, *res.Conversation.AssignedAgentID)

	// an inbox of another account is ignored
	other := h.SeedAccount(t)
	foreign, err := h.Conversations.GetOrCreate(ctx, other.Account.ID, "628400", domain.ContactInfo{InboxID: &inbox.ID})
	require.NoError(t, err)
	assert.Nil(t, foreign.Conversation.InboxID)
	assert.Nil(t, foreign.Conversation.AssignedAgentID)
}

func TestListOrdersByLastMessageNullsLast(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	accountID := seeded.Account.ID

	create := func(contact string) *domain.Conversation {
		res, err := h.Conversations.GetOrCreate(ctx, accountID, contact, domain.ContactInfo{})
		require.NoError(t, err)
		return res.Conversation
	}
	silent := create("contact-silent")
	older := create("contact-older")
	newer := create("contact-newer")

	require.NoError(t, h.Conversations.UpdateLastMessage(ctx, accountID, older.ID, "old", testkit.Epoch.Add(time.Minute)))
	require.NoError(t, h.Conversations.UpdateLastMessage(ctx, accountID, newer.ID, "new", testkit.Epoch.Add(time.Hour)))

	req := domain.ListRequest{AccountID: accountID}
	req.PageSize = 2
	page, err := h.Conversations.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Conversations, 2)
	assert.Equal(t, newer.ID, page.Conversations[0].ID)
	assert.Equal(t, older.ID, page.Conversations[1].ID)
	require.True(t, page.HasMore)

	req.PageToken = page.NextPageToken
	rest, err := h.Conversations.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, rest.Conversations, 1)
	assert.Equal(t, silent.ID, rest.Conversations[0].ID)
	assert.False(t, rest.HasMore)
}

func TestUpdateLastMessageIsMonotonic(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	res, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628500", domain.ContactInfo{})
	require.NoError(t, err)
	id := res.Conversation.ID

	require.NoError(t, h.Conversations.UpdateLastMessage(ctx, seeded.Account.ID, id, "latest", testkit.Epoch.Add(time.Hour)))
	require.NoError(t, h.Conversations.UpdateLastMessage(ctx, seeded.Account.ID, id, "late arrival", testkit.Epoch.Add(time.Minute)))

	stored, err := h.Conversations.GetByID(ctx, seeded.Account.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "latest", stored.LastMessagePreview)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	accountID := seeded.Account.ID

	alpha, err := h.Conversations.GetOrCreate(ctx, accountID, "628600", domain.ContactInfo{Name: "Alpha 100%"})
	require.NoError(t, err)
	beta, err := h.Conversations.GetOrCreate(ctx, accountID, "628601", domain.ContactInfo{Name: "Beta"})
	require.NoError(t, err)

	_, err = h.Conversations.UpdateStatus(ctx, accountID, beta.Conversation.ID, domain.StatusResolved)
	require.NoError(t, err)
	_, err = h.Conversations.Assign(ctx, accountID, alpha.Conversation.ID, &seeded.Owner.ID)
	require.NoError(t, err)

	label, err := h.Conversations.CreateLabel(ctx, accountID, "vip", "#ff0000")
	require.NoError(t, err)
	require.NoError(t, h.Conversations.AddLabel(ctx, accountID, beta.Conversation.ID, label.ID))

	list := func(req domain.ListRequest) []snowflake.ID {
		req.AccountID = accountID
		res, err := h.Conversations.List(ctx, req)
		require.NoError(t, err)
		ids := make([]snowflake.ID, 0, len(res.Conversations))
		for _, c := range res.Conversations {
			ids = append(ids, c.ID)
		}
		return ids
	}

	assert.Equal(t, []snowflake.ID{beta.Conversation.ID}, list(domain.ListRequest{Status: "resolved"}))
	assert.Equal(t, []snowflake.ID{alpha.Conversation.ID}, list(domain.ListRequest{AssignedAgentID: &seeded.Owner.ID}))
	assert.Equal(t, []snowflake.ID{beta.Conversation.ID}, list(domain.ListRequest{LabelID: &label.ID}))
	assert.Equal(t, []snowflake.ID{alpha.Conversation.ID}, list(domain.ListRequest{Query: "100%"}))
	assert.Equal(t, []snowflake.ID{beta.Conversation.ID}, list(domain.ListRequest{Query: "BETA"}))
	assert.Empty(t, list(domain.ListRequest{Query: "10_"}))
	assert.Empty(t, list(domain.ListRequest{UnreadOnly: true}))

	_, err = h.Conversations.List(ctx, domain.ListRequest{AccountID: accountID, Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCrossAccountAccessHidden(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	owner := h.SeedAccount(t)
	intruder := h.SeedAccount(t)

	res, err := h.Conversations.GetOrCreate(ctx, owner.Account.ID, "628700", domain.ContactInfo{})
	require.NoError(t, err)

	_, err = h.Conversations.GetByID(ctx, intruder.Account.ID, res.Conversation.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.Conversations.Assign(ctx, owner.Account.ID, res.Conversation.ID, &intruder.Owner.ID)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
