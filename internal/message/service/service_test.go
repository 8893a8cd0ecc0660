package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	"github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversation(t *testing.T, h *testkit.Harness, seeded *testkit.Seeded, contact string) *conversationdomain.Conversation {
	t.Helper()
	res, err := h.Conversations.GetOrCreate(context.Background(), seeded.Account.ID, contact, conversationdomain.ContactInfo{Name: "Contact"})
	require.NoError(t, err)
	return res.Conversation
}

func unreadOf(t *testing.T, h *testkit.Harness, id snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.DB.Raw("SELECT unread_count FROM conversations WHERE id = ?", id).Scan(&count).Error)
	return count
}

func TestAppendDuplicateThenMarkRead(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6281234567890")

	first, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		ExternalMessageID: "m1",
		Direction:         domain.DirectionIncoming,
		Content:           "hello",
	})
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, int64(1), unreadOf(t, h, conv.ID))

	second, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		ExternalMessageID: "m1",
		Direction:         domain.DirectionIncoming,
		Content:           "hello again",
	})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Message.ID, second.Message.ID)
	assert.Equal(t, "hello", second.Message.Content)
	assert.Equal(t, int64(1), unreadOf(t, h, conv.ID))
	assert.Equal(t, int64(1), h.Count(t, "chat_messages", "conversation_id = ?", conv.ID))

	read, err := h.Unread.MarkRead(ctx, seeded.Account.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), read.MessagesRead)
	assert.Equal(t, int64(0), unreadOf(t, h, conv.ID))

	actual, err := h.Unread.Recompute(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), actual)
}

func TestAppendDefaults(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6281111")

	cases := []struct {
		name       string
		req        domain.AppendRequest
		wantStatus domain.Status
		wantSender domain.SenderType
	}{
		{
			name:       "incoming",
			req:        domain.AppendRequest{Direction: domain.DirectionIncoming, Content: "hi"},
			wantStatus: domain.StatusDelivered,
			wantSender: domain.SenderContact,
		},
		{
			name:       "agent reply",
			req:        domain.AppendRequest{Direction: domain.DirectionOutgoing, Content: "hello", SenderAgentID: &seeded.Owner.ID},
			wantStatus: domain.StatusPending,
			wantSender: domain.SenderAgent,
		},
		{
			name:       "bot reply",
			req:        domain.AppendRequest{Direction: domain.DirectionOutgoing, Content: "auto", SenderBotID: "bot-1"},
			wantStatus: domain.StatusSent,
			wantSender: domain.SenderBot,
		},
		{
			name:       "private note",
			req:        domain.AppendRequest{Direction: domain.DirectionOutgoing, Content: "internal", IsPrivateNote: true},
			wantStatus: domain.StatusSent,
			wantSender: domain.SenderUser,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, res.Message.Status)
			assert.Equal(t, tc.wantSender, res.Message.SenderType)
			assert.Equal(t, domain.TypeText, res.Message.Type)
		})
	}
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6282222")

	_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Content:   "   ",
	})
	assert.ErrorIs(t, err, domain.ErrBlankContent)

	_, err = h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Type:      domain.TypeImage,
	})
	assert.ErrorIs(t, err, domain.ErrMissingMedia)

	_, err = h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Type:      domain.TypePoll,
		Content:   "vote",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Payload: &domain.Payload{
			Kind: domain.PayloadPoll,
			Poll: &domain.Poll{Question: "Lunch?", Options: []string{"yes"}},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	// blank incoming content is accepted; the contact may send media only
	res, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionIncoming,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Message.Content)

	_, err = h.Messages.Append(ctx, seeded.Account.ID, h.GenID.Generate(), domain.AppendRequest{
		Direction: domain.DirectionIncoming,
		Content:   "lost",
	})
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestAppendPollPayload(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6283333")

	res, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Payload: &domain.Payload{
			Kind: domain.PayloadPoll,
			Poll: &domain.Poll{Question: "Lunch?", Options: []string{"yes", "no"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TypePoll, res.Message.Type)

	got, err := h.Messages.GetByExternalOrInternalID(ctx, seeded.Account.ID, conv.ID, res.Message.ID.String())
	require.NoError(t, err)
	require.NotNil(t, got.Payload)
	require.NotNil(t, got.Payload.Poll)
	assert.Equal(t, []string{"yes", "no"}, got.Payload.Poll.Options)

	stored, err := h.Conversations.GetByID(ctx, seeded.Account.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lunch?", stored.LastMessagePreview)
}

func TestPrivateNoteSkipsPreviewAndUnread(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6284444")

	_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionIncoming,
		Content:   "need help",
	})
	require.NoError(t, err)

	h.Clock.Advance(time.Minute)
	_, err = h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction:     domain.DirectionOutgoing,
		Content:       "customer is VIP",
		IsPrivateNote: true,
	})
	require.NoError(t, err)

	stored, err := h.Conversations.GetByID(ctx, seeded.Account.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "need help", stored.LastMessagePreview)
	assert.Equal(t, int64(1), stored.UnreadCount)

	list, err := h.Messages.List(ctx, domain.ListRequest{
		AccountID:      seeded.Account.ID,
		ConversationID: conv.ID,
		ContactVisible: true,
	})
	require.NoError(t, err)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "need help", list.Messages[0].Content)
}

func TestPreviewTruncated(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6285555")

	long := ""
	for i := 0; i < 30; i++ {
		long += "héllo "
	}
	_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionIncoming,
		Content:   long,
	})
	require.NoError(t, err)

	stored, err := h.Conversations.GetByID(ctx, seeded.Account.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, len([]rune(stored.LastMessagePreview)))
}

func TestStatusOnlyAdvances(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6286666")

	res, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		ExternalMessageID: "out-1",
		Direction:         domain.DirectionOutgoing,
		Content:           "hello",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, res.Message.Status)

	updated, err := h.Messages.UpdateStatusByExternalID(ctx, seeded.Account.ID, conv.ID, "out-1", domain.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, updated.Status)

	stale, err := h.Messages.UpdateStatusByExternalID(ctx, seeded.Account.ID, conv.ID, "out-1", domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, stale.Status)

	failed, err := h.Messages.MarkFailed(ctx, seeded.Account.ID, res.Message.ID, "rejected")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, failed.Status)

	_, err = h.Messages.UpdateStatusByExternalID(ctx, seeded.Account.ID, conv.ID, "missing", domain.StatusRead)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIncomingReadStatusDecrementsUnread(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6287777")

	for _, id := range []string{"in-1", "in-2"} {
		_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
			ExternalMessageID: id,
			Direction:         domain.DirectionIncoming,
			Content:           id,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), unreadOf(t, h, conv.ID))

	_, err := h.Messages.UpdateStatusByExternalID(ctx, seeded.Account.ID, conv.ID, "in-1", domain.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unreadOf(t, h, conv.ID))

	actual, err := h.Unread.Recompute(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), actual)
}

func TestMarkSentRecordsProviderID(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6288888")

	res, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Content:   "hello",
	})
	require.NoError(t, err)

	sent, err := h.Messages.MarkSent(ctx, seeded.Account.ID, res.Message.ID, "wamid.1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.ExternalMessageID)
	assert.Equal(t, "wamid.1", *sent.ExternalMessageID)

	delivered, err := h.Messages.UpdateStatusByExternalID(ctx, seeded.Account.ID, conv.ID, "wamid.1", domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)
}

func TestReactionsSinglePerReactor(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6289999")

	res, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		ExternalMessageID: "m1",
		Direction:         domain.DirectionIncoming,
		Content:           "hello",
	})
	require.NoError(t, err)
	msgID := res.Message.ID

	_, err = h.Messages.UpsertReaction(ctx, seeded.Account.ID, msgID, "6289999", "👍")
	require.NoError(t, err)
	reaction, err := h.Messages.UpsertReaction(ctx, seeded.Account.ID, msgID, "6289999", "❤️")
	require.NoError(t, err)
	assert.Equal(t, "❤️", reaction.Emoji)

	reactions, err := h.Messages.ListReactions(ctx, seeded.Account.ID, msgID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "❤️", reactions[0].Emoji)

	removed, err := h.Messages.UpsertReaction(ctx, seeded.Account.ID, msgID, "6289999", "")
	require.NoError(t, err)
	assert.Nil(t, removed)

	reactions, err = h.Messages.ListReactions(ctx, seeded.Account.ID, msgID)
	require.NoError(t, err)
	assert.Empty(t, reactions)

	_, err = h.Messages.UpsertReaction(ctx, seeded.Account.ID, msgID, " ", "👍")
	assert.ErrorIs(t, err, domain.ErrInvalidReactor)
}

func TestListChronologicalWithPaging(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6280001")

	for _, content := range []string{"one", "two", "three"} {
		h.Clock.Advance(time.Second)
		_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
			Direction: domain.DirectionIncoming,
			Content:   content,
		})
		require.NoError(t, err)
	}

	req := domain.ListRequest{AccountID: seeded.Account.ID, ConversationID: conv.ID}
	req.PageSize = 2
	page, err := h.Messages.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "two", page.Messages[0].Content)
	assert.Equal(t, "three", page.Messages[1].Content)
	require.True(t, page.HasMore)

	req.PageToken = page.NextPageToken
	older, err := h.Messages.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, older.Messages, 1)
	assert.Equal(t, "one", older.Messages[0].Content)
	assert.False(t, older.HasMore)

	req.PageToken = "not-a-token"
	_, err = h.Messages.List(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestSearchExcludesPrivateNotesAndOtherAccounts(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	other := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6280002")
	otherConv := newConversation(t, h, other, "6280002")

	appendText := func(content string, note bool) {
		direction := domain.DirectionIncoming
		if note {
			direction = domain.DirectionOutgoing
		}
		_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
			Direction:     direction,
			Content:       content,
			IsPrivateNote: note,
		})
		require.NoError(t, err)
	}
	appendText("where is my invoice", false)
	appendText("invoice sent twice, refund", true)
	appendText("thanks", false)
	_, err := h.Messages.Append(ctx, other.Account.ID, otherConv.ID, domain.AppendRequest{
		Direction: domain.DirectionIncoming,
		Content:   "my invoice please",
	})
	require.NoError(t, err)

	res, err := h.Messages.Search(ctx, domain.SearchRequest{AccountID: seeded.Account.ID, Query: "INVOICE"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "where is my invoice", res.Messages[0].Content)

	res, err = h.Messages.Search(ctx, domain.SearchRequest{AccountID: seeded.Account.ID, Query: "100%"})
	require.NoError(t, err)
	assert.Empty(t, res.Messages)

	_, err = h.Messages.Search(ctx, domain.SearchRequest{AccountID: seeded.Account.ID, Query: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestSearchMatchesNonASCIIContent(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6280003")

	_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionIncoming,
		Content:   "Éclair dua, ÉCLAIR satu",
	})
	require.NoError(t, err)

	for _, query := range []string{"É", "Éclair", "ÉCLAIR SATU"} {
		res, err := h.Messages.Search(ctx, domain.SearchRequest{AccountID: seeded.Account.ID, Query: query})
		require.NoError(t, err)
		assert.Len(t, res.Messages, 1, query)
	}
}

func TestReplyToResolvesTarget(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6280003")

	original, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		ExternalMessageID: "wamid.original",
		Direction:         domain.DirectionIncoming,
		Content:           "question",
	})
	require.NoError(t, err)

	reply, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Content:   "answer",
		ReplyTo:   "wamid.original",
	})
	require.NoError(t, err)
	require.NotNil(t, reply.Message.ReplyToMessageID)
	assert.Equal(t, original.Message.ID, *reply.Message.ReplyToMessageID)

	dangling, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionOutgoing,
		Content:   "answer",
		ReplyTo:   "wamid.unknown",
	})
	require.NoError(t, err)
	assert.Nil(t, dangling.Message.ReplyToMessageID)
	require.NotNil(t, dangling.Message.ReplyToExternalID)
	assert.Equal(t, "wamid.unknown", *dangling.Message.ReplyToExternalID)
}

func TestMarkIncomingReadSkipsPrivateNotes(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)
	conv := newConversation(t, h, seeded, "6280004")

	_, err := h.Messages.Append(ctx, seeded.Account.ID, conv.ID, domain.AppendRequest{
		Direction: domain.DirectionIncoming,
		Content:   "halo",
	})
	require.NoError(t, err)

	note := &domain.Message{
		ID:             h.GenID.Generate(),
		AccountID:      seeded.Account.ID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionIncoming,
		Type:           domain.TypeText,
		Content:        "forwarded from the supervisor",
		Status:         domain.StatusDelivered,
		SenderType:     domain.SenderContact,
		IsPrivateNote:  true,
		Timestamp:      h.Clock.Now(),
		CreatedAt:      h.Clock.Now(),
		UpdatedAt:      h.Clock.Now(),
	}
	require.NoError(t, h.DB.Create(note).Error)

	rows, err := h.MessageRepo.MarkIncomingRead(ctx, h.DB, conv.ID, h.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	var stored domain.Message
	require.NoError(t, h.DB.First(&stored, "id = ?", note.ID).Error)
	assert.Equal(t, domain.StatusDelivered, stored.Status)

	unread, err := h.MessageRepo.CountUnread(ctx, h.DB, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}
