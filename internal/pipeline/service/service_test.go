package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	gatewaydomain "github.com/smallbiznis/chatdesk/internal/gateway/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	routerdomain "github.com/smallbiznis/chatdesk/internal/router/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textEvent(contact, externalID, content string) domain.WebhookEvent {
	return domain.WebhookEvent{
		Type:                  domain.EventMessage,
		ConversationReference: contact,
		ContactName:           "Budi",
		ExternalMessageID:     externalID,
		Content:               content,
	}
}

func TestHandleInboundMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	notifier := &testkit.RecordingNotifier{}
	h := testkit.NewWithOptions(t, testkit.Options{Notifier: notifier})
	seeded := h.SeedAccount(t)
	agent := h.AddAgent(t, seeded.Account.ID, "Sari", accountdomain.AvailabilityOnline)

	outcome, err := h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628111", "m1", "halo"), nil)
	require.NoError(t, err)
	require.True(t, outcome.Routed)
	assert.False(t, outcome.Duplicate)
	assert.Equal(t, []snowflake.ID{agent.ID}, outcome.Audience)

	conv, err := h.Conversations.GetByID(ctx, seeded.Account.ID, outcome.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), conv.UnreadCount)
	assert.Equal(t, "Budi", conv.ContactName)
	assert.Equal(t, "halo", conv.LastMessagePreview)

	again, err := h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628111", "m1", "halo"), nil)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, outcome.MessageID, again.MessageID)

	conv, err = h.Conversations.GetByID(ctx, seeded.Account.ID, outcome.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), conv.UnreadCount)
	assert.Equal(t, int64(1), h.Count(t, "chat_messages", "conversation_id = ?", conv.ID))

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "message.created", sent[0].Event)
	assert.Equal(t, outcome.MessageID, sent[0].MessageID)

	_, err = h.Unread.MarkRead(ctx, seeded.Account.ID, conv.ID)
	require.NoError(t, err)
	conv, err = h.Conversations.GetByID(ctx, seeded.Account.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), conv.UnreadCount)
}

func TestHandleInboundRejections(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	outcome, err := h.Pipeline.HandleInbound(ctx, "unknown-token", textEvent("628", "x", "hi"), nil)
	require.NoError(t, err)
	assert.False(t, outcome.Routed)
	assert.Equal(t, routerdomain.ReasonAccountNotFound, outcome.Reason)
	assert.NotNil(t, outcome.Audience)

	other := h.GenID.Generate()
	outcome, err = h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628", "x", "hi"), &other)
	require.NoError(t, err)
	assert.Equal(t, routerdomain.ReasonInvalidTenantContext, outcome.Reason)
	assert.Equal(t, int64(0), h.Count(t, "conversations", "account_id = ?", seeded.Account.ID))

	_, err = h.Pipeline.HandleInbound(ctx, seeded.Token, domain.WebhookEvent{Type: "typing", ConversationReference: "628"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedEvent)

	_, err = h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent(" ", "x", "hi"), nil)
	assert.ErrorIs(t, err, domain.ErrMissingReference)
}

func TestHandleInboundReopensResolvedConversation(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	first, err := h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628222", "m1", "first"), nil)
	require.NoError(t, err)
	_, err = h.Conversations.UpdateStatus(ctx, seeded.Account.ID, first.ConversationID, conversationdomain.StatusResolved)
	require.NoError(t, err)

	_, err = h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628222", "m2", "back again"), nil)
	require.NoError(t, err)

	conv, err := h.Conversations.GetByID(ctx, seeded.Account.ID, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, conversationdomain.StatusOpen, conv.Status)
	assert.Equal(t, int64(2), conv.UnreadCount)
}

func TestHandleInboundOutgoingEcho(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	event := textEvent("628333", "echo-1", "sent from phone")
	event.Direction = "outgoing"
	outcome, err := h.Pipeline.HandleInbound(ctx, seeded.Token, event, nil)
	require.NoError(t, err)

	msg, err := h.Messages.GetByExternalOrInternalID(ctx, seeded.Account.ID, outcome.ConversationID, "echo-1")
	require.NoError(t, err)
	assert.Equal(t, messagedomain.StatusSent, msg.Status)
	assert.Equal(t, messagedomain.DirectionOutgoing, msg.Direction)

	conv, err := h.Conversations.GetByID(ctx, seeded.Account.ID, outcome.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), conv.UnreadCount)
}

func TestHandleInboundStatusAndReaction(t *testing.T) {
	ctx := context.Background()
	notifier := &testkit.RecordingNotifier{}
	h := testkit.NewWithOptions(t, testkit.Options{Notifier: notifier})
	seeded := h.SeedAccount(t)
	h.AddAgent(t, seeded.Account.ID, "Sari", accountdomain.AvailabilityOnline)

	outcome, err := h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628444", "m1", "hello"), nil)
	require.NoError(t, err)
	sent, err := h.Pipeline.SendOutbound(ctx, seeded.Account.ID, outcome.ConversationID, domain.SendRequest{Content: "hi there"})
	require.NoError(t, err)
	require.NotNil(t, sent.Message.ExternalMessageID)

	status, err := h.Pipeline.HandleInbound(ctx, seeded.Token, domain.WebhookEvent{
		Type:                  domain.EventStatus,
		ConversationReference: "628444",
		ExternalMessageID:     *sent.Message.ExternalMessageID,
		Status:                "read",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, sent.Message.ID, status.MessageID)

	msg, err := h.Messages.GetByExternalOrInternalID(ctx, seeded.Account.ID, outcome.ConversationID, sent.Message.ID.String())
	require.NoError(t, err)
	assert.Equal(t, messagedomain.StatusRead, msg.Status)

	reaction, err := h.Pipeline.HandleInbound(ctx, seeded.Token, domain.WebhookEvent{
		Type:                  domain.EventReaction,
		ConversationReference: "628444",
		ExternalMessageID:     *sent.Message.ExternalMessageID,
		Emoji:                 "🙏",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, sent.Message.ID, reaction.MessageID)

	reactions, err := h.Messages.ListReactions(ctx, seeded.Account.ID, sent.Message.ID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "628444", reactions[0].ReactorIdentifier)

	events := make([]string, 0)
	for _, n := range notifier.Sent() {
		events = append(events, n.Event)
	}
	assert.Equal(t, []string{"message.created", "message.status", "message.reaction"}, events)

	missing, err := h.Pipeline.HandleInbound(ctx, seeded.Token, domain.WebhookEvent{
		Type:                  domain.EventStatus,
		ConversationReference: "628444",
		ExternalMessageID:     "unknown",
		Status:                "delivered",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonMessageNotFound, missing.Reason)

	stranger, err := h.Pipeline.HandleInbound(ctx, seeded.Token, domain.WebhookEvent{
		Type:                  domain.EventReaction,
		ConversationReference: "628999",
		ExternalMessageID:     "m1",
		Emoji:                 "👍",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonConversationNotFound, stranger.Reason)
	assert.Equal(t, int64(0), h.Count(t, "conversations", "contact_identifier = ?", "628999"))
}

func TestSendOutboundFailureMarksMessageFailed(t *testing.T) {
	ctx := context.Background()
	provider := &testkit.StubProvider{Err: &gatewaydomain.SendError{Provider: "stub", Kind: gatewaydomain.ErrRateLimited, StatusCode: 429}}
	h := testkit.NewWithOptions(t, testkit.Options{Provider: provider})
	seeded := h.SeedAccount(t)

	conv, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628555", conversationdomain.ContactInfo{})
	require.NoError(t, err)

	out, err := h.Pipeline.SendOutbound(ctx, seeded.Account.ID, conv.Conversation.ID, domain.SendRequest{Content: "promo"})
	require.NoError(t, err)
	assert.Equal(t, messagedomain.StatusFailed, out.Message.Status)
	assert.Equal(t, gatewaydomain.ErrRateLimited.Error(), out.FailureReason)
	assert.Equal(t, out.FailureReason, out.Message.FailureReason)

	stored, err := h.Messages.GetByExternalOrInternalID(ctx, seeded.Account.ID, conv.Conversation.ID, out.Message.ID.String())
	require.NoError(t, err)
	assert.Equal(t, messagedomain.StatusFailed, stored.Status)
}

func TestSendOutboundPrivateNoteNeverLeaves(t *testing.T) {
	ctx := context.Background()
	provider := &testkit.StubProvider{}
	h := testkit.NewWithOptions(t, testkit.Options{Provider: provider})
	seeded := h.SeedAccount(t)

	conv, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628666", conversationdomain.ContactInfo{})
	require.NoError(t, err)

	out, err := h.Pipeline.SendOutbound(ctx, seeded.Account.ID, conv.Conversation.ID, domain.SendRequest{
		Content:       "call them tomorrow",
		IsPrivateNote: true,
		SenderAgentID: &seeded.Owner.ID,
	})
	require.NoError(t, err)
	assert.True(t, out.Message.IsPrivateNote)
	assert.Empty(t, provider.Sent)

	_, err = h.Pipeline.SendOutbound(ctx, seeded.Account.ID, conv.Conversation.ID, domain.SendRequest{Content: " "})
	assert.ErrorIs(t, err, messagedomain.ErrBlankContent)

	_, err = h.Pipeline.SendOutbound(ctx, seeded.Account.ID, conv.Conversation.ID, domain.SendRequest{Type: "fax", Content: "x"})
	assert.ErrorIs(t, err, messagedomain.ErrInvalidType)
}

func TestHandleInboundAfterAccountDeletion(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	first, err := h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628777", "m1", "halo"), nil)
	require.NoError(t, err)
	require.True(t, first.Routed)

	_, err = h.Cascade.DeleteAccount(ctx, seeded.Account.ID)
	require.NoError(t, err)

	late, err := h.Pipeline.HandleInbound(ctx, seeded.Token, textEvent("628778", "m2", "still there?"), nil)
	require.NoError(t, err)
	assert.False(t, late.Routed)
	assert.Equal(t, routerdomain.ReasonAccountNotFound, late.Reason)

	report, err := h.Cascade.VerifyNoOrphans(ctx, seeded.Account.ID)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "dirty tables: %v", report.Dirty())
}

func TestHandleInboundInfersPollType(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	event := domain.WebhookEvent{
		Type:                  domain.EventMessage,
		ConversationReference: "628888",
		ExternalMessageID:     "poll-1",
		Payload: &messagedomain.Payload{
			Kind: messagedomain.PayloadPoll,
			Poll: &messagedomain.Poll{Question: "Jam berapa?", Options: []string{"09:00", "13:00"}},
		},
	}
	outcome, err := h.Pipeline.HandleInbound(ctx, seeded.Token, event, nil)
	require.NoError(t, err)
	require.True(t, outcome.Routed)

	stored, err := h.Messages.GetByExternalOrInternalID(ctx, seeded.Account.ID, outcome.ConversationID, "poll-1")
	require.NoError(t, err)
	assert.Equal(t, messagedomain.TypePoll, stored.Type)
	require.NotNil(t, stored.Payload)
	assert.Equal(t, "Jam berapa?", stored.Payload.Poll.Question)

	event.ExternalMessageID = "text-1"
	event.Payload = nil
	event.Content = "ok"
	plain, err := h.Pipeline.HandleInbound(ctx, seeded.Token, event, nil)
	require.NoError(t, err)
	text, err := h.Messages.GetByExternalOrInternalID(ctx, seeded.Account.ID, plain.ConversationID, "text-1")
	require.NoError(t, err)
	assert.Equal(t, messagedomain.TypeText, text.Type)
}

func TestSendOutboundInfersInteractiveType(t *testing.T) {
	ctx := context.Background()
	provider := &testkit.StubProvider{}
	h := testkit.NewWithOptions(t, testkit.Options{Provider: provider})
	seeded := h.SeedAccount(t)

	conv, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, "628999", conversationdomain.ContactInfo{})
	require.NoError(t, err)

	out, err := h.Pipeline.SendOutbound(ctx, seeded.Account.ID, conv.Conversation.ID, domain.SendRequest{
		Payload: &messagedomain.Payload{
			Kind: messagedomain.PayloadInteractive,
			Interactive: &messagedomain.Interactive{
				Type:    "buttons",
				Body:    "Konfirmasi pesanan?",
				Buttons: []messagedomain.Button{{ID: "yes", Title: "Ya"}, {ID: "no", Title: "Tidak"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, messagedomain.TypeInteractive, out.Message.Type)
	assert.Equal(t, messagedomain.StatusSent, out.Message.Status)

	require.Len(t, provider.Sent, 1)
	assert.Equal(t, string(messagedomain.TypeInteractive), provider.Sent[0].Type)
	assert.NotEmpty(t, provider.Sent[0].Payload)
}
