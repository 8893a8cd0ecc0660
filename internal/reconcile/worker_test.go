package reconcile_test

import (
	"context"
	"testing"

	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/reconcile"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnceRepairsDrift(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)
	seeded := h.SeedAccount(t)

	var ids []any
	for _, contact := range []string{"628001", "628002", "628003"} {
		conv, err := h.Conversations.GetOrCreate(ctx, seeded.Account.ID, contact, conversationdomain.ContactInfo{})
		require.NoError(t, err)
		_, err = h.Messages.Append(ctx, seeded.Account.ID, conv.Conversation.ID, messagedomain.AppendRequest{
			Direction: messagedomain.DirectionIncoming,
			Content:   "ping",
		})
		require.NoError(t, err)
		ids = append(ids, conv.Conversation.ID)
	}

	require.NoError(t, h.DB.Exec("UPDATE conversations SET unread_count = 7 WHERE id = ?", ids[1]).Error)

	cfg := reconcile.DefaultConfig()
	cfg.BatchSize = 2
	worker := reconcile.New(reconcile.Params{
		DB:               h.DB,
		Log:              h.Log,
		GenID:            h.GenID,
		Clock:            h.Clock,
		Config:           cfg,
		ConversationRepo: h.ConversationRepo,
		Unread:           h.Unread,
	})

	stats, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 1, stats.Repaired)
	assert.Equal(t, 0, stats.Errors)
	assert.NotEmpty(t, stats.RunID)

	var unread int64
	require.NoError(t, h.DB.Raw("SELECT unread_count FROM conversations WHERE id = ?", ids[1]).Scan(&unread).Error)
	assert.Equal(t, int64(1), unread)

	again, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Repaired)
}

func TestRunOnceEmptyStore(t *testing.T) {
	h := testkit.New(t)
	worker := reconcile.New(reconcile.Params{
		DB:               h.DB,
		Log:              h.Log,
		GenID:            h.GenID,
		Clock:            h.Clock,
		Config:           reconcile.Config{},
		ConversationRepo: h.ConversationRepo,
		Unread:           h.Unread,
	})

	stats, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scanned)
}
