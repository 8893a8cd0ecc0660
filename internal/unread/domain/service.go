package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service maintains conversations.unread_count incrementally. Increment runs
// inside the caller's transaction so the counter moves with the message row.
type Service interface {
	Increment(ctx context.Context, tx *gorm.DB, conversationID snowflake.ID, delta int64) error
	MarkRead(ctx context.Context, accountID, conversationID snowflake.ID) (*MarkReadResult, error)
	Recompute(ctx context.Context, conversationID snowflake.ID) (int64, error)
	Repair(ctx context.Context, conversationID snowflake.ID) (*RepairResult, error)
}

type MarkReadResult struct {
	ConversationID snowflake.ID `json:"conversation_id"`
	MessagesRead   int64        `json:"messages_read"`
}

type RepairResult struct {
	ConversationID snowflake.ID
	Stored         int64
	Actual         int64
}

func (r RepairResult) Drifted() bool { return r.Stored != r.Actual }

var ErrConversationNotFound = errors.New("conversation_not_found")
