package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIgnoreConflict reports false when the (conversation_id,
	// external_message_id) pair already exists.
	InsertIgnoreConflict(ctx context.Context, db *gorm.DB, message *Message) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, conversationID, id snowflake.ID) (*Message, error)
	FindInAccount(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*Message, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, externalID string) (*Message, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Message, error)
	Search(ctx context.Context, db *gorm.DB, filter SearchFilter) ([]*Message, error)

	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, failureReason string, now time.Time) error
	SetExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string, now time.Time) error

	CountUnread(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) (int64, error)
	MarkIncomingRead(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, now time.Time) (int64, error)

	UpsertReaction(ctx context.Context, db *gorm.DB, reaction *Reaction) error
	DeleteReaction(ctx context.Context, db *gorm.DB, messageID snowflake.ID, reactor string) (int64, error)
	FindReaction(ctx context.Context, db *gorm.DB, messageID snowflake.ID, reactor string) (*Reaction, error)
	ListReactions(ctx context.Context, db *gorm.DB, messageIDs []snowflake.ID) ([]Reaction, error)
}

type ListFilter struct {
	ConversationID snowflake.ID
	ContactVisible bool
	Boundary       *pagination.Boundary
	Limit          int
}

type SearchFilter struct {
	AccountID      snowflake.ID
	ConversationID *snowflake.ID
	Query          string
	Boundary       *pagination.Boundary
	Limit          int
}
