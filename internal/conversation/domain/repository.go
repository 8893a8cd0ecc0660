package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIgnoreConflict reports false when a row with the same
	// (account_id, contact_identifier) already exists.
	InsertIgnoreConflict(ctx context.Context, db *gorm.DB, conversation *Conversation) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Conversation, error)
	FindByContact(ctx context.Context, db *gorm.DB, accountID snowflake.ID, contactIdentifier string) (*Conversation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Conversation, error)
	ListIDsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error)

	UpdateStatus(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, status Status, now time.Time) (int64, error)
	UpdateLastMessage(ctx context.Context, db *gorm.DB, id snowflake.ID, preview string, at time.Time, now time.Time) error
	Assign(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, agentID *snowflake.ID, now time.Time) (int64, error)
	SetInbox(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, inboxID *snowflake.ID, now time.Time) (int64, error)
	AddUnread(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64) error
	SetUnread(ctx context.Context, db *gorm.DB, id snowflake.ID, count int64) error

	InsertLabel(ctx context.Context, db *gorm.DB, label *Label) error
	FindLabel(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*Label, error)
	AttachLabel(ctx context.Context, db *gorm.DB, link *ConversationLabel) error
	DetachLabel(ctx context.Context, db *gorm.DB, conversationID, labelID snowflake.ID) (int64, error)
	ListLabels(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) ([]Label, error)
}

type ListFilter struct {
	AccountID       snowflake.ID
	Status          Status
	UnreadOnly      bool
	InboxID         *snowflake.ID
	AssignedAgentID *snowflake.ID
	LabelID         *snowflake.ID
	Query           string
	Boundary        *pagination.Boundary
	Limit           int
}
