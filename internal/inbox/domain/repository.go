package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inbox *Inbox) error
	FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*Inbox, error)
	FindByGatewayToken(ctx context.Context, db *gorm.DB, accountID snowflake.ID, token string) (*Inbox, error)
	UpdateAutoAssignment(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, raw datatypes.JSON, now time.Time) (int64, error)
	UpdateLastAssigned(ctx context.Context, db *gorm.DB, id snowflake.ID, agentID snowflake.ID) error

	InsertMember(ctx context.Context, db *gorm.DB, member *InboxMember) (bool, error)
	DeleteMember(ctx context.Context, db *gorm.DB, inboxID, agentID snowflake.ID) (int64, error)
	ListMemberIDs(ctx context.Context, db *gorm.DB, inboxID snowflake.ID) ([]snowflake.ID, error)
	ListActiveMemberIDs(ctx context.Context, db *gorm.DB, inboxID snowflake.ID) ([]snowflake.ID, error)
}
