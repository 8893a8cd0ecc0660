package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrAgentNotFound = errors.New("agent_not_found")
	ErrTeamNotFound  = errors.New("team_not_found")
	ErrInboxNotFound = errors.New("inbox_not_found")
)

type Repository interface {
	DeleteWhere(ctx context.Context, db *gorm.DB, table, where string, args ...any) (int64, error)
	CountWhere(ctx context.Context, db *gorm.DB, table, where string, args ...any) (int64, error)
	Exists(ctx context.Context, db *gorm.DB, table string, accountID, id snowflake.ID) (bool, error)
	NullOut(ctx context.Context, db *gorm.DB, table, column string, accountID, id snowflake.ID) (int64, error)
}

type Service interface {
	// DeleteAccount removes the account and everything it owns. Deleting an
	// account that is already gone succeeds with zero rows.
	DeleteAccount(ctx context.Context, accountID snowflake.ID) (*DeleteResult, error)
	DeleteAgent(ctx context.Context, accountID, agentID snowflake.ID) error
	DeleteTeam(ctx context.Context, accountID, teamID snowflake.ID) error
	DeleteInbox(ctx context.Context, accountID, inboxID snowflake.ID) error
	VerifyNoOrphans(ctx context.Context, accountID snowflake.ID) (*Report, error)
}
