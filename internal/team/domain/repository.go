package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, team *Team) error
	FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*Team, error)
	InsertMember(ctx context.Context, db *gorm.DB, member *TeamMember) (bool, error)
	DeleteMember(ctx context.Context, db *gorm.DB, teamID, agentID snowflake.ID) (int64, error)
	ListMemberIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]snowflake.ID, error)
}
