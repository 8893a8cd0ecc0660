package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/team/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, team *domain.Team) error {
	return db.WithContext(ctx).Create(team).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	err := db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, id).
		First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *domain.TeamMember) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DeleteMember(ctx context.Context, db *gorm.DB, teamID, agentID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("team_id = ? AND agent_id = ?", teamID, agentID).
		Delete(&domain.TeamMember{})
	return result.RowsAffected, result.Error
}

func (r *repo) ListMemberIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Model(&domain.TeamMember{}).
		Where("team_id = ?", teamID).
		Order("agent_id asc").
		Pluck("agent_id", &ids).Error
	return ids, err
}
