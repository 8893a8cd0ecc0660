package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/inbox/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inbox *domain.Inbox) error {
	return db.WithContext(ctx).Create(inbox).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*domain.Inbox, error) {
	var inbox domain.Inbox
	err := db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, id).
		First(&inbox).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inbox, nil
}

func (r *repo) FindByGatewayToken(ctx context.Context, db *gorm.DB, accountID snowflake.ID, token string) (*domain.Inbox, error) {
	var inboxes []domain.Inbox
	err := db.WithContext(ctx).
		Where("account_id = ? AND gateway_token = ?", accountID, token).
		Order("id asc").
		Limit(1).
		Find(&inboxes).Error
	if err != nil {
		return nil, err
	}
	if len(inboxes) == 0 {
		return nil, nil
	}
	return &inboxes[0], nil
}

func (r *repo) UpdateAutoAssignment(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, raw datatypes.JSON, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Inbox{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Updates(map[string]any{"auto_assignment": raw, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateLastAssigned(ctx context.Context, db *gorm.DB, id snowflake.ID, agentID snowflake.ID) error {
	return db.WithContext(ctx).Model(&domain.Inbox{}).
		Where("id = ?", id).
		Update("last_assigned_agent_id", agentID).Error
}

// InsertMember reports false when the membership already exists.
func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *domain.InboxMember) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DeleteMember(ctx context.Context, db *gorm.DB, inboxID, agentID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("inbox_id = ? AND agent_id = ?", inboxID, agentID).
		Delete(&domain.InboxMember{})
	return result.RowsAffected, result.Error
}

func (r *repo) ListMemberIDs(ctx context.Context, db *gorm.DB, inboxID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Model(&domain.InboxMember{}).
		Where("inbox_id = ?", inboxID).
		Order("agent_id asc").
		Pluck("agent_id", &ids).Error
	return ids, err
}

func (r *repo) ListActiveMemberIDs(ctx context.Context, db *gorm.DB, inboxID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT m.agent_id
		FROM inbox_members m
		JOIN agents a ON a.id = m.agent_id AND a.account_id = m.account_id
		WHERE m.inbox_id = ? AND a.status = 'active'
		ORDER BY m.agent_id ASC`,
		inboxID,
	).Scan(&ids).Error
	return ids, err
}
