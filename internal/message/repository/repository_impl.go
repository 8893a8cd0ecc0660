package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIgnoreConflict(ctx context.Context, db *gorm.DB, message *domain.Message) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(message)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, conversationID, id snowflake.ID) (*domain.Message, error) {
	return first(db.WithContext(ctx).Where("conversation_id = ? AND id = ?", conversationID, id))
}

func (r *repo) FindInAccount(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*domain.Message, error) {
	return first(db.WithContext(ctx).Where("account_id = ? AND id = ?", accountID, id))
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, externalID string) (*domain.Message, error) {
	return first(db.WithContext(ctx).Where("conversation_id = ? AND external_message_id = ?", conversationID, externalID))
}

func first(stmt *gorm.DB) (*domain.Message, error) {
	var message domain.Message
	err := stmt.First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// List returns messages newest first; callers reverse the page.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Message, error) {
	stmt := db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ?", filter.ConversationID)
	if filter.ContactVisible {
		stmt = stmt.Where("is_private_note = ?", false)
	}
	stmt = applyBoundary(stmt, filter.Boundary)

	stmt = stmt.Order("timestamp desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var messages []*domain.Message
	if err := stmt.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, filter domain.SearchFilter) ([]*domain.Message, error) {
	stmt := db.WithContext(ctx).Model(&domain.Message{}).
		Where("account_id = ?", filter.AccountID).
		Where("is_private_note = ?", false).
		Where("LOWER(content) LIKE ? ESCAPE '!'", pagination.ContainsPattern(db.Dialector.Name(), filter.Query))
	if filter.ConversationID != nil {
		stmt = stmt.Where("conversation_id = ?", *filter.ConversationID)
	}
	stmt = applyBoundary(stmt, filter.Boundary)

	stmt = stmt.Order("timestamp desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var messages []*domain.Message
	if err := stmt.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func applyBoundary(stmt *gorm.DB, boundary *pagination.Boundary) *gorm.DB {
	if boundary == nil || boundary.Timestamp == nil {
		return stmt
	}
	return stmt.Where("((timestamp < ?) OR (timestamp = ? AND id < ?))",
		*boundary.Timestamp,
		*boundary.Timestamp,
		boundary.ID,
	)
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, failureReason string, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         status,
			"failure_reason": failureReason,
			"updated_at":     now,
		}).Error
}

func (r *repo) SetExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"external_message_id": externalID,
			"updated_at":          now,
		}).Error
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Where("direction = ?", domain.DirectionIncoming).
		Where("is_private_note = ?", false).
		Where("status <> ?", domain.StatusRead).
		Count(&count).Error
	return count, err
}

func (r *repo) MarkIncomingRead(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Where("direction = ?", domain.DirectionIncoming).
		Where("is_private_note = ?", false).
		Where("status <> ?", domain.StatusRead).
		Updates(map[string]any{"status": domain.StatusRead, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repo) UpsertReaction(ctx context.Context, db *gorm.DB, reaction *domain.Reaction) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "reactor_identifier"}},
			DoUpdates: clause.AssignmentColumns([]string{"emoji", "updated_at"}),
		}).
		Create(reaction).Error
}

func (r *repo) DeleteReaction(ctx context.Context, db *gorm.DB, messageID snowflake.ID, reactor string) (int64, error) {
	result := db.WithContext(ctx).
		Where("message_id = ? AND reactor_identifier = ?", messageID, reactor).
		Delete(&domain.Reaction{})
	return result.RowsAffected, result.Error
}

func (r *repo) FindReaction(ctx context.Context, db *gorm.DB, messageID snowflake.ID, reactor string) (*domain.Reaction, error) {
	var reaction domain.Reaction
	err := db.WithContext(ctx).
		Where("message_id = ? AND reactor_identifier = ?", messageID, reactor).
		First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *repo) ListReactions(ctx context.Context, db *gorm.DB, messageIDs []snowflake.ID) ([]domain.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []domain.Reaction
	err := db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("created_at asc, id asc").
		Find(&reactions).Error
	return reactions, err
}
