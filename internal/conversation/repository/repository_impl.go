package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/conversation/domain"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIgnoreConflict(ctx context.Context, db *gorm.DB, conversation *domain.Conversation) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(conversation)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := db.WithContext(ctx).Where("id = ?", id).First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *repo) FindByContact(ctx context.Context, db *gorm.DB, accountID snowflake.ID, contactIdentifier string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := db.WithContext(ctx).
		Where("account_id = ? AND contact_identifier = ?", accountID, contactIdentifier).
		First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// List orders by last_message_at descending with nulls last, then id
// descending. The boundary is exclusive on that tuple.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Conversation, error) {
	stmt := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("account_id = ?", filter.AccountID)

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.UnreadOnly {
		stmt = stmt.Where("unread_count > 0")
	}
	if filter.InboxID != nil {
		stmt = stmt.Where("inbox_id = ?", *filter.InboxID)
	}
	if filter.AssignedAgentID != nil {
		stmt = stmt.Where("assigned_agent_id = ?", *filter.AssignedAgentID)
	}
	if filter.LabelID != nil {
		stmt = stmt.Where(
			"EXISTS (SELECT 1 FROM conversation_labels cl WHERE cl.conversation_id = conversations.id AND cl.label_id = ?)",
			*filter.LabelID,
		)
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := pagination.ContainsPattern(db.Dialector.Name(), query)
		stmt = stmt.Where(
			"(LOWER(contact_name) LIKE ? ESCAPE '!' OR LOWER(contact_identifier) LIKE ? ESCAPE '!')",
			pattern, pattern,
		)
	}

	if b := filter.Boundary; b != nil {
		if b.Timestamp == nil {
			stmt = stmt.Where("(last_message_at IS NULL AND id < ?)", b.ID)
		} else {
			stmt = stmt.Where(
				"(last_message_at < ? OR (last_message_at = ? AND id < ?) OR last_message_at IS NULL)",
				*b.Timestamp, *b.Timestamp, b.ID,
			)
		}
	}

	stmt = stmt.Order("CASE WHEN last_message_at IS NULL THEN 1 ELSE 0 END ASC, last_message_at DESC, id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var conversations []*domain.Conversation
	if err := stmt.Find(&conversations).Error; err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *repo) ListIDsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, status domain.Status, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Updates(map[string]any{"status": status, "updated_at": now})
	return result.RowsAffected, result.Error
}

// UpdateLastMessage never moves last_message_at backwards, so late-arriving
// older messages leave the preview alone.
func (r *repo) UpdateLastMessage(ctx context.Context, db *gorm.DB, id snowflake.ID, preview string, at time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE conversations
		SET last_message_at = ?, last_message_preview = ?, updated_at = ?
		WHERE id = ? AND (last_message_at IS NULL OR last_message_at <= ?)`,
		at, preview, now, id, at,
	).Error
}

func (r *repo) Assign(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, agentID *snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Updates(map[string]any{"assigned_agent_id": agentID, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repo) SetInbox(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID, inboxID *snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Updates(map[string]any{"inbox_id": inboxID, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repo) AddUnread(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64) error {
	return db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", gorm.Expr("unread_count + ?", delta)).Error
}

func (r *repo) SetUnread(ctx context.Context, db *gorm.DB, id snowflake.ID, count int64) error {
	return db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", count).Error
}

func (r *repo) InsertLabel(ctx context.Context, db *gorm.DB, label *domain.Label) error {
	return db.WithContext(ctx).Create(label).Error
}

func (r *repo) FindLabel(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*domain.Label, error) {
	var label domain.Label
	err := db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, id).
		First(&label).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &label, nil
}

func (r *repo) AttachLabel(ctx context.Context, db *gorm.DB, link *domain.ConversationLabel) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link).Error
}

func (r *repo) DetachLabel(ctx context.Context, db *gorm.DB, conversationID, labelID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("conversation_id = ? AND label_id = ?", conversationID, labelID).
		Delete(&domain.ConversationLabel{})
	return result.RowsAffected, result.Error
}

func (r *repo) ListLabels(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) ([]domain.Label, error) {
	var labels []domain.Label
	err := db.WithContext(ctx).Raw(
		`SELECT l.*
		FROM labels l
		JOIN conversation_labels cl ON cl.label_id = l.id
		WHERE cl.conversation_id = ?
		ORDER BY l.title ASC`,
		conversationID,
	).Scan(&labels).Error
	return labels, err
}
