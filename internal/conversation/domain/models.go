package domain

import (
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusSnoozed  Status = "snoozed"
)

// Conversation is the thread between an account and one contact. There is at
// most one conversation per (account_id, contact_identifier). UnreadCount
// always equals the number of incoming, non-private messages not yet read.
type Conversation struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	AccountID          snowflake.ID  `gorm:"not null;uniqueIndex:ux_conversations_account_contact,priority:1;index:idx_conversations_account_last,priority:1" json:"account_id"`
	ContactIdentifier  string        `gorm:"type:varchar(191);not null;uniqueIndex:ux_conversations_account_contact,priority:2" json:"contact_identifier"`
	ContactName        string        `gorm:"type:varchar(255)" json:"contact_name,omitempty"`
	InboxID            *snowflake.ID `gorm:"index" json:"inbox_id,omitempty"`
	AssignedAgentID    *snowflake.ID `gorm:"index" json:"assigned_agent_id,omitempty"`
	Status             Status        `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	UnreadCount        int64         `gorm:"not null;default:0" json:"unread_count"`
	LastMessageAt      *time.Time    `gorm:"index:idx_conversations_account_last,priority:2" json:"last_message_at,omitempty"`
	LastMessagePreview string        `gorm:"type:varchar(400)" json:"last_message_preview,omitempty"`
	CreatedAt          time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Label is an account-scoped tag attachable to conversations.
type Label struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_labels_account_title,priority:1" json:"account_id"`
	Title     string       `gorm:"type:varchar(100);not null;uniqueIndex:ux_labels_account_title,priority:2" json:"title"`
	Color     string       `gorm:"type:varchar(20)" json:"color,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Label) TableName() string { return "labels" }

type ConversationLabel struct {
	ConversationID snowflake.ID `gorm:"primaryKey" json:"conversation_id"`
	LabelID        snowflake.ID `gorm:"primaryKey;index" json:"label_id"`
	AccountID      snowflake.ID `gorm:"not null;index" json:"account_id"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (ConversationLabel) TableName() string { return "conversation_labels" }

// TruncatePreview cuts value to at most max runes.
func TruncatePreview(value string, max int) string {
	if max <= 0 || utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max])
}

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusOpen, StatusPending, StatusResolved, StatusSnoozed:
		return Status(value), nil
	default:
		return "", ErrInvalidStatus
	}
}
