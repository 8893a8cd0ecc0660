package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is one row of the account audit log. A nil AgentID marks a system
// action.
type Entry struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID    snowflake.ID      `gorm:"not null;index:idx_audit_log_account_created,priority:1" json:"account_id"`
	AgentID      *snowflake.ID     `json:"agent_id,omitempty"`
	Action       string            `gorm:"type:varchar(100);not null" json:"action"`
	ResourceType string            `gorm:"type:varchar(50);not null" json:"resource_type"`
	ResourceID   string            `gorm:"type:varchar(64)" json:"resource_id"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index:idx_audit_log_account_created,priority:2" json:"created_at"`
}

func (Entry) TableName() string { return "audit_log" }
