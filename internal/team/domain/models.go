package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Team groups agents of an account.
type Team struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_teams_account_name,priority:1" json:"account_id"`
	Name        string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_teams_account_name,priority:2" json:"name"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Team) TableName() string { return "teams" }

type TeamMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	TeamID    snowflake.ID `gorm:"not null;uniqueIndex:ux_team_members_team_agent,priority:1" json:"team_id"`
	AgentID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_team_members_team_agent,priority:2" json:"agent_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (TeamMember) TableName() string { return "team_members" }
