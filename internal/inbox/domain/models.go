package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ChannelWhatsApp = "whatsapp"

// Inbox is a channel endpoint of an account. GatewayToken, when set, routes
// webhooks carrying that token to this inbox.
type Inbox struct {
	ID                  snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID           snowflake.ID   `gorm:"not null;index" json:"account_id"`
	Name                string         `gorm:"type:varchar(255);not null" json:"name"`
	ChannelType         string         `gorm:"type:varchar(30);not null;default:'whatsapp'" json:"channel_type"`
	GatewayToken        string         `gorm:"type:varchar(191);index" json:"-"`
	GatewayUserID       string         `gorm:"type:varchar(191)" json:"gateway_user_id,omitempty"`
	AutoAssignment      datatypes.JSON `json:"auto_assignment,omitempty"`
	LastAssignedAgentID *snowflake.ID  `json:"-"`
	CreatedAt           time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
}

func (Inbox) TableName() string { return "inboxes" }

// InboxMember links an agent to an inbox.
type InboxMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	InboxID   snowflake.ID `gorm:"not null;uniqueIndex:ux_inbox_members_inbox_agent,priority:1" json:"inbox_id"`
	AgentID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_inbox_members_inbox_agent,priority:2" json:"agent_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (InboxMember) TableName() string { return "inbox_members" }

// AutoAssignment is the decoded auto_assignment column. An empty AgentIDs
// list means every active inbox member is eligible.
type AutoAssignment struct {
	Enabled  bool     `json:"enabled"`
	AgentIDs []string `json:"agent_ids,omitempty"`
}

// DecodeAutoAssignment tolerates absent config; malformed JSON is reported.
func DecodeAutoAssignment(raw datatypes.JSON) (AutoAssignment, error) {
	var cfg AutoAssignment
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AutoAssignment{}, err
	}
	return cfg, nil
}
