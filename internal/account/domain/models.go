// Package domain contains persistence models for accounts and their agents.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Account is a customer workspace owning inboxes, agents, teams and
// conversations. GatewayToken is the opaque credential the WhatsApp gateway
// presents on every webhook.
type Account struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	OwnerUserID  snowflake.ID `gorm:"not null" json:"owner_user_id"`
	GatewayToken string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_accounts_gateway_token" json:"-"`
	Status       Status       `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func (a Account) IsActive() bool { return a.Status == StatusActive }

type Role string

const (
	RoleOwner         Role = "owner"
	RoleAdministrator Role = "administrator"
	RoleAgent         Role = "agent"
)

type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)

type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityBusy    Availability = "busy"
	AvailabilityOffline Availability = "offline"
)

// Agent is a human operator of an account.
type Agent struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_agents_account_email,priority:1" json:"account_id"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	Email        string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_agents_account_email,priority:2" json:"email"`
	Role         Role         `gorm:"type:varchar(20);not null" json:"role"`
	Status       AgentStatus  `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Availability Availability `gorm:"type:varchar(20);not null;default:'offline'" json:"availability"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Agent) TableName() string { return "agents" }

// AgentSession stores a hashed session credential for an agent.
type AgentSession struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	AgentID   snowflake.ID `gorm:"not null;index" json:"agent_id"`
	TokenHash string       `gorm:"type:varchar(128);not null;uniqueIndex:ux_agent_sessions_token" json:"-"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (AgentSession) TableName() string { return "agent_sessions" }

// CustomRole is an account-defined permission set.
type CustomRole struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID   `gorm:"not null;index;uniqueIndex:ux_custom_roles_account_name,priority:1" json:"account_id"`
	Name        string         `gorm:"type:varchar(100);not null;uniqueIndex:ux_custom_roles_account_name,priority:2" json:"name"`
	Permissions datatypes.JSON `json:"permissions"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (CustomRole) TableName() string { return "custom_roles" }

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Invitation is a pending invite for someone to join an account as an agent.
type Invitation struct {
	ID        snowflake.ID     `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID     `gorm:"not null;index" json:"account_id"`
	Email     string           `gorm:"type:varchar(191);not null" json:"email"`
	Role      Role             `gorm:"type:varchar(20);not null" json:"role"`
	Status    InvitationStatus `gorm:"type:varchar(20);not null" json:"status"`
	InvitedBy *snowflake.ID    `json:"invited_by,omitempty"`
	CreatedAt time.Time        `gorm:"not null" json:"created_at"`
}

func (Invitation) TableName() string { return "account_invitations" }
