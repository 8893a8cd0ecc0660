package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"gorm.io/gorm"
)

// AccountWithTenant is an account joined with its owning tenant.
type AccountWithTenant struct {
	Account Account
	Tenant  tenantdomain.Tenant
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByGatewayToken(ctx context.Context, db *gorm.DB, token string) (*AccountWithTenant, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, now time.Time) (int64, error)

	InsertAgent(ctx context.Context, db *gorm.DB, agent *Agent) error
	FindAgent(ctx context.Context, db *gorm.DB, accountID, agentID snowflake.ID) (*Agent, error)
	ListAgents(ctx context.Context, db *gorm.DB, filter AgentFilter) ([]Agent, error)
	UpdateAvailability(ctx context.Context, db *gorm.DB, accountID, agentID snowflake.ID, availability Availability, now time.Time) (int64, error)

	InsertSession(ctx context.Context, db *gorm.DB, session *AgentSession) error
	InsertCustomRole(ctx context.Context, db *gorm.DB, role *CustomRole) error
	InsertInvitation(ctx context.Context, db *gorm.DB, invitation *Invitation) error
}

type AgentFilter struct {
	AccountID      snowflake.ID
	Status         AgentStatus
	Availabilities []Availability
}
