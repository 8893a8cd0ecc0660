package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, *Agent, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	GetByGatewayToken(ctx context.Context, token string) (*AccountWithTenant, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status) (*Account, error)

	CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error)
	GetAgent(ctx context.Context, accountID, agentID snowflake.ID) (*Agent, error)
	ListActiveByAvailability(ctx context.Context, accountID snowflake.ID, availabilities []Availability) ([]Agent, error)
	UpdateAvailability(ctx context.Context, accountID, agentID snowflake.ID, availability Availability) error

	StartSession(ctx context.Context, accountID, agentID snowflake.ID, ttl time.Duration) (*SessionToken, error)
	CreateCustomRole(ctx context.Context, accountID snowflake.ID, name string, permissions []string) (*CustomRole, error)
	Invite(ctx context.Context, accountID snowflake.ID, email string, role Role) (*Invitation, error)
}

// CreateAccountRequest creates an account together with its owner agent.
type CreateAccountRequest struct {
	TenantID     snowflake.ID
	Name         string
	OwnerUserID  snowflake.ID
	OwnerName    string
	OwnerEmail   string
	GatewayToken string
}

type CreateAgentRequest struct {
	AccountID snowflake.ID
	Name      string
	Email     string
	Role      Role
}

// SessionToken carries the plaintext token once; only its hash is stored.
type SessionToken struct {
	Session AgentSession
	Token   string
}

var (
	ErrNotFound           = errors.New("account_not_found")
	ErrAgentNotFound      = errors.New("agent_not_found")
	ErrTenantNotFound     = errors.New("tenant_not_found")
	ErrTenantInactive     = errors.New("tenant_inactive")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidAvailability = errors.New("invalid_availability")
	ErrInvalidToken       = errors.New("invalid_gateway_token")
	ErrGatewayTokenTaken  = errors.New("gateway_token_taken")
	ErrAgentEmailTaken    = errors.New("agent_email_taken")
	ErrRoleNameTaken      = errors.New("role_name_taken")
)

func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleAdministrator:
		return RoleAdministrator, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", ErrInvalidRole
	}
}

func ParseAvailability(value string) (Availability, error) {
	switch Availability(strings.ToLower(strings.TrimSpace(value))) {
	case AvailabilityOnline:
		return AvailabilityOnline, nil
	case AvailabilityBusy:
		return AvailabilityBusy, nil
	case AvailabilityOffline:
		return AvailabilityOffline, nil
	default:
		return "", ErrInvalidAvailability
	}
}
