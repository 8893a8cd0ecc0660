package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Inbox, error)
	GetByID(ctx context.Context, accountID, id snowflake.ID) (*Inbox, error)
	FindByGatewayToken(ctx context.Context, accountID snowflake.ID, token string) (*Inbox, error)
	ConfigureAutoAssignment(ctx context.Context, accountID, id snowflake.ID, cfg AutoAssignment) error

	AddMember(ctx context.Context, accountID, inboxID, agentID snowflake.ID) error
	AddMembers(ctx context.Context, accountID, inboxID snowflake.ID, agentIDs []snowflake.ID) BulkResult
	RemoveMember(ctx context.Context, accountID, inboxID, agentID snowflake.ID) error
	ListMemberIDs(ctx context.Context, accountID, inboxID snowflake.ID) ([]snowflake.ID, error)

	// PickAgent returns the next auto-assignment candidate, or nil when auto
	// assignment is disabled or nobody is eligible.
	PickAgent(ctx context.Context, accountID, inboxID snowflake.ID) (*snowflake.ID, error)
}

type CreateRequest struct {
	AccountID     snowflake.ID
	Name          string
	ChannelType   string
	GatewayToken  string
	GatewayUserID string
}

// BulkResult reports a best-effort bulk membership change. One failing agent
// does not stop the others.
type BulkResult struct {
	Added  []snowflake.ID
	Failed map[snowflake.ID]error
}

var (
	ErrNotFound       = errors.New("inbox_not_found")
	ErrInvalidName    = errors.New("invalid_name")
	ErrAgentNotFound  = errors.New("agent_not_found")
	ErrMemberNotFound = errors.New("inbox_member_not_found")
)
