package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, accountID snowflake.ID, name, description string) (*Team, error)
	GetByID(ctx context.Context, accountID, id snowflake.ID) (*Team, error)
	AddMember(ctx context.Context, accountID, teamID, agentID snowflake.ID) error
	AddMembers(ctx context.Context, accountID, teamID snowflake.ID, agentIDs []snowflake.ID) BulkResult
	RemoveMember(ctx context.Context, accountID, teamID, agentID snowflake.ID) error
	ListMemberIDs(ctx context.Context, accountID, teamID snowflake.ID) ([]snowflake.ID, error)
}

type BulkResult struct {
	Added  []snowflake.ID
	Failed map[snowflake.ID]error
}

var (
	ErrNotFound       = errors.New("team_not_found")
	ErrInvalidName    = errors.New("invalid_name")
	ErrNameTaken      = errors.New("team_name_taken")
	ErrAgentNotFound  = errors.New("agent_not_found")
	ErrMemberNotFound = errors.New("team_member_not_found")
)
