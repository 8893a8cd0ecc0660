package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
)

const (
	ReasonAccountNotFound      = "account_not_found"
	ReasonInvalidTenantContext = "invalid_tenant_context"
	resultRouted               = "routed"
)

var ErrInvalidTenantContext = errors.New(ReasonInvalidTenantContext)

// ResultLabel is the metrics label for a routing outcome.
func ResultLabel(r RouteResult) string {
	if r.Routed {
		return resultRouted
	}
	return r.Reason
}

// Event is the routing view of an inbound gateway event. Either reference
// may be empty; an event that references no conversation falls back to the
// inbox hint.
type Event struct {
	Type              string
	ConversationID    *snowflake.ID
	ContactIdentifier string
	InboxID           *snowflake.ID
}

type RouteResult struct {
	Routed       bool
	Account      *accountdomain.AccountWithTenant
	Conversation *conversationdomain.Conversation
	Audience     []snowflake.ID
	Reason       string
}

type Service interface {
	// ResolveAccount returns nil unless both the account and its tenant are
	// active.
	ResolveAccount(ctx context.Context, gatewayToken string) (*accountdomain.AccountWithTenant, error)
	ValidateTenantContext(account *accountdomain.AccountWithTenant, expectedTenantID *snowflake.ID) bool
	RouteEvent(ctx context.Context, gatewayToken string, event Event, expectedTenantID *snowflake.ID) (RouteResult, error)
	ComputeAudience(ctx context.Context, accountID snowflake.ID, conversation *conversationdomain.Conversation, inboxID *snowflake.ID) ([]snowflake.ID, error)
}
