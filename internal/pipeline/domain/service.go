package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUnsupportedEvent = errors.New("unsupported_event")
	ErrMissingReference = errors.New("missing_conversation_reference")
	ErrMissingMessageID = errors.New("missing_external_message_id")
)

type Service interface {
	HandleInbound(ctx context.Context, gatewayToken string, event WebhookEvent, expectedTenantID *snowflake.ID) (*Outcome, error)
	SendOutbound(ctx context.Context, accountID, conversationID snowflake.ID, req SendRequest) (*SendOutcome, error)
}
