package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
)

type Service interface {
	Append(ctx context.Context, accountID, conversationID snowflake.ID, req AppendRequest) (*AppendResult, error)
	GetByExternalOrInternalID(ctx context.Context, accountID, conversationID snowflake.ID, ref string) (*Message, error)
	UpdateStatusByExternalID(ctx context.Context, accountID, conversationID snowflake.ID, externalID string, status Status) (*Message, error)
	MarkSent(ctx context.Context, accountID, id snowflake.ID, providerMessageID string) (*Message, error)
	MarkFailed(ctx context.Context, accountID, id snowflake.ID, reason string) (*Message, error)

	UpsertReaction(ctx context.Context, accountID, messageID snowflake.ID, reactor, emoji string) (*Reaction, error)
	ListReactions(ctx context.Context, accountID, messageID snowflake.ID) ([]Reaction, error)

	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}

// AppendRequest describes a message to add to a conversation. Empty Status
// picks the default for the direction and sender.
type AppendRequest struct {
	ExternalMessageID     string
	Direction             Direction
	Type                  Type
	Content               string
	MediaURL              string
	MediaMimeType         string
	MediaFileName         string
	ReplyTo               string
	Status                Status
	SenderType            SenderType
	SenderAgentID         *snowflake.ID
	SenderBotID           string
	ParticipantIdentifier string
	ParticipantName       string
	Payload               *Payload
	IsPrivateNote         bool
	Timestamp             *time.Time
}

type AppendResult struct {
	Message   *Message
	Duplicate bool
}

type ListRequest struct {
	pagination.Pagination
	AccountID      snowflake.ID
	ConversationID snowflake.ID
	ContactVisible bool
}

// ListResponse holds one page in chronological order.
type ListResponse struct {
	pagination.PageInfo
	Messages []Message `json:"messages"`
}

type SearchRequest struct {
	pagination.Pagination
	AccountID      snowflake.ID
	ConversationID *snowflake.ID
	Query          string
}

type SearchResponse struct {
	pagination.PageInfo
	Messages []Message `json:"messages"`
}

var (
	ErrNotFound             = errors.New("message_not_found")
	ErrConversationNotFound = errors.New("conversation_not_found")
	ErrBlankContent         = errors.New("blank_content")
	ErrMissingMedia         = errors.New("missing_media")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidType          = errors.New("invalid_type")
	ErrInvalidSender        = errors.New("invalid_sender_type")
	ErrInvalidDirection     = errors.New("invalid_direction")
	ErrInvalidQuery         = errors.New("invalid_query")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvalidReactor       = errors.New("invalid_reactor")
	ErrConflictUnresolved   = errors.New("message_conflict_unresolved")
)
