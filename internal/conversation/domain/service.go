package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
)

type Service interface {
	GetOrCreate(ctx context.Context, accountID snowflake.ID, contactIdentifier string, info ContactInfo) (*GetOrCreateResult, error)
	GetByID(ctx context.Context, accountID, id snowflake.ID) (*Conversation, error)
	FindByContact(ctx context.Context, accountID snowflake.ID, contactIdentifier string) (*Conversation, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)

	UpdateStatus(ctx context.Context, accountID, id snowflake.ID, status Status) (*Conversation, error)
	UpdateLastMessage(ctx context.Context, accountID, id snowflake.ID, preview string, at time.Time) error
	Assign(ctx context.Context, accountID, id snowflake.ID, agentID *snowflake.ID) (*Conversation, error)
	SetInbox(ctx context.Context, accountID, id snowflake.ID, inboxID *snowflake.ID) (*Conversation, error)

	CreateLabel(ctx context.Context, accountID snowflake.ID, title, color string) (*Label, error)
	AddLabel(ctx context.Context, accountID, conversationID, labelID snowflake.ID) error
	RemoveLabel(ctx context.Context, accountID, conversationID, labelID snowflake.ID) error
	ListLabels(ctx context.Context, accountID, conversationID snowflake.ID) ([]Label, error)
}

// ContactInfo seeds a conversation on first contact.
type ContactInfo struct {
	Name    string
	InboxID *snowflake.ID
}

type GetOrCreateResult struct {
	Conversation *Conversation
	Created      bool
}

type ListRequest struct {
	pagination.Pagination
	AccountID       snowflake.ID
	Status          string
	UnreadOnly      bool
	InboxID         *snowflake.ID
	AssignedAgentID *snowflake.ID
	LabelID         *snowflake.ID
	Query           string
}

type ListResponse struct {
	pagination.PageInfo
	Conversations []Conversation `json:"conversations"`
}

var (
	ErrNotFound           = errors.New("conversation_not_found")
	ErrInvalidContact     = errors.New("invalid_contact_identifier")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrAgentNotFound      = errors.New("agent_not_found")
	ErrInboxNotFound      = errors.New("inbox_not_found")
	ErrLabelNotFound      = errors.New("label_not_found")
	ErrInvalidLabel       = errors.New("invalid_label")
	ErrLabelTaken         = errors.New("label_taken")
	ErrConflictUnresolved = errors.New("conversation_conflict_unresolved")
)
