package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
}

type ListFilter struct {
	AccountID    snowflake.ID
	Action       string
	ResourceType string
	ResourceID   string
	Boundary     *pagination.Boundary
	Limit        int
}

type RecordRequest struct {
	AccountID    snowflake.ID
	AgentID      *snowflake.ID
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

type ListRequest struct {
	pagination.Pagination
	AccountID    snowflake.ID
	Action       string
	ResourceType string
	ResourceID   string
}

type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

// Service records and lists account audit entries. Record is best-effort:
// callers log its error and carry on.
type Service interface {
	Record(ctx context.Context, req RecordRequest) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
