package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/accountcontext"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/audit/masking"
	"github.com/smallbiznis/chatdesk/internal/clock"
	obscontext "github.com/smallbiznis/chatdesk/internal/observability/context"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req auditdomain.RecordRequest) error {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	accountID := req.AccountID
	if accountID == 0 {
		accountID, _ = accountcontext.AccountIDFromContext(ctx)
	}
	if accountID == 0 {
		return auditdomain.ErrInvalidAccount
	}

	resourceType := strings.TrimSpace(req.ResourceType)
	if resourceType == "" {
		resourceType = "unknown"
	}

	agentID := req.AgentID
	if agentID == nil {
		agentID = accountcontext.AgentIDFromContext(ctx)
	}

	details := masking.MaskDetails(req.Details)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		if details == nil {
			details = map[string]any{}
		}
		details["request_id"] = requestID
	}

	entry := auditdomain.Entry{
		ID:           s.genID.Generate(),
		AccountID:    accountID,
		AgentID:      agentID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strings.TrimSpace(req.ResourceID),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if len(details) > 0 {
		entry.Details = datatypes.JSONMap(details)
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	accountID := req.AccountID
	if accountID == 0 {
		accountID, _ = accountcontext.AccountIDFromContext(ctx)
	}
	if accountID == 0 {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidAccount
	}

	boundary, err := pagination.ParseBoundary(req.PageToken)
	if err != nil || (boundary != nil && boundary.Timestamp == nil) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		AccountID:    accountID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Boundary:     boundary,
		Limit:        pageSize,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *auditdomain.Entry) string {
		createdAt := item.CreatedAt
		token, err := pagination.EncodeCursor(pagination.NewCursor(int64(item.ID), &createdAt))
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]auditdomain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := auditdomain.ListResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
