package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/clock"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/observability/metrics"
	"github.com/smallbiznis/chatdesk/internal/unread/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	ConversationRepo conversationdomain.Repository
	MessageRepo      messagedomain.Repository
	Audit            auditdomain.Service
	Metrics          *metrics.Metrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	clock            clock.Clock
	conversationRepo conversationdomain.Repository
	messageRepo      messagedomain.Repository
	audit            auditdomain.Service
	metrics          *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("unread.service"),
		clock:            p.Clock,
		conversationRepo: p.ConversationRepo,
		messageRepo:      p.MessageRepo,
		audit:            p.Audit,
		metrics:          p.Metrics,
	}
}

func (s *Service) Increment(ctx context.Context, tx *gorm.DB, conversationID snowflake.ID, delta int64) error {
	if delta == 0 {
		return nil
	}
	return s.conversationRepo.AddUnread(ctx, tx, conversationID, delta)
}

// MarkRead flips every unread incoming message to read and zeroes the
// counter in one transaction.
func (s *Service) MarkRead(ctx context.Context, accountID, conversationID snowflake.ID) (*domain.MarkReadResult, error) {
	conversation, err := s.conversationRepo.FindByID(ctx, s.db, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil || conversation.AccountID != accountID {
		return nil, domain.ErrConversationNotFound
	}

	var marked int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.messageRepo.MarkIncomingRead(ctx, tx, conversationID, s.clock.Now())
		if err != nil {
			return err
		}
		marked = rows
		return s.conversationRepo.SetUnread(ctx, tx, conversationID, 0)
	})
	if err != nil {
		return nil, err
	}

	if marked > 0 {
		_ = s.audit.Record(ctx, auditdomain.RecordRequest{
			AccountID:    accountID,
			Action:       "conversation.mark_read",
			ResourceType: "conversation",
			ResourceID:   conversationID.String(),
			Details:      map[string]any{"messages_read": marked},
		})
	}
	return &domain.MarkReadResult{ConversationID: conversationID, MessagesRead: marked}, nil
}

func (s *Service) Recompute(ctx context.Context, conversationID snowflake.ID) (int64, error) {
	return s.messageRepo.CountUnread(ctx, s.db, conversationID)
}

// Repair recomputes the counter and writes it back when it drifted.
func (s *Service) Repair(ctx context.Context, conversationID snowflake.ID) (*domain.RepairResult, error) {
	var result domain.RepairResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversation, err := s.conversationRepo.FindByID(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if conversation == nil {
			return domain.ErrConversationNotFound
		}
		actual, err := s.messageRepo.CountUnread(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		result = domain.RepairResult{
			ConversationID: conversationID,
			Stored:         conversation.UnreadCount,
			Actual:         actual,
		}
		if !result.Drifted() {
			return nil
		}
		return s.conversationRepo.SetUnread(ctx, tx, conversationID, actual)
	})
	if err != nil {
		return nil, err
	}

	if result.Drifted() {
		s.log.Warn("unread counter drift repaired",
			zap.String("conversation_id", conversationID.String()),
			zap.Int64("stored", result.Stored),
			zap.Int64("actual", result.Actual),
		)
		s.metrics.RecordUnreadDriftRepair(ctx, 1)
	}
	return &result, nil
}
