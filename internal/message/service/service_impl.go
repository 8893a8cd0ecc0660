package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/config"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	"github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/observability/metrics"
	unreaddomain "github.com/smallbiznis/chatdesk/internal/unread/domain"
	"github.com/smallbiznis/chatdesk/pkg/db"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Config           *config.InboxConfigHolder
	Repo             domain.Repository
	ConversationRepo conversationdomain.Repository
	Unread           unreaddomain.Service
	Audit            auditdomain.Service
	Metrics          *metrics.Metrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	config           *config.InboxConfigHolder
	repo             domain.Repository
	conversationRepo conversationdomain.Repository
	unread           unreaddomain.Service
	audit            auditdomain.Service
	metrics          *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("message.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		config:           p.Config,
		repo:             p.Repo,
		conversationRepo: p.ConversationRepo,
		unread:           p.Unread,
		audit:            p.Audit,
		metrics:          p.Metrics,
	}
}

// Append adds a message to the ledger. A repeated external id returns the
// stored row untouched with Duplicate set.
func (s *Service) Append(ctx context.Context, accountID, conversationID snowflake.ID, req domain.AppendRequest) (*domain.AppendResult, error) {
	message, err := s.buildMessage(accountID, conversationID, req)
	if err != nil {
		return nil, err
	}
	conversation, err := s.loadConversation(ctx, accountID, conversationID)
	if err != nil {
		return nil, err
	}

	var result domain.AppendResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ref := strings.TrimSpace(req.ReplyTo); ref != "" {
			message.ReplyToExternalID = &ref
			target, err := s.lookupRef(ctx, tx, conversationID, ref)
			if err != nil {
				return err
			}
			if target != nil {
				message.ReplyToMessageID = &target.ID
			}
		}

		inserted, err := s.repo.InsertIgnoreConflict(ctx, tx, message)
		if err != nil && !db.IsDuplicateKeyErr(err) {
			return err
		}
		if !inserted {
			if message.ExternalMessageID == nil {
				return domain.ErrConflictUnresolved
			}
			existing, err := s.repo.FindByExternalID(ctx, tx, conversationID, *message.ExternalMessageID)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrConflictUnresolved
			}
			result = domain.AppendResult{Message: existing, Duplicate: true}
			return nil
		}

		if !message.IsPrivateNote {
			preview := conversationdomain.TruncatePreview(previewOf(message), s.config.Get().PreviewMaxLength)
			if err := s.conversationRepo.UpdateLastMessage(ctx, tx, conversation.ID, preview, message.Timestamp, s.clock.Now()); err != nil {
				return err
			}
		}
		if message.CountsAsUnread() {
			if err := s.unread.Increment(ctx, tx, conversation.ID, 1); err != nil {
				return err
			}
		}
		result = domain.AppendResult{Message: message}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.decodePayload(result.Message)
	if result.Duplicate {
		s.metrics.RecordDuplicateIngest(ctx, string(message.Direction))
		s.log.Debug("duplicate message ignored",
			zap.String("conversation_id", conversationID.String()),
			zap.String("message_id", result.Message.ID.String()),
		)
		return &result, nil
	}

	s.metrics.RecordMessageAppended(ctx, string(message.Direction), string(message.Type))
	if message.Direction == domain.DirectionOutgoing {
		_ = s.audit.Record(ctx, auditdomain.RecordRequest{
			AccountID:    accountID,
			AgentID:      message.SenderAgentID,
			Action:       "message.create",
			ResourceType: "message",
			ResourceID:   message.ID.String(),
			Details: map[string]any{
				"conversation_id": conversationID.String(),
				"private_note":    message.IsPrivateNote,
			},
		})
	}
	return &result, nil
}

func (s *Service) buildMessage(accountID, conversationID snowflake.ID, req domain.AppendRequest) (*domain.Message, error) {
	direction, err := domain.ParseDirection(string(req.Direction))
	if err != nil {
		return nil, err
	}
	msgType, err := domain.ParseType(string(req.Type))
	if err != nil {
		return nil, err
	}
	if req.Payload != nil && req.Type == "" {
		if inferred := req.Payload.MessageType(); inferred != "" {
			msgType = inferred
		}
	}

	senderType, err := resolveSender(direction, req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	timestamp := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}

	message := &domain.Message{
		ID:                    s.genID.Generate(),
		AccountID:             accountID,
		ConversationID:        conversationID,
		Direction:             direction,
		Type:                  msgType,
		Content:               req.Content,
		MediaURL:              strings.TrimSpace(req.MediaURL),
		MediaMimeType:         strings.TrimSpace(req.MediaMimeType),
		MediaFileName:         strings.TrimSpace(req.MediaFileName),
		SenderType:            senderType,
		SenderAgentID:         req.SenderAgentID,
		SenderBotID:           strings.TrimSpace(req.SenderBotID),
		ParticipantIdentifier: strings.TrimSpace(req.ParticipantIdentifier),
		ParticipantName:       strings.TrimSpace(req.ParticipantName),
		IsPrivateNote:         req.IsPrivateNote,
		Timestamp:             timestamp,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if external := strings.TrimSpace(req.ExternalMessageID); external != "" {
		message.ExternalMessageID = &external
	}

	if err := validatePayload(message, req.Payload); err != nil {
		return nil, err
	}
	if req.Payload != nil {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, err
		}
		message.StructuredPayload = datatypes.JSON(encoded)
		message.Payload = req.Payload
	}
	if err := validateContent(message); err != nil {
		return nil, err
	}

	status, err := defaultStatus(message, req.Status)
	if err != nil {
		return nil, err
	}
	message.Status = status
	return message, nil
}

func resolveSender(direction domain.Direction, req domain.AppendRequest) (domain.SenderType, error) {
	if req.SenderType != "" {
		return domain.ParseSenderType(string(req.SenderType))
	}
	switch {
	case direction == domain.DirectionIncoming:
		return domain.SenderContact, nil
	case req.SenderAgentID != nil:
		return domain.SenderAgent, nil
	case strings.TrimSpace(req.SenderBotID) != "":
		return domain.SenderBot, nil
	default:
		return domain.SenderUser, nil
	}
}

func validatePayload(message *domain.Message, payload *domain.Payload) error {
	structured := message.Type == domain.TypePoll || message.Type == domain.TypeInteractive
	if payload == nil {
		if structured {
			return domain.ErrInvalidPayload
		}
		return nil
	}
	if payload.MessageType() != message.Type {
		return domain.ErrInvalidPayload
	}
	return payload.Validate()
}

// validateContent rejects blank messages typed by a person. Media, poll and
// interactive messages may carry no text when their attachment is present.
func validateContent(message *domain.Message) error {
	if !message.HumanAuthored() || strings.TrimSpace(message.Content) != "" {
		return nil
	}
	switch message.Type {
	case domain.TypeImage, domain.TypeAudio, domain.TypeVideo, domain.TypeDocument, domain.TypeSticker:
		if message.MediaURL == "" {
			return domain.ErrMissingMedia
		}
		return nil
	case domain.TypePoll, domain.TypeInteractive:
		if message.Payload == nil {
			return domain.ErrInvalidPayload
		}
		return nil
	default:
		return domain.ErrBlankContent
	}
}

func defaultStatus(message *domain.Message, requested domain.Status) (domain.Status, error) {
	if requested != "" {
		return domain.ParseStatus(string(requested))
	}
	switch {
	case message.Direction == domain.DirectionIncoming:
		return domain.StatusDelivered, nil
	case message.IsPrivateNote:
		return domain.StatusSent, nil
	case message.SenderType == domain.SenderBot:
		return domain.StatusSent, nil
	default:
		return domain.StatusPending, nil
	}
}

func previewOf(message *domain.Message) string {
	if content := strings.TrimSpace(message.Content); content != "" {
		return content
	}
	if message.Payload != nil && message.Payload.Poll != nil {
		return message.Payload.Poll.Question
	}
	return "[" + string(message.Type) + "]"
}

func (s *Service) loadConversation(ctx context.Context, accountID, conversationID snowflake.ID) (*conversationdomain.Conversation, error) {
	conversation, err := s.conversationRepo.FindByID(ctx, s.db, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, domain.ErrConversationNotFound
	}
	if conversation.AccountID != accountID {
		s.log.Warn("cross-account conversation access denied",
			zap.String("account_id", accountID.String()),
			zap.String("conversation_id", conversationID.String()),
		)
		return nil, domain.ErrConversationNotFound
	}
	return conversation, nil
}

// lookupRef resolves a numeric reference as an internal id first and falls
// back to the external id.
func (s *Service) lookupRef(ctx context.Context, conn *gorm.DB, conversationID snowflake.ID, ref string) (*domain.Message, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		found, err := s.repo.FindByID(ctx, conn, conversationID, snowflake.ID(id))
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return s.repo.FindByExternalID(ctx, conn, conversationID, ref)
}

func (s *Service) GetByExternalOrInternalID(ctx context.Context, accountID, conversationID snowflake.ID, ref string) (*domain.Message, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	if _, err := s.loadConversation(ctx, accountID, conversationID); err != nil {
		return nil, err
	}
	message, err := s.lookupRef(ctx, s.db, conversationID, ref)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, domain.ErrNotFound
	}
	s.decodePayload(message)
	return message, nil
}

// UpdateStatusByExternalID applies a gateway status callback. Stale or
// backwards transitions leave the message unchanged.
func (s *Service) UpdateStatusByExternalID(ctx context.Context, accountID, conversationID snowflake.ID, externalID string, status domain.Status) (*domain.Message, error) {
	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	if _, err := s.loadConversation(ctx, accountID, conversationID); err != nil {
		return nil, err
	}

	var updated *domain.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message, err := s.repo.FindByExternalID(ctx, tx, conversationID, strings.TrimSpace(externalID))
		if err != nil {
			return err
		}
		if message == nil {
			return domain.ErrNotFound
		}
		updated = message
		if !domain.CanTransition(message.Status, status) {
			return nil
		}
		return s.transition(ctx, tx, message, status, "")
	})
	if err != nil {
		return nil, err
	}
	s.decodePayload(updated)
	return updated, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, message *domain.Message, status domain.Status, reason string) error {
	wasUnread := message.CountsAsUnread()
	if err := s.repo.UpdateStatus(ctx, tx, message.ID, status, reason, s.clock.Now()); err != nil {
		return err
	}
	message.Status = status
	message.FailureReason = reason

	var delta int64
	switch isUnread := message.CountsAsUnread(); {
	case wasUnread && !isUnread:
		delta = -1
	case !wasUnread && isUnread:
		delta = 1
	}
	return s.unread.Increment(ctx, tx, message.ConversationID, delta)
}

func (s *Service) MarkSent(ctx context.Context, accountID, id snowflake.ID, providerMessageID string) (*domain.Message, error) {
	message, err := s.findInAccount(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	providerMessageID = strings.TrimSpace(providerMessageID)
	if providerMessageID != "" && message.ExternalMessageID == nil {
		if err := s.repo.SetExternalID(ctx, s.db, message.ID, providerMessageID, s.clock.Now()); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			s.log.Warn("provider message id already recorded in conversation",
				zap.String("message_id", message.ID.String()),
				zap.String("provider_message_id", providerMessageID),
			)
		} else {
			message.ExternalMessageID = &providerMessageID
		}
	}

	if domain.CanTransition(message.Status, domain.StatusSent) {
		if err := s.transition(ctx, s.db, message, domain.StatusSent, ""); err != nil {
			return nil, err
		}
	}
	return message, nil
}

func (s *Service) MarkFailed(ctx context.Context, accountID, id snowflake.ID, reason string) (*domain.Message, error) {
	message, err := s.findInAccount(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(message.Status, domain.StatusFailed) {
		return message, nil
	}
	if err := s.transition(ctx, s.db, message, domain.StatusFailed, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}

	s.log.Warn("message send failed",
		zap.String("message_id", message.ID.String()),
		zap.String("reason", reason),
	)
	return message, nil
}

func (s *Service) findInAccount(ctx context.Context, accountID, id snowflake.ID) (*domain.Message, error) {
	message, err := s.repo.FindInAccount(ctx, s.db, accountID, id)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, domain.ErrNotFound
	}
	s.decodePayload(message)
	return message, nil
}

// UpsertReaction sets the reactor's emoji on a message. An empty emoji
// removes the reaction and returns nil.
func (s *Service) UpsertReaction(ctx context.Context, accountID, messageID snowflake.ID, reactor, emoji string) (*domain.Reaction, error) {
	reactor = strings.TrimSpace(reactor)
	if reactor == "" {
		return nil, domain.ErrInvalidReactor
	}
	message, err := s.findInAccount(ctx, accountID, messageID)
	if err != nil {
		return nil, err
	}

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		if _, err := s.repo.DeleteReaction(ctx, s.db, message.ID, reactor); err != nil {
			return nil, err
		}
		return nil, nil
	}

	now := s.clock.Now()
	if err := s.repo.UpsertReaction(ctx, s.db, &domain.Reaction{
		ID:                s.genID.Generate(),
		AccountID:         accountID,
		MessageID:         message.ID,
		ReactorIdentifier: reactor,
		Emoji:             emoji,
		CreatedAt:         now,
		UpdatedAt:         now,
	}); err != nil {
		return nil, err
	}
	return s.repo.FindReaction(ctx, s.db, message.ID, reactor)
}

func (s *Service) ListReactions(ctx context.Context, accountID, messageID snowflake.ID) ([]domain.Reaction, error) {
	message, err := s.findInAccount(ctx, accountID, messageID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReactions(ctx, s.db, []snowflake.ID{message.ID})
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if _, err := s.loadConversation(ctx, req.AccountID, req.ConversationID); err != nil {
		return domain.ListResponse{}, err
	}
	boundary, err := pagination.ParseBoundary(req.PageToken)
	if err != nil || (boundary != nil && boundary.Timestamp == nil) {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}
	limit := s.config.Get().PageSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		ConversationID: req.ConversationID,
		ContactVisible: req.ContactVisible,
		Boundary:       boundary,
		Limit:          limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo, page := s.page(items, limit)

	// newest-first from the store, oldest-first for the reader
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	if err := s.attachReactions(ctx, page); err != nil {
		return domain.ListResponse{}, err
	}
	return domain.ListResponse{PageInfo: pageInfo, Messages: page}, nil
}

func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.SearchResponse{}, domain.ErrInvalidQuery
	}
	if req.ConversationID != nil {
		if _, err := s.loadConversation(ctx, req.AccountID, *req.ConversationID); err != nil {
			return domain.SearchResponse{}, err
		}
	}
	boundary, err := pagination.ParseBoundary(req.PageToken)
	if err != nil || (boundary != nil && boundary.Timestamp == nil) {
		return domain.SearchResponse{}, domain.ErrInvalidPageToken
	}
	limit := s.config.Get().PageSize(req.PageSize)

	items, err := s.repo.Search(ctx, s.db, domain.SearchFilter{
		AccountID:      req.AccountID,
		ConversationID: req.ConversationID,
		Query:          query,
		Boundary:       boundary,
		Limit:          limit,
	})
	if err != nil {
		return domain.SearchResponse{}, err
	}

	pageInfo, page := s.page(items, limit)
	return domain.SearchResponse{PageInfo: pageInfo, Messages: page}, nil
}

func (s *Service) page(items []*domain.Message, limit int) (pagination.PageInfo, []domain.Message) {
	pageInfo := pagination.BuildCursorPageInfo(items, int32(limit), func(item *domain.Message) string {
		ts := item.Timestamp
		token, err := pagination.EncodeCursor(pagination.NewCursor(int64(item.ID), &ts))
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	page := make([]domain.Message, 0, len(items))
	for _, item := range items {
		s.decodePayload(item)
		page = append(page, *item)
	}
	return *pageInfo, page
}

func (s *Service) attachReactions(ctx context.Context, page []domain.Message) error {
	if len(page) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(page))
	for _, message := range page {
		ids = append(ids, message.ID)
	}
	reactions, err := s.repo.ListReactions(ctx, s.db, ids)
	if err != nil {
		return err
	}
	byMessage := make(map[snowflake.ID][]domain.Reaction, len(reactions))
	for _, reaction := range reactions {
		byMessage[reaction.MessageID] = append(byMessage[reaction.MessageID], reaction)
	}
	for i := range page {
		page[i].Reactions = byMessage[page[i].ID]
	}
	return nil
}

// decodePayload fills Payload from the stored JSON. Undecodable payloads are
// logged and left nil so one bad row never breaks a thread.
func (s *Service) decodePayload(message *domain.Message) {
	if message == nil || message.Payload != nil || len(message.StructuredPayload) == 0 {
		return
	}
	payload, err := domain.DecodePayload(message.StructuredPayload)
	if err != nil {
		s.log.Warn("failed to decode structured payload",
			zap.String("message_id", message.ID.String()),
			zap.Error(err),
		)
		return
	}
	message.Payload = payload
}
