package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
)

type listConversationsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Status     string `form:"status"`
	Unread     string `form:"unread"`
	InboxID    string `form:"inbox_id"`
	AssigneeID string `form:"assignee_id"`
	LabelID    string `form:"label_id"`
	Query      string `form:"q"`
}

func (s *Server) ListConversations(c *gin.Context) {
	var query listConversationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	unread, err := parseOptionalBool(query.Unread)
	if err != nil {
		AbortWithError(c, newValidationError("unread", "invalid_unread", "invalid unread"))
		return
	}
	inboxID, err := parseOptionalSnowflakeID(query.InboxID)
	if err != nil {
		AbortWithError(c, newValidationError("inbox_id", "invalid_inbox_id", "invalid inbox_id"))
		return
	}
	assigneeID, err := parseOptionalSnowflakeID(query.AssigneeID)
	if err != nil {
		AbortWithError(c, newValidationError("assignee_id", "invalid_assignee_id", "invalid assignee_id"))
		return
	}
	labelID, err := parseOptionalSnowflakeID(query.LabelID)
	if err != nil {
		AbortWithError(c, newValidationError("label_id", "invalid_label_id", "invalid label_id"))
		return
	}

	resp, err := s.conversationSvc.List(c.Request.Context(), conversationdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		AccountID:       accountIDFrom(c),
		Status:          strings.TrimSpace(query.Status),
		UnreadOnly:      unread != nil && *unread,
		InboxID:         inboxID,
		AssignedAgentID: assigneeID,
		LabelID:         labelID,
		Query:           query.Query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Conversations, "page_info": resp.PageInfo})
}

func (s *Server) MarkConversationRead(c *gin.Context) {
	conversationID, err := parseSnowflakeParam(c.Param("id"), "conversation_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.unreadSvc.MarkRead(c.Request.Context(), accountIDFrom(c), conversationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
