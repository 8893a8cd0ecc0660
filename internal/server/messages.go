package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/chatdesk/internal/accountcontext"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	pipelinedomain "github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
)

type listMessagesQuery struct {
	PageToken      string `form:"page_token"`
	PageSize       int    `form:"page_size"`
	ContactVisible string `form:"contact_visible"`
}

func (s *Server) ListMessages(c *gin.Context) {
	conversationID, err := parseSnowflakeParam(c.Param("id"), "conversation_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query listMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	contactVisible, err := parseOptionalBool(query.ContactVisible)
	if err != nil {
		AbortWithError(c, newValidationError("contact_visible", "invalid_contact_visible", "invalid contact_visible"))
		return
	}

	resp, err := s.messageSvc.List(c.Request.Context(), messagedomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		AccountID:      accountIDFrom(c),
		ConversationID: conversationID,
		ContactVisible: contactVisible != nil && *contactVisible,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Messages, "page_info": resp.PageInfo})
}

// SendMessage records an outgoing message and hands it to the gateway. A
// gateway failure still answers 201; the stored message carries the reason.
func (s *Server) SendMessage(c *gin.Context) {
	conversationID, err := parseSnowflakeParam(c.Param("id"), "conversation_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req pipelinedomain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SenderAgentID = accountcontext.AgentIDFromContext(c.Request.Context())

	outcome, err := s.pipelineSvc.SendOutbound(c.Request.Context(), accountIDFrom(c), conversationID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": outcome})
}
