package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pipelinedomain "github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	"go.uber.org/zap"
)

// HandleWebhook ingests one gateway event. Events that cannot be routed are
// acknowledged with 202 and a reason so the gateway does not redeliver them.
func (s *Server) HandleWebhook(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	expectedTenantID, err := parseOptionalSnowflakeID(c.GetHeader(HeaderTenantID))
	if err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "invalid tenant id"))
		return
	}

	var event pipelinedomain.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	outcome, err := s.pipelineSvc.HandleInbound(c.Request.Context(), token, event, expectedTenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !outcome.Routed {
		s.log.Info("webhook event not routed",
			zap.String("event_type", string(event.Type)),
			zap.String("reason", outcome.Reason),
		)
		c.JSON(http.StatusAccepted, gin.H{"data": outcome})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": outcome})
}
