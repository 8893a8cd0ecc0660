package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/chatdesk/internal/accountcontext"
)

const (
	HeaderAgentID   = "X-Agent-ID"
	HeaderAgentRole = "X-Agent-Role"
	HeaderTenantID  = "X-Tenant-ID"

	contextAccountIDKey = "account_id"
)

// AccountScope binds the :account_id path segment to the request context.
func AccountScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, err := snowflake.ParseString(strings.TrimSpace(c.Param("account_id")))
		if err != nil || accountID == 0 {
			AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
			return
		}

		c.Set(contextAccountIDKey, accountID)
		c.Request = c.Request.WithContext(accountcontext.WithAccountID(c.Request.Context(), accountID))
		c.Next()
	}
}

// ActorContext reads the acting agent from request headers. Identity is
// established upstream; this layer only carries it.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.TrimSpace(c.GetHeader(HeaderAgentRole))
		if role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		agentID, err := parseOptionalSnowflakeID(c.GetHeader(HeaderAgentID))
		if err != nil {
			AbortWithError(c, newValidationError("agent_id", "invalid_agent_id", "invalid agent id"))
			return
		}

		actor := accountcontext.Actor{Role: role}
		if agentID != nil {
			actor.AgentID = *agentID
		}
		c.Request = c.Request.WithContext(accountcontext.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (s *Server) RequirePermission(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := accountcontext.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), accountIDFrom(c), actor.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func accountIDFrom(c *gin.Context) snowflake.ID {
	if value, ok := c.Get(contextAccountIDKey); ok {
		if id, ok := value.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}
