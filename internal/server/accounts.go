package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) DeleteAccount(c *gin.Context) {
	accountID := accountIDFrom(c)

	result, err := s.cascadeSvc.DeleteAccount(c.Request.Context(), accountID)
	if err != nil {
		s.log.Error("account deletion failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "rows_deleted": result.TotalRows()})
}

func (s *Server) VerifyNoOrphans(c *gin.Context) {
	report, err := s.cascadeSvc.VerifyNoOrphans(c.Request.Context(), accountIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report, "clean": report.Clean(), "dirty": report.Dirty()})
}
