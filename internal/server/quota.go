package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
)

func (s *Server) QuotaSummary(c *gin.Context) {
	tenantKey, ok := tenantctx.TenantKey(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summary, err := s.quotaSvc.Summarize(c.Request.Context(), tenantKey)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
