package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logdomain "github.com/smallbiznis/lognest/internal/logrecord/domain"
)

func (s *Server) IngestLog(c *gin.Context) {
	var req logdomain.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.logSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (s *Server) ListLogs(c *gin.Context) {
	var req logdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.logSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListLogLevels(c *gin.Context) {
	levels, err := s.logSvc.Levels(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

func (s *Server) ServiceStatus(c *gin.Context) {
	report, err := s.logSvc.ServiceStatus(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
