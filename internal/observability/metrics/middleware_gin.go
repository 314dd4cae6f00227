package metrics

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records one observation per request.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		endpoint := c.FullPath()
		if strings.TrimSpace(endpoint) == "" {
			endpoint = "unknown"
		}
		m.Record(c.Request.Context(), endpoint, c.Writer.Status(), time.Since(start))
	}
}
