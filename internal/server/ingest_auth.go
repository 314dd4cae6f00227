package server

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ingestkeydomain "github.com/smallbiznis/lognest/internal/ingestkey/domain"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
)

// IngestKeyRequired authenticates requests with a bearer ingest key. The
// tenant identity comes solely from the ingest_keys table; any tenant claim
// in headers, query, or payload is never trusted.
func (s *Server) IngestKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash := ingestkeydomain.HashIngestKey(parts[1])
		now := time.Now().UTC()

		var record struct {
			ID        snowflake.ID `gorm:"column:id"`
			TenantKey string       `gorm:"column:tenant_key"`
			KeyHash   string       `gorm:"column:key_hash"`
			Submitter string       `gorm:"column:submitter"`
		}

		if err := s.db.WithContext(c.Request.Context()).Raw(
			`SELECT id, tenant_key, key_hash, submitter
			 FROM ingest_keys
			 WHERE key_hash = ?
			   AND is_active = ?
			   AND (expires_at IS NULL OR expires_at > ?)
			 LIMIT 1`,
			hash,
			true,
			now,
		).Scan(&record).Error; err != nil {
			AbortWithError(c, err)
			return
		}

		if record.ID == 0 || subtle.ConstantTimeCompare([]byte(record.KeyHash), []byte(hash)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := tenantctx.WithTenantKey(c.Request.Context(), record.TenantKey)
		if submitter := strings.TrimSpace(record.Submitter); submitter != "" {
			ctx = tenantctx.WithSubmitter(ctx, submitter)
		}

		c.Set("tenant_key", record.TenantKey)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
