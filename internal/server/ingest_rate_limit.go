package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lognest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/lognest/internal/observability/metrics"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	rateLimitReasonTenantRate   = "tenant-rate"
	rateLimitReasonEndpointRate = "endpoint-rate"

	ingestEndpointLabel = "/api/logs"
)

// IngestRateLimit shields the write path from bursts. It runs after auth so
// the tenant bucket key is the verified tenant, and before any quota
// reservation so a throttled request never touches the ledger.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ingestLimiter == nil || !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tenantKey, ok := tenantctx.TenantKey(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		allowed, err := s.ingestLimiter.AllowTenant(ctx, tenantKey)
		if err != nil {
			logger.FromContext(ctx).Warn("ingest tenant rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyIngestRateLimit(c, rateLimitReasonTenantRate, s.obsMetrics)
			return
		}

		allowed, err = s.ingestLimiter.AllowEndpoint(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("ingest endpoint rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyIngestRateLimit(c, rateLimitReasonEndpointRate, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, s.obsMetrics)
		c.Next()
	}
}

func denyIngestRateLimit(c *gin.Context, reason string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("ingest rate limit exceeded",
		zap.String("reason", reason),
	)
	if metrics != nil {
		metrics.RecordRateLimitDenied(ctx, ingestEndpointLabel, reason)
	}

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, ingestEndpointLabel)
}
