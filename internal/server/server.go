package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/lognest/internal/config"
	"github.com/smallbiznis/lognest/internal/ingestkey"
	ingestkeydomain "github.com/smallbiznis/lognest/internal/ingestkey/domain"
	"github.com/smallbiznis/lognest/internal/logrecord"
	logdomain "github.com/smallbiznis/lognest/internal/logrecord/domain"
	"github.com/smallbiznis/lognest/internal/observability"
	obsmiddleware "github.com/smallbiznis/lognest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/lognest/internal/observability/metrics"
	obstracing "github.com/smallbiznis/lognest/internal/observability/tracing"
	"github.com/smallbiznis/lognest/internal/plan"
	plandomain "github.com/smallbiznis/lognest/internal/plan/domain"
	"github.com/smallbiznis/lognest/internal/quota"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/smallbiznis/lognest/internal/ratelimit"
	"github.com/smallbiznis/lognest/internal/tenant"
	tenantdomain "github.com/smallbiznis/lognest/internal/tenant/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	plan.Module,
	tenant.Module,
	ingestkey.Module,
	quota.Module,
	logrecord.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	logSvc       logdomain.Service
	quotaSvc     quotadomain.Reporter
	tenantSvc    tenantdomain.Service
	planSvc      plandomain.Service
	ingestKeySvc ingestkeydomain.Service

	obsMetrics    *obsmetrics.Metrics
	ingestLimiter *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	LogSvc       logdomain.Service
	QuotaSvc     quotadomain.Reporter
	TenantSvc    tenantdomain.Service
	PlanSvc      plandomain.Service
	IngestKeySvc ingestkeydomain.Service

	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		logSvc:        p.LogSvc,
		quotaSvc:      p.QuotaSvc,
		tenantSvc:     p.TenantSvc,
		planSvc:       p.PlanSvc,
		ingestKeySvc:  p.IngestKeySvc,
		obsMetrics:    p.ObsMetrics,
		ingestLimiter: p.IngestLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Logs --------
	api.POST("/logs", s.IngestKeyRequired(), s.IngestRateLimit(), s.IngestLog)
	api.GET("/logs", s.IngestKeyRequired(), s.ListLogs)
	api.GET("/logs/levels", s.IngestKeyRequired(), s.ListLogLevels)

	// -------- Service status --------
	api.GET("/service-status", s.IngestKeyRequired(), s.ServiceStatus)

	// -------- Quota --------
	api.GET("/quota/summary", s.IngestKeyRequired(), s.QuotaSummary)

	// -------- Plans --------
	api.GET("/plans", s.IngestKeyRequired(), s.ListPlans)

	// -------- Ingest keys --------
	api.GET("/ingest_keys", s.IngestKeyRequired(), s.ListIngestKeys)
	api.POST("/ingest_keys", s.IngestKeyRequired(), s.CreateIngestKey)
	api.DELETE("/ingest_keys/:key_id", s.IngestKeyRequired(), s.RevokeIngestKey)
}
