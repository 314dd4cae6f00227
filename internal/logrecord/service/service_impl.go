package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lognest/internal/clock"
	logdomain "github.com/smallbiznis/lognest/internal/logrecord/domain"
	obsmetrics "github.com/smallbiznis/lognest/internal/observability/metrics"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/smallbiznis/lognest/pkg/db/option"
	"github.com/smallbiznis/lognest/pkg/db/pagination"
	"github.com/smallbiznis/lognest/pkg/repository"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const recentLogsCap = 1000

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Gate       quotadomain.Gate
	Ledger     quotadomain.Ledger
	Repo       logdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	gate       quotadomain.Gate
	ledger     quotadomain.Ledger
	repo       logdomain.Repository
	logstore   repository.Repository[logdomain.LogRecord]
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) logdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("logrecord.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		gate:       p.Gate,
		ledger:     p.Ledger,
		repo:       p.Repo,
		logstore:   repository.ProvideStore[logdomain.LogRecord](p.DB),
		obsMetrics: p.ObsMetrics,
	}
}

// Ingest admits one record against the tenant's monthly budget, then
// persists it. Quota is reserved exactly once; every path that does not end
// in a stored record releases that reservation exactly once. There is no
// automatic persistence retry: a retried client request is a fresh ingest
// with its own reservation.
func (s *Service) Ingest(ctx context.Context, req logdomain.IngestRequest) (*logdomain.LogRecord, error) {
	tenantKey, ok := tenantctx.TenantKey(ctx)
	if !ok {
		// Nothing was reserved yet, so there is nothing to undo.
		return nil, logdomain.ErrInvalidTenantKey
	}

	decision, err := s.gate.Admit(ctx, tenantKey, 1)
	if err != nil {
		return nil, err
	}
	if !decision.Admitted {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordIngestDenied(ctx, decision.Period.String())
		}
		return nil, &logdomain.QuotaDeniedError{Denial: *decision.Denial}
	}

	if err := validateIngestRequest(req); err != nil {
		// An invalid payload must not permanently consume quota.
		s.release(ctx, tenantKey, decision.Period, "invalid_payload")
		if s.obsMetrics != nil {
			s.obsMetrics.RecordIngestRejected(ctx, err.Error())
		}
		return nil, err
	}

	submitter, _ := tenantctx.Submitter(ctx)
	if submitter == "" {
		submitter = strings.TrimSpace(req.UserID)
	}

	record := &logdomain.LogRecord{
		ID:      s.genID.Generate(),
		Level:   strings.TrimSpace(req.Level),
		Service: strings.TrimSpace(req.Service),
		App:     strings.TrimSpace(req.App),
		Message: req.Message,
		URL:     strings.TrimSpace(req.URL),
		// The payload may claim any tenant it likes; the authenticated key
		// is the only one that is ever stored.
		TenantKey: tenantKey,
		Timestamp: s.resolveTimestamp(req.Timestamp),
		Submitter: submitter,
		CreatedAt: s.clock.Now(),
	}
	if req.Context != nil {
		record.Context = datatypes.JSONMap(req.Context)
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		s.release(ctx, tenantKey, decision.Period, "persist_failed")
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordIngestAccepted(ctx, record.Level)
	}
	return record, nil
}

// release undoes one reservation. A failed release leaves the ledger
// over-counted, which the protocol cannot self-heal; it is logged loudly so a
// reconciliation pass can pick it up.
func (s *Service) release(ctx context.Context, tenantKey string, period quotadomain.Period, reason string) {
	if err := s.ledger.Release(ctx, tenantKey, period, 1); err != nil {
		s.log.Error("compensating release failed, ledger over-counted",
			zap.String("tenant_key", tenantKey),
			zap.String("period", period.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordReleaseFailure(ctx, period.String())
		}
		return
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordQuotaRelease(ctx, reason)
	}
}

func (s *Service) resolveTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.clock.Now()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return s.clock.Now()
}

func validateIngestRequest(req logdomain.IngestRequest) error {
	if strings.TrimSpace(req.Level) == "" {
		return logdomain.ErrLevelRequired
	}
	if strings.TrimSpace(req.Message) == "" {
		return logdomain.ErrMessageRequired
	}
	return nil
}

func (s *Service) List(ctx context.Context, req logdomain.ListRequest) (logdomain.ListResponse, error) {
	tenantKey, ok := tenantctx.TenantKey(ctx)
	if !ok {
		return logdomain.ListResponse{}, logdomain.ErrInvalidTenantKey
	}

	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > recentLogsCap {
		pageSize = recentLogsCap
	}

	filter := &logdomain.LogRecord{TenantKey: tenantKey}
	items, err := s.logstore.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
		option.WithSortBy(option.QuerySortBy{Desc: true, Allow: map[string]bool{"timestamp": true}}),
	)
	if err != nil {
		return logdomain.ListResponse{}, err
	}

	return buildListResponse(items, pageSize), nil
}

func (s *Service) Levels(ctx context.Context) ([]string, error) {
	tenantKey, ok := tenantctx.TenantKey(ctx)
	if !ok {
		return nil, logdomain.ErrInvalidTenantKey
	}
	return s.repo.DistinctLevels(ctx, s.db, tenantKey)
}

func (s *Service) ServiceStatus(ctx context.Context) (logdomain.StatusReport, error) {
	tenantKey, ok := tenantctx.TenantKey(ctx)
	if !ok {
		return logdomain.StatusReport{}, logdomain.ErrInvalidTenantKey
	}

	alerts, err := s.repo.LatestPerService(ctx, s.db, tenantKey)
	if err != nil {
		return logdomain.StatusReport{}, err
	}

	report := logdomain.StatusReport{Alerts: alerts}
	report.Summary.Total = len(alerts)
	for _, alert := range alerts {
		switch strings.ToLower(alert.Level) {
		case "critical":
			report.Summary.Critical++
		case "warning", "warn":
			report.Summary.Warning++
		case "info":
			report.Summary.Info++
		}
	}
	return report, nil
}

func buildListResponse(items []*logdomain.LogRecord, pageSize int) logdomain.ListResponse {
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *logdomain.LogRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			Timestamp: record.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	records := make([]logdomain.LogRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := logdomain.ListResponse{Logs: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp
}
