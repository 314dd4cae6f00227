package domain

import (
	"context"
	"errors"
	"fmt"

	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/smallbiznis/lognest/pkg/db/pagination"
)

// IngestRequest is the raw inbound payload. Any tenant identifier embedded in
// the payload is ignored; the authenticated tenant key always wins.
type IngestRequest struct {
	Level     string         `json:"level"`
	Service   string         `json:"service"`
	App       string         `json:"app"`
	Message   string         `json:"message"`
	URL       string         `json:"url"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
	TenantKey string         `json:"tenant_key"`
	UserID    string         `json:"userId"`
}

type ListRequest struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListResponse struct {
	Logs     []LogRecord         `json:"logs"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Ingest runs the quota-gated pipeline: admit, validate, stamp, persist,
	// with a compensating release on every non-accepted path after admission.
	Ingest(ctx context.Context, req IngestRequest) (*LogRecord, error)

	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Levels(ctx context.Context) ([]string, error)
	ServiceStatus(ctx context.Context) (StatusReport, error)
}

var (
	ErrInvalidTenantKey = errors.New("invalid_tenant_key")
	ErrLevelRequired    = errors.New("level_required")
	ErrMessageRequired  = errors.New("message_required")
)

// QuotaDeniedError carries the denial counters so the transport layer can
// surface a useful limit_exceeded payload.
type QuotaDeniedError struct {
	Denial quotadomain.Denial
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("limit_exceeded: %d of %d used for %s", e.Denial.Used, e.Denial.Limit, e.Denial.Period)
}
