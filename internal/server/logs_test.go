package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	logdomain "github.com/smallbiznis/lognest/internal/logrecord/domain"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
)

type fakeLogService struct {
	record    *logdomain.LogRecord
	ingestErr error
	listResp  logdomain.ListResponse
}

func (f *fakeLogService) Ingest(ctx context.Context, req logdomain.IngestRequest) (*logdomain.LogRecord, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return f.record, nil
}

func (f *fakeLogService) List(ctx context.Context, req logdomain.ListRequest) (logdomain.ListResponse, error) {
	return f.listResp, nil
}

func (f *fakeLogService) Levels(ctx context.Context) ([]string, error) {
	return []string{"critical", "info"}, nil
}

func (f *fakeLogService) ServiceStatus(ctx context.Context) (logdomain.StatusReport, error) {
	return logdomain.StatusReport{}, nil
}

type fakeReporter struct {
	summary quotadomain.Summary
	err     error
}

func (f *fakeReporter) Summarize(ctx context.Context, tenantKey string) (quotadomain.Summary, error) {
	if f.err != nil {
		return quotadomain.Summary{}, f.err
	}
	return f.summary, nil
}

func withTenant(tenantKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tenantctx.WithTenantKey(c.Request.Context(), tenantKey)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(srv *Server, tenantKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	api := router.Group("/api")
	api.POST("/logs", withTenant(tenantKey), srv.IngestLog)
	api.GET("/quota/summary", withTenant(tenantKey), srv.QuotaSummary)
	return router
}

func TestIngestLogAccepted(t *testing.T) {
	logSvc := &fakeLogService{record: &logdomain.LogRecord{TenantKey: "acme", Level: "info", Message: "hello"}}
	srv := &Server{logSvc: logSvc}
	router := newTestRouter(srv, "acme")

	req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString(`{"level":"info","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
}

func TestIngestLogQuotaDeniedPayload(t *testing.T) {
	logSvc := &fakeLogService{ingestErr: &logdomain.QuotaDeniedError{Denial: quotadomain.Denial{
		Period:    quotadomain.Period("202506"),
		Used:      1000,
		Limit:     1000,
		Remaining: 0,
	}}}
	srv := &Server{logSvc: logSvc}
	router := newTestRouter(srv, "acme")

	req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString(`{"level":"info","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", resp.Code)
	}

	var body struct {
		Error     string `json:"error"`
		Period    string `json:"period"`
		Used      int64  `json:"used"`
		Limit     int64  `json:"limit"`
		Remaining int64  `json:"remaining"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "limit_exceeded" {
		t.Fatalf("expected limit_exceeded, got %q", body.Error)
	}
	if body.Period != "202506" || body.Used != 1000 || body.Limit != 1000 || body.Remaining != 0 {
		t.Fatalf("unexpected denial counters: %+v", body)
	}
}

func TestIngestLogValidationError(t *testing.T) {
	logSvc := &fakeLogService{ingestErr: logdomain.ErrMessageRequired}
	srv := &Server{logSvc: logSvc}
	router := newTestRouter(srv, "acme")

	req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString(`{"level":"info"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var body struct {
		Error struct {
			Type   string `json:"type"`
			Errors []struct {
				Field string `json:"field"`
				Code  string `json:"code"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Type != "validation_error" {
		t.Fatalf("expected validation_error, got %q", body.Error.Type)
	}
	if len(body.Error.Errors) != 1 || body.Error.Errors[0].Code != "message_required" {
		t.Fatalf("unexpected validation details: %+v", body.Error.Errors)
	}
}

func TestIngestLogMissingTenant(t *testing.T) {
	logSvc := &fakeLogService{ingestErr: logdomain.ErrInvalidTenantKey}
	srv := &Server{logSvc: logSvc}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/api/logs", srv.IngestLog)

	req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString(`{"level":"info","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestQuotaSummaryHandler(t *testing.T) {
	reporter := &fakeReporter{summary: quotadomain.Summary{
		TenantKey:    "acme",
		Plan:         "free",
		Period:       quotadomain.Period("202506"),
		Limit:        1000,
		Used:         250,
		Remaining:    750,
		UsagePercent: 25,
	}}
	srv := &Server{quotaSvc: reporter}
	router := newTestRouter(srv, "acme")

	req := httptest.NewRequest(http.MethodGet, "/api/quota/summary", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["usage_pct"] != float64(25) {
		t.Fatalf("expected usage_pct 25, got %v", body["usage_pct"])
	}
	if body["plan"] != "free" {
		t.Fatalf("expected plan free, got %v", body["plan"])
	}
}
