package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/lognest/internal/clock"
	logdomain "github.com/smallbiznis/lognest/internal/logrecord/domain"
	logrepository "github.com/smallbiznis/lognest/internal/logrecord/repository"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Stubs --

type gateStub struct {
	mu       sync.Mutex
	calls    int
	decision quotadomain.Decision
	err      error
}

func (g *gateStub) Admit(ctx context.Context, tenantKey string, amount int64) (quotadomain.Decision, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return quotadomain.Decision{}, g.err
	}
	return g.decision, nil
}

func (g *gateStub) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type ledgerStub struct {
	mu         sync.Mutex
	releases   []int64
	releaseErr error
}

func (l *ledgerStub) Reserve(ctx context.Context, tenantKey string, period quotadomain.Period, limit, amount int64) (bool, error) {
	return true, nil
}

func (l *ledgerStub) Release(ctx context.Context, tenantKey string, period quotadomain.Period, amount int64) error {
	l.mu.Lock()
	l.releases = append(l.releases, amount)
	l.mu.Unlock()
	return l.releaseErr
}

func (l *ledgerStub) Usage(ctx context.Context, tenantKey string, period quotadomain.Period) (int64, *time.Time, error) {
	return 0, nil, nil
}

func (l *ledgerStub) Releases() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int64, len(l.releases))
	copy(out, l.releases)
	return out
}

type failingRepo struct {
	err error
}

func (r *failingRepo) Insert(ctx context.Context, db *gorm.DB, record *logdomain.LogRecord) error {
	return r.err
}

func (r *failingRepo) DistinctLevels(ctx context.Context, db *gorm.DB, tenantKey string) ([]string, error) {
	return nil, r.err
}

func (r *failingRepo) LatestPerService(ctx context.Context, db *gorm.DB, tenantKey string) ([]logdomain.ServiceAlert, error) {
	return nil, r.err
}

// -- Setup --

func admitted(period quotadomain.Period, limit int64) quotadomain.Decision {
	return quotadomain.Decision{Admitted: true, Period: period, Limit: limit}
}

func denied(period quotadomain.Period, used, limit int64) quotadomain.Decision {
	return quotadomain.Decision{
		Admitted: false,
		Period:   period,
		Limit:    limit,
		Denial: &quotadomain.Denial{
			Period:    period,
			Used:      used,
			Limit:     limit,
			Remaining: 0,
		},
	}
}

func setupPipeline(t *testing.T, gate quotadomain.Gate, ledger quotadomain.Ledger, repo logdomain.Repository) (logdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := db.AutoMigrate(&logdomain.LogRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Gate:   gate,
		Ledger: ledger,
		Repo:   repo,
	})

	return svc, db, clk
}

func tenantContext(tenantKey string) context.Context {
	return tenantctx.WithTenantKey(context.Background(), tenantKey)
}

func countLogRecords(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM log_records`).Scan(&count).Error; err != nil {
		t.Fatalf("count log records: %v", err)
	}
	return count
}

// -- Tests --

func TestIngestMissingTenantKeyBeforeReservation(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, _, _ := setupPipeline(t, gate, ledger, logrepository.Provide())

	_, err := svc.Ingest(context.Background(), logdomain.IngestRequest{Level: "info", Message: "hello"})
	assert.ErrorIs(t, err, logdomain.ErrInvalidTenantKey)
	assert.Equal(t, 0, gate.Calls(), "no admission attempt without a tenant")
	assert.Empty(t, ledger.Releases(), "nothing reserved, nothing released")
}

func TestIngestQuotaDenied(t *testing.T) {
	gate := &gateStub{decision: denied("202506", 1000, 1000)}
	ledger := &ledgerStub{}
	svc, db, _ := setupPipeline(t, gate, ledger, logrepository.Provide())

	_, err := svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{Level: "info", Message: "hello"})

	var deniedErr *logdomain.QuotaDeniedError
	require.ErrorAs(t, err, &deniedErr)
	assert.Equal(t, int64(1000), deniedErr.Denial.Used)
	assert.Equal(t, int64(1000), deniedErr.Denial.Limit)
	assert.Equal(t, int64(0), countLogRecords(t, db))
	assert.Empty(t, ledger.Releases(), "a denied reserve holds nothing to release")
}

func TestIngestInvalidPayloadReleasesReservation(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, db, _ := setupPipeline(t, gate, ledger, logrepository.Provide())

	_, err := svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{Level: "info", Message: "   "})
	assert.ErrorIs(t, err, logdomain.ErrMessageRequired)

	_, err = svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{Level: "", Message: "hello"})
	assert.ErrorIs(t, err, logdomain.ErrLevelRequired)

	assert.Equal(t, []int64{1, 1}, ledger.Releases(), "each rejected payload releases its reservation")
	assert.Equal(t, int64(0), countLogRecords(t, db))
}

func TestIngestPersistFailureReleasesReservation(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	repoErr := errors.New("disk full")
	svc, _, _ := setupPipeline(t, gate, ledger, &failingRepo{err: repoErr})

	_, err := svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{Level: "critical", Message: "boom"})
	assert.ErrorIs(t, err, repoErr)
	assert.Equal(t, []int64{1}, ledger.Releases(), "failed persist must not permanently consume quota")
}

func TestIngestReleaseFailureReportedButNotRetried(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{releaseErr: errors.New("connection reset")}
	repoErr := errors.New("disk full")
	svc, _, _ := setupPipeline(t, gate, ledger, &failingRepo{err: repoErr})

	_, err := svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{Level: "critical", Message: "boom"})
	assert.ErrorIs(t, err, repoErr, "the persist error wins over the release error")
	assert.Equal(t, []int64{1}, ledger.Releases(), "release attempted exactly once")
}

func TestIngestAuthenticatedTenantKeyWins(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, db, _ := setupPipeline(t, gate, ledger, logrepository.Provide())

	record, err := svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{
		Level:     "info",
		Message:   "hello",
		TenantKey: "mallory",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", record.TenantKey)

	var stored logdomain.LogRecord
	require.NoError(t, db.Raw(`SELECT * FROM log_records WHERE id = ?`, record.ID).Scan(&stored).Error)
	assert.Equal(t, "acme", stored.TenantKey, "payload tenant claim is never persisted")
}

func TestIngestTimestampHandling(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, _, clk := setupPipeline(t, gate, ledger, logrepository.Provide())
	ctx := tenantContext("acme")

	record, err := svc.Ingest(ctx, logdomain.IngestRequest{
		Level:     "info",
		Message:   "explicit ts",
		Timestamp: "2025-06-10T08:30:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC), record.Timestamp)

	record, err = svc.Ingest(ctx, logdomain.IngestRequest{
		Level:     "info",
		Message:   "garbage ts",
		Timestamp: "yesterday-ish",
	})
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), record.Timestamp, "unparseable timestamps fall back to ingestion time")

	record, err = svc.Ingest(ctx, logdomain.IngestRequest{Level: "info", Message: "no ts"})
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), record.Timestamp)
}

func TestIngestSubmitterFromContextBeatsPayload(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, _, _ := setupPipeline(t, gate, ledger, logrepository.Provide())

	ctx := tenantctx.WithSubmitter(tenantContext("acme"), "ci-bot")
	record, err := svc.Ingest(ctx, logdomain.IngestRequest{
		Level:   "info",
		Message: "hello",
		UserID:  "payload-user",
	})
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", record.Submitter)

	record, err = svc.Ingest(tenantContext("acme"), logdomain.IngestRequest{
		Level:   "info",
		Message: "hello",
		UserID:  "payload-user",
	})
	require.NoError(t, err)
	assert.Equal(t, "payload-user", record.Submitter, "payload submitter used only when auth carries none")
}

func TestLevelsAndServiceStatus(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, _, clk := setupPipeline(t, gate, ledger, logrepository.Provide())
	ctx := tenantContext("acme")

	entries := []logdomain.IngestRequest{
		{Level: "critical", Service: "api", App: "web", Message: "db down"},
		{Level: "info", Service: "api", App: "web", Message: "recovered"},
		{Level: "warning", Service: "worker", App: "web", Message: "slow queue"},
		{Level: "info", Service: "cache", App: "web", Message: "warm"},
	}
	for _, req := range entries {
		clk.Advance(time.Minute)
		_, err := svc.Ingest(ctx, req)
		require.NoError(t, err)
	}

	levels, err := svc.Levels(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"critical", "info", "warning"}, levels)

	report, err := svc.ServiceStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.Total, "one alert per (app, service) pair")
	assert.Equal(t, 0, report.Summary.Critical, "api's latest entry is info, not critical")
	assert.Equal(t, 2, report.Summary.Info)
	assert.Equal(t, 1, report.Summary.Warning)

	// Other tenants see nothing.
	otherLevels, err := svc.Levels(tenantContext("globex"))
	require.NoError(t, err)
	assert.Empty(t, otherLevels)
}

func TestListNewestFirstWithCursor(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, _, clk := setupPipeline(t, gate, ledger, logrepository.Provide())
	ctx := tenantContext("acme")

	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		_, err := svc.Ingest(ctx, logdomain.IngestRequest{
			Level:   "info",
			Message: fmt.Sprintf("entry %d", i),
		})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, logdomain.ListRequest{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Logs, 3)
	assert.Equal(t, "entry 4", first.Logs[0].Message, "newest first")
	assert.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	second, err := svc.List(ctx, logdomain.ListRequest{PageSize: 3, PageToken: first.PageInfo.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Logs, 2)
	assert.Equal(t, "entry 1", second.Logs[0].Message)
	assert.False(t, second.PageInfo.HasMore)
}

func TestListCursorReachesAllEqualTimestampRecords(t *testing.T) {
	gate := &gateStub{decision: admitted("202506", 1000)}
	ledger := &ledgerStub{}
	svc, _, _ := setupPipeline(t, gate, ledger, logrepository.Provide())
	ctx := tenantContext("acme")

	// Clients with second-precision clocks routinely stamp a burst of records
	// with the same timestamp. The cursor must still visit every one.
	for i := 0; i < 3; i++ {
		_, err := svc.Ingest(ctx, logdomain.IngestRequest{
			Level:     "info",
			Message:   fmt.Sprintf("entry %d", i),
			Timestamp: "2025-06-10 08:30:00",
		})
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	token := ""
	for page := 0; page < 10; page++ {
		resp, err := svc.List(ctx, logdomain.ListRequest{PageSize: 1, PageToken: token})
		require.NoError(t, err)
		for _, record := range resp.Logs {
			assert.False(t, seen[record.Message], "record %q returned twice", record.Message)
			seen[record.Message] = true
		}
		if !resp.PageInfo.HasMore {
			break
		}
		token = resp.PageInfo.NextPageToken
	}

	assert.Len(t, seen, 3, "every record with a shared timestamp stays reachable")
}
