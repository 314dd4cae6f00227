package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/lognest/internal/config"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (quotadomain.Ledger, *gorm.DB) {
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
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	if err := db.AutoMigrate(&quotadomain.UsageRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger := New(LedgerParam{
		DB:     db,
		Log:    zap.NewNop(),
		Policy: config.NewStaticQuotaPolicyHolder(config.DefaultQuotaPolicy()),
	})

	return ledger, db
}

func countUsageRecords(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM usage_records`).Scan(&count).Error; err != nil {
		t.Fatalf("count usage records: %v", err)
	}
	return count
}

func usageOf(t *testing.T, ledger quotadomain.Ledger, tenantKey string, period quotadomain.Period) int64 {
	t.Helper()
	used, _, err := ledger.Usage(context.Background(), tenantKey, period)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	return used
}

func TestReserveSequentialUpToLimit(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()
	period := quotadomain.Period("202506")

	for i := 0; i < 5; i++ {
		ok, err := ledger.Reserve(ctx, "acme", period, 5, 1)
		require.NoError(t, err)
		assert.True(t, ok, "reserve %d within limit", i+1)
	}

	ok, err := ledger.Reserve(ctx, "acme", period, 5, 1)
	require.NoError(t, err)
	assert.False(t, ok, "reserve past limit must be denied")
	assert.Equal(t, int64(5), usageOf(t, ledger, "acme", period))
}

func TestReserveConcurrentNeverExceedsLimit(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()
	period := quotadomain.Period("202506")

	const workers = 25
	const limit = 10

	var wg sync.WaitGroup
	results := make(chan bool, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Reserve(ctx, "acme", period, limit, 1)
			results <- ok
			errs <- err
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent reserve: %v", err)
		}
	}

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}

	assert.Equal(t, limit, admitted, "exactly limit reservations admitted")
	assert.Equal(t, int64(limit), usageOf(t, ledger, "acme", period))
	assert.Equal(t, int64(1), countUsageRecords(t, db), "single record per (tenant, period)")
}

func TestReleaseRestoresCapacity(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()
	period := quotadomain.Period("202506")

	ok, err := ledger.Reserve(ctx, "acme", period, 1, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Reserve(ctx, "acme", period, 1, 1)
	require.NoError(t, err)
	require.False(t, ok, "limit reached")

	require.NoError(t, ledger.Release(ctx, "acme", period, 1))
	assert.Equal(t, int64(0), usageOf(t, ledger, "acme", period))

	ok, err = ledger.Reserve(ctx, "acme", period, 1, 1)
	require.NoError(t, err)
	assert.True(t, ok, "released capacity is reusable")
}

func TestReserveFirstUseLargerThanLimit(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()
	period := quotadomain.Period("202506")

	ok, err := ledger.Reserve(ctx, "acme", period, 2, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), countUsageRecords(t, db), "denied first use must not create a record")
}

func TestReserveIsolatesTenantsAndPeriods(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	ok, err := ledger.Reserve(ctx, "acme", quotadomain.Period("202506"), 1, 1)
	require.NoError(t, err)
	require.True(t, ok)

	// Same tenant, next period: fresh counter.
	ok, err = ledger.Reserve(ctx, "acme", quotadomain.Period("202507"), 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Different tenant, same period: unaffected.
	ok, err = ledger.Reserve(ctx, "globex", quotadomain.Period("202506"), 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveValidatesInput(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()
	period := quotadomain.Period("202506")

	_, err := ledger.Reserve(ctx, "", period, 10, 1)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidTenantKey)

	_, err = ledger.Reserve(ctx, "acme", period, 10, 0)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidAmount)

	_, err = ledger.Reserve(ctx, "acme", period, 10, -1)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidAmount)
}

func TestUsageMissingRecordReadsZero(t *testing.T) {
	ledger, _ := setupLedger(t)

	used, updatedAt, err := ledger.Usage(context.Background(), "acme", quotadomain.Period("202506"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
	assert.Nil(t, updatedAt)
}
