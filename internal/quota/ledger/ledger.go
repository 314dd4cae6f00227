package ledger

import (
	"context"
	"time"

	"github.com/smallbiznis/lognest/internal/config"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	"github.com/smallbiznis/lognest/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LedgerParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Policy *config.QuotaPolicyHolder
}

// Ledger is the gorm-backed usage counter. Every mutation is a single
// conditional statement so concurrent workers on any number of machines
// serialize on the database row, not on process-local state.
type Ledger struct {
	db     *gorm.DB
	log    *zap.Logger
	policy *config.QuotaPolicyHolder
}

func New(p LedgerParam) quotadomain.Ledger {
	return &Ledger{
		db:     p.DB,
		log:    p.Log.Named("quota.ledger"),
		policy: p.Policy,
	}
}

// Reserve attempts a create-or-increment in two phases: a conditional UPDATE
// against an existing record first, then an INSERT for first use of the
// period. When concurrent first-use reservations race, exactly one INSERT
// wins; losers observe a duplicate key and retry the conditional UPDATE
// against the now-existing record. The loop is bounded so storage-level
// contention surfaces as an error instead of spinning.
func (l *Ledger) Reserve(ctx context.Context, tenantKey string, period quotadomain.Period, limit, amount int64) (bool, error) {
	if tenantKey == "" {
		return false, quotadomain.ErrInvalidTenantKey
	}
	if amount <= 0 {
		return false, quotadomain.ErrInvalidAmount
	}

	policy := l.policy.Current()
	backoff := time.Duration(policy.ReserveRetryBackoffMS) * time.Millisecond

	for attempt := 0; attempt < policy.ReserveMaxAttempts; attempt++ {
		if attempt > 0 && backoff > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result := l.db.WithContext(ctx).Exec(
			`UPDATE usage_records
			 SET logs_ingested = logs_ingested + ?, updated_at = ?
			 WHERE tenant_key = ? AND period = ? AND logs_ingested <= ? - ?`,
			amount,
			time.Now().UTC(),
			tenantKey,
			period,
			limit,
			amount,
		)
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected > 0 {
			return true, nil
		}

		// No row moved: the record either does not exist yet or the
		// increment no longer fits. Distinguish the two.
		var exists int64
		if err := l.db.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM usage_records WHERE tenant_key = ? AND period = ?`,
			tenantKey,
			period,
		).Scan(&exists).Error; err != nil {
			return false, err
		}
		if exists > 0 {
			return false, nil
		}

		if amount > limit {
			return false, nil
		}

		insertErr := l.db.WithContext(ctx).Exec(
			`INSERT INTO usage_records (tenant_key, period, logs_ingested, updated_at)
			 VALUES (?, ?, ?, ?)`,
			tenantKey,
			period,
			amount,
			time.Now().UTC(),
		).Error
		if insertErr == nil {
			return true, nil
		}
		if !db.IsDuplicateKeyErr(insertErr) {
			return false, insertErr
		}
		// A concurrent first-use reservation created the record between our
		// UPDATE and INSERT. Loop back to the conditional increment.
	}

	l.log.Warn("reserve retries exhausted",
		zap.String("tenant_key", tenantKey),
		zap.String("period", period.String()),
	)
	return false, quotadomain.ErrReserveContention
}

// Release applies the compensating decrement. It is deliberately
// unconditional and unclamped: a release always pairs with exactly one prior
// successful reserve, so clamping would only mask caller bugs.
func (l *Ledger) Release(ctx context.Context, tenantKey string, period quotadomain.Period, amount int64) error {
	if tenantKey == "" {
		return quotadomain.ErrInvalidTenantKey
	}
	if amount <= 0 {
		return quotadomain.ErrInvalidAmount
	}

	return l.db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET logs_ingested = logs_ingested - ?, updated_at = ?
		 WHERE tenant_key = ? AND period = ?`,
		amount,
		time.Now().UTC(),
		tenantKey,
		period,
	).Error
}

// Usage reads the current counter without mutating it.
func (l *Ledger) Usage(ctx context.Context, tenantKey string, period quotadomain.Period) (int64, *time.Time, error) {
	var record quotadomain.UsageRecord
	err := l.db.WithContext(ctx).Raw(
		`SELECT tenant_key, period, logs_ingested, updated_at
		 FROM usage_records WHERE tenant_key = ? AND period = ?`,
		tenantKey,
		period,
	).Scan(&record).Error
	if err != nil {
		return 0, nil, err
	}
	if record.TenantKey == "" {
		return 0, nil, nil
	}
	updatedAt := record.UpdatedAt
	return record.LogsIngested, &updatedAt, nil
}
