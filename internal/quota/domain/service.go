package domain

import (
	"context"
	"errors"
	"time"
)

// Ledger owns the per-(tenant, period) counter. Both operations are atomic at
// the storage layer; correctness under concurrent workers rests entirely on
// that, never on in-process locking.
type Ledger interface {
	// Reserve increments the counter by amount only if the result stays
	// within limit, creating the record on first use. A false result with a
	// nil error means the quota is exhausted; that is an expected outcome,
	// not a fault.
	Reserve(ctx context.Context, tenantKey string, period Period, limit, amount int64) (bool, error)

	// Release is the unconditional compensating decrement. It does not clamp
	// at zero; callers release only amounts they previously reserved, at
	// most once each.
	Release(ctx context.Context, tenantKey string, period Period, amount int64) error

	// Usage reads the current counter. A missing record reads as zero.
	Usage(ctx context.Context, tenantKey string, period Period) (int64, *time.Time, error)
}

// LimitResolver resolves a tenant's effective monthly limit.
type LimitResolver interface {
	ResolveLimit(ctx context.Context, tenantKey string) ResolvedLimit
}

// Gate produces the admit/deny decision for one unit of ingestion.
type Gate interface {
	Admit(ctx context.Context, tenantKey string, amount int64) (Decision, error)
}

// Reporter projects current-period usage for display. Never mutates the ledger.
type Reporter interface {
	Summarize(ctx context.Context, tenantKey string) (Summary, error)
}

var (
	ErrInvalidTenantKey = errors.New("invalid_tenant_key")
	ErrInvalidAmount    = errors.New("invalid_reserve_amount")

	// ErrReserveContention is returned when the bounded create-or-increment
	// loop exhausts its attempts without winning either path.
	ErrReserveContention = errors.New("usage_reserve_contention")
)
