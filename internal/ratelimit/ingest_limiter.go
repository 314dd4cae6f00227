package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lognest/internal/config"
)

const (
	keyIngestTenant   = "logs:ingest:tenant:%s"
	keyIngestEndpoint = "logs:ingest:endpoint"
	keyLock           = "logs:lock:%s"
)

// IngestLimiter throttles the write path ahead of the quota ledger. It is a
// burst shield only: the monthly budget is enforced by the ledger, not here.
type IngestLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	tenantRate    float64
	tenantBurst   int
	endpointRate  float64
	endpointBurst int
	lockTTL       time.Duration
}

func NewIngestLimiter(cfg config.Config) (*IngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.IngestTenantRate <= 0 || limitCfg.IngestTenantBurst <= 0 {
		return nil, errors.New("ingest tenant rate limit must be positive")
	}
	if limitCfg.IngestEndpointRate <= 0 || limitCfg.IngestEndpointBurst <= 0 {
		return nil, errors.New("ingest endpoint rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &IngestLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		tenantRate:    limitCfg.IngestTenantRate,
		tenantBurst:   limitCfg.IngestTenantBurst,
		endpointRate:  limitCfg.IngestEndpointRate,
		endpointBurst: limitCfg.IngestEndpointBurst,
		lockTTL:       time.Duration(limitCfg.IngestLockTTLSeconds) * time.Second,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *IngestLimiter) AllowTenant(ctx context.Context, tenantKey string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIngestTenant, strings.TrimSpace(tenantKey)), l.tenantRate, l.tenantBurst)
}

func (l *IngestLimiter) AllowEndpoint(ctx context.Context) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, keyIngestEndpoint, l.endpointRate, l.endpointBurst)
}

// TryLock takes a best-effort cross-replica lock. Callers must tolerate not
// getting it: when the limiter is disabled everyone is told they hold it.
func (l *IngestLimiter) TryLock(ctx context.Context, name string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyLock, strings.TrimSpace(name))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *IngestLimiter) ReleaseLock(ctx context.Context, name, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyLock, strings.TrimSpace(name))
	return l.locker.Release(ctx, key, token)
}
