package migration

import (
	"context"

	"github.com/smallbiznis/lognest/internal/config"
	"github.com/smallbiznis/lognest/internal/ratelimit"
	"github.com/smallbiznis/lognest/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const seedLockName = "seed:plans"

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, limiter *ratelimit.IngestLimiter, log *zap.Logger) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		// Cross-replica guard: with several replicas starting at once only
		// one needs to upsert the catalog. Upsert is idempotent, so losing
		// the lock just means skipping redundant work.
		ctx := context.Background()
		token, ok, err := limiter.TryLock(ctx, seedLockName)
		if err != nil {
			log.Warn("seed lock unavailable, seeding anyway", zap.Error(err))
			ok = true
		}
		if !ok {
			return nil
		}
		defer func() {
			if token != "" {
				_ = limiter.ReleaseLock(ctx, seedLockName, token)
			}
		}()

		return seed.EnsureDefaultPlans(conn)
	}),
)
