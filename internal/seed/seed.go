package seed

import (
	"context"
	"errors"
	"time"

	plandomain "github.com/smallbiznis/lognest/internal/plan/domain"
	planrepository "github.com/smallbiznis/lognest/internal/plan/repository"
	"gorm.io/gorm"
)

// Default plan catalog. The free tier matches the ingest fallback limit so a
// tenant on a misconfigured plan and a tenant on free degrade to the same
// allowance.
var defaultPlans = []struct {
	Code  string
	Name  string
	Limit int64
}{
	{"free", "Free", 1000},
	{"starter", "Starter", 100000},
	{"pro", "Pro", 1000000},
}

// EnsureDefaultPlans upserts the built-in plan catalog for startup bootstrap.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	repo := planrepository.Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range defaultPlans {
			plan := &plandomain.Plan{
				Code:            p.Code,
				Name:            p.Name,
				MonthlyLogLimit: p.Limit,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := repo.Upsert(ctx, tx, plan); err != nil {
				return err
			}
		}
		return nil
	})
}
