package repository

import (
	"context"
	"strings"

	plandomain "github.com/smallbiznis/lognest/internal/plan/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT code, name, monthly_log_limit, created_at, updated_at
		 FROM plans WHERE code = ?`,
		strings.ToLower(strings.TrimSpace(code)),
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.Code == "" {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]plandomain.Plan, error) {
	var plans []plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT code, name, monthly_log_limit, created_at, updated_at
		 FROM plans ORDER BY monthly_log_limit ASC`,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "monthly_log_limit", "updated_at"}),
	}).Create(plan).Error
}
