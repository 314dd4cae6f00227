package repository

import (
	"context"
	"strings"

	tenantdomain "github.com/smallbiznis/lognest/internal/tenant/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() tenantdomain.Repository {
	return &repo{}
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, tenantKey string) (*tenantdomain.Tenant, error) {
	var tenant tenantdomain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT tenant_key, name, plan_code, override_monthly_log_limit, created_at, updated_at
		 FROM tenants WHERE tenant_key = ?`,
		strings.TrimSpace(tenantKey),
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.TenantKey == "" {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tenantdomain.Tenant, error) {
	var tenants []tenantdomain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT tenant_key, name, plan_code, override_monthly_log_limit, created_at, updated_at
		 FROM tenants ORDER BY created_at ASC`,
	).Scan(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, tenant *tenantdomain.Tenant) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "plan_code", "override_monthly_log_limit", "updated_at"}),
	}).Create(tenant).Error
}
