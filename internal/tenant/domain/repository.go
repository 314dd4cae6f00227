package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, tenantKey string) (*Tenant, error)
	List(ctx context.Context, db *gorm.DB) ([]Tenant, error)
	Upsert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
}
