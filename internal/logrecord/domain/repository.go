package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *LogRecord) error
	DistinctLevels(ctx context.Context, db *gorm.DB, tenantKey string) ([]string, error)
	LatestPerService(ctx context.Context, db *gorm.DB, tenantKey string) ([]ServiceAlert, error)
}
