package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *IngestKey) error
	Update(ctx context.Context, db *gorm.DB, key *IngestKey) error
	FindByKeyID(ctx context.Context, db *gorm.DB, tenantKey, keyID string) (*IngestKey, error)
	List(ctx context.Context, db *gorm.DB, tenantKey string) ([]IngestKey, error)
}
