package repository

import (
	"context"

	ingestkeydomain "github.com/smallbiznis/lognest/internal/ingestkey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ingestkeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *ingestkeydomain.IngestKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ingest_keys (id, tenant_key, key_id, name, scopes, key_hash, submitter, is_active, created_at, updated_at, last_used_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.TenantKey,
		key.KeyID,
		key.Name,
		key.Scopes,
		key.KeyHash,
		key.Submitter,
		key.IsActive,
		key.CreatedAt,
		key.UpdatedAt,
		key.LastUsedAt,
		key.ExpiresAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, key *ingestkeydomain.IngestKey) error {
	return db.WithContext(ctx).Exec(
		`UPDATE ingest_keys
		 SET name = ?, scopes = ?, key_hash = ?, submitter = ?, is_active = ?, updated_at = ?, last_used_at = ?, expires_at = ?
		 WHERE tenant_key = ? AND key_id = ?`,
		key.Name,
		key.Scopes,
		key.KeyHash,
		key.Submitter,
		key.IsActive,
		key.UpdatedAt,
		key.LastUsedAt,
		key.ExpiresAt,
		key.TenantKey,
		key.KeyID,
	).Error
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, tenantKey, keyID string) (*ingestkeydomain.IngestKey, error) {
	var key ingestkeydomain.IngestKey
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_key, key_id, name, scopes, key_hash, submitter, is_active, created_at, updated_at, last_used_at, expires_at
		 FROM ingest_keys WHERE tenant_key = ? AND key_id = ?`,
		tenantKey,
		keyID,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantKey string) ([]ingestkeydomain.IngestKey, error) {
	var keys []ingestkeydomain.IngestKey
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_key, key_id, name, scopes, key_hash, submitter, is_active, created_at, updated_at, last_used_at, expires_at
		 FROM ingest_keys WHERE tenant_key = ? ORDER BY created_at DESC`,
		tenantKey,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
