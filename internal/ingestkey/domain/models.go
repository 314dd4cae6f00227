package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// IngestKey stores hashed bearer credentials scoped to a tenant.
type IngestKey struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	TenantKey  string         `gorm:"column:tenant_key;type:text;not null;uniqueIndex:ux_ingest_keys_tenant_key_id,priority:1"`
	KeyID      string         `gorm:"column:key_id;type:text;not null;uniqueIndex:ux_ingest_keys_tenant_key_id,priority:2"`
	Name       string         `gorm:"type:text;not null"`
	Scopes     pq.StringArray `gorm:"type:text[];not null"`
	KeyHash    string         `gorm:"column:key_hash;type:text;not null"`
	Submitter  string         `gorm:"column:submitter;type:text"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at"`
}

// TableName sets the database table name.
func (IngestKey) TableName() string { return "ingest_keys" }
