package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// LogRecord is one ingested entry. Immutable once persisted.
type LogRecord struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	TenantKey string            `json:"tenant_key" gorm:"column:tenant_key;type:text;not null;index:ix_log_records_tenant_ts,priority:1"`
	Level     string            `json:"level" gorm:"type:text;not null"`
	Service   string            `json:"service" gorm:"type:text"`
	App       string            `json:"app" gorm:"type:text"`
	Message   string            `json:"message" gorm:"type:text;not null"`
	URL       string            `json:"url,omitempty" gorm:"type:text"`
	Context   datatypes.JSONMap `json:"context,omitempty" gorm:"type:json"`
	Timestamp time.Time         `json:"timestamp" gorm:"not null;index:ix_log_records_tenant_ts,priority:2,sort:desc"`
	Submitter string            `json:"submitter,omitempty" gorm:"type:text"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LogRecord) TableName() string { return "log_records" }

// ServiceAlert is the latest entry observed for one (app, service) pair.
type ServiceAlert struct {
	App       string    `json:"app"`
	Service   string    `json:"service"`
	URL       string    `json:"url,omitempty"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusSummary aggregates alert severities.
type StatusSummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// StatusReport is the service-status rollup for one tenant.
type StatusReport struct {
	Summary StatusSummary  `json:"summary"`
	Alerts  []ServiceAlert `json:"alerts"`
}
