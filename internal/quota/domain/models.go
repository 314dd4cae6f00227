package domain

import "time"

// UsageRecord is the per-(tenant, period) ingestion counter. Exactly one row
// exists per pair; the composite primary key makes the storage layer, not
// application logic, enforce that under concurrent first-use creation.
type UsageRecord struct {
	TenantKey    string    `json:"tenant_key" gorm:"primaryKey;column:tenant_key;type:text"`
	Period       Period    `json:"period" gorm:"primaryKey;column:period;type:text"`
	LogsIngested int64     `json:"logs_ingested" gorm:"column:logs_ingested;not null;default:0"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// ResolvedLimit is the effective monthly limit for a tenant at resolution time.
type ResolvedLimit struct {
	Limit    int64
	PlanCode string
	PlanName string
}

// Denial carries the diagnostic counters returned on a quota denial. The
// counters are advisory reads taken after the atomic decision; they may be
// stale by the time the caller sees them.
type Denial struct {
	Period    Period `json:"period"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
}

// Decision is the outcome of one admission attempt.
type Decision struct {
	Admitted bool
	Period   Period
	Limit    int64
	Denial   *Denial
}

// Summary is the read-only projection of a tenant's current-period usage.
type Summary struct {
	TenantKey    string     `json:"tenant_key"`
	Plan         string     `json:"plan"`
	PlanName     string     `json:"plan_name,omitempty"`
	Period       Period     `json:"period"`
	Limit        int64      `json:"limit"`
	Used         int64      `json:"used"`
	Remaining    int64      `json:"remaining"`
	UsagePercent int64      `json:"usage_pct"`
	ResetsAt     time.Time  `json:"resets_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
