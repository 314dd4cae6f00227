package domain

import "time"

// Tenant is a customer account whose logs and quota are isolated from others.
type Tenant struct {
	TenantKey string `json:"tenant_key" gorm:"primaryKey;column:tenant_key;type:text"`
	Name      string `json:"name" gorm:"type:text;not null"`
	PlanCode  string `json:"plan_code" gorm:"type:text;not null;default:free"`

	// OverrideMonthlyLogLimit beats the plan limit when set. Nil means the
	// plan's limit applies.
	OverrideMonthlyLogLimit *int64 `json:"override_monthly_log_limit,omitempty" gorm:"column:override_monthly_log_limit"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }
