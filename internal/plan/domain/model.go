package domain

import "time"

// Plan defines a subscription tier and its monthly ingestion allowance.
type Plan struct {
	Code            string    `json:"code" gorm:"primaryKey;type:text"`
	Name            string    `json:"name" gorm:"type:text;not null"`
	MonthlyLogLimit int64     `json:"monthly_log_limit" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }
