// Package domain contains the per-user monthly quota state.
package domain

import "time"

// UserQuota is the single mutable row per user. CurrentUsage is a running
// total since the last reset; it is not reconciled against the ledger.
type UserQuota struct {
	UserID       int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	MonthlyQuota int64     `json:"monthly_quota" gorm:"not null"`
	CurrentUsage int64     `json:"current_usage" gorm:"not null;default:0"`
	LastResetAt  time.Time `json:"last_reset_at" gorm:"not null"`
	ResetDay     int       `json:"reset_day" gorm:"not null;default:1"`
	Active       bool      `json:"active" gorm:"not null;default:true"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (UserQuota) TableName() string { return "user_quotas" }
