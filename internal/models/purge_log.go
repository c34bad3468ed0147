package models

import "time"

// PurgeLog records one physical deletion run of the cleanup service
type PurgeLog struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Target        string    `gorm:"type:varchar(50);not null;index" json:"target"`
	TargetCount   int       `gorm:"not null" json:"targetCount"`
	DeletedCount  int       `gorm:"not null" json:"deletedCount"`
	RetentionDays int       `gorm:"not null" json:"retentionDays"`
	Reason        string    `gorm:"type:varchar(50);not null" json:"reason"`
	ExecutedAt    time.Time `gorm:"not null;autoCreateTime;index" json:"executedAt"`
}

// TableName specifies the table name
func (PurgeLog) TableName() string {
	return "purge_logs"
}

// Purge targets
const (
	PurgeTargetNotifications = "notifications"
	PurgeTargetOTPCodes      = "otp_codes"
	PurgeTargetSessions      = "sessions"
	PurgeTargetIndexTasks    = "search_index_tasks"
)

// Purge reasons
const (
	PurgeReasonExpired = "expired"
	PurgeReasonManual  = "manual"
)
