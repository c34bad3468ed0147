package models

import (
	"time"
)

// SearchIndexTask queues a property for (re)indexing or removal in the search engine.
// Writes to the catalog enqueue a task; the index worker drains the queue so a
// search outage never fails a catalog request.
type SearchIndexTask struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID  string     `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	Action      string     `gorm:"type:varchar(20);not null" json:"action"`                                         // upsert, delete
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_task_status" json:"status"` // pending, processing, done, failed
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"lastError,omitempty"`
	NextRetryAt *time.Time `gorm:"index:idx_task_retry" json:"nextRetryAt,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TableName specifies the table name for GORM
func (SearchIndexTask) TableName() string {
	return "search_index_tasks"
}

// Index actions
const (
	IndexActionUpsert = "upsert"
	IndexActionDelete = "delete"
)

// Status constants
const (
	TaskStatusPending       = "pending"
	TaskStatusProcessing    = "processing"
	TaskStatusDone          = "done"
	TaskStatusFailed        = "failed"
	TaskStatusPermanentFail = "permanent_fail" // retries exhausted
)

// MaxRetryAttempts before marking as permanently failed
const MaxRetryAttempts = 5

// GetNextRetryDelay calculates exponential backoff for retries
func GetNextRetryDelay(attempts int) time.Duration {
	// 5min, 15min, 1h, 4h, 12h
	delays := []time.Duration{
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
		12 * time.Hour,
	}

	if attempts < 0 {
		return delays[0]
	}
	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
