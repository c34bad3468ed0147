package models

import "time"

// PropertyChange records one field of a listing changing value
type PropertyChange struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID      string    `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	ChangedBy       string    `gorm:"type:varchar(36)" json:"changedBy,omitempty"`
	ChangeType      string    `gorm:"type:varchar(50);not null" json:"changeType"` // price_changed, status_changed, etc.
	OldValue        string    `gorm:"type:text" json:"oldValue,omitempty"`
	NewValue        string    `gorm:"type:text" json:"newValue,omitempty"`
	ChangeMagnitude *float64  `gorm:"type:decimal(14,2)" json:"changeMagnitude,omitempty"` // For numerical changes
	DetectedAt      time.Time `gorm:"not null;autoCreateTime;index" json:"detectedAt"`
}

// TableName specifies the table name
func (PropertyChange) TableName() string {
	return "property_changes"
}

// ChangeType constants
const (
	ChangeTypePrice    = "price_changed"
	ChangeTypeStatus   = "status_changed"
	ChangeTypeArea     = "area_changed"
	ChangeTypeTitle    = "title_changed"
	ChangeTypeLocation = "location_changed"
	ChangeTypeImage    = "image_changed"
	ChangeTypeNew      = "new_property"
)
