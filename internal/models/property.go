package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Property struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string          `gorm:"type:varchar(36);not null;index" json:"userId"` // owner (seller or listing agent)
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Type        string          `gorm:"type:varchar(50);index" json:"type,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Area        float64         `gorm:"not null;default:0" json:"area"`
	Location    string          `gorm:"type:varchar(255);index" json:"location"`
	Address     string          `gorm:"type:varchar(255)" json:"address,omitempty"`
	Bedrooms    *int            `json:"bedrooms,omitempty"`
	Bathrooms   *int            `json:"bathrooms,omitempty"`
	ImageURL    string          `gorm:"type:text" json:"imageUrl,omitempty"`

	Status     PropertyStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsVerified bool           `gorm:"not null;default:false" json:"isVerified"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime;index" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Stats *PropertyStats `gorm:"foreignKey:PropertyID" json:"stats,omitempty"`
}

// PropertyStatus is the listing state
type PropertyStatus string

const (
	PropertyStatusActive      PropertyStatus = "active"
	PropertyStatusPending     PropertyStatus = "pending"
	PropertyStatusSold        PropertyStatus = "sold"
	PropertyStatusUnavailable PropertyStatus = "unavailable"

	// set by moderation only
	PropertyStatusRejected      PropertyStatus = "rejected"
	PropertyStatusInfoRequested PropertyStatus = "info_requested"
)

// HiddenStatuses are the listing states not shown to the public
var HiddenStatuses = []PropertyStatus{
	PropertyStatusUnavailable,
	PropertyStatusRejected,
	PropertyStatusInfoRequested,
}

// ParsePropertyStatus validates a status coming from a client
func ParsePropertyStatus(s string) (PropertyStatus, bool) {
	switch st := PropertyStatus(s); st {
	case PropertyStatusActive, PropertyStatusPending, PropertyStatusSold, PropertyStatusUnavailable:
		return st, true
	}
	return "", false
}

// TableName specifies the table name
func (Property) TableName() string {
	return "properties"
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PropertyStatusActive
	}
	return nil
}

// IsAvailable reports whether the listing is shown to the public
func (p *Property) IsAvailable() bool {
	for _, st := range HiddenStatuses {
		if p.Status == st {
			return false
		}
	}
	return true
}

// PropertyAvailability is a viewing slot published by the owner
type PropertyAvailability struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	Date       time.Time `gorm:"not null;index" json:"date"`
	StartTime  string    `gorm:"type:varchar(5);not null" json:"startTime"` // HH:MM
	EndTime    string    `gorm:"type:varchar(5);not null" json:"endTime"`
	IsBooked   bool      `gorm:"not null;default:false" json:"isBooked"` // held by a pending or accepted viewing
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

func (PropertyAvailability) TableName() string {
	return "property_availability"
}

func (a *PropertyAvailability) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// PropertyStats holds per-listing counters
type PropertyStats struct {
	PropertyID      string    `gorm:"type:varchar(36);primaryKey" json:"propertyId"`
	Views           int64     `gorm:"not null;default:0" json:"views"`
	InterestedCount int64     `gorm:"not null;default:0" json:"interestedCount"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

func (PropertyStats) TableName() string {
	return "property_stats"
}
