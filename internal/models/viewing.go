package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ViewingStatus tracks a viewing appointment
type ViewingStatus string

const (
	ViewingStatusPending   ViewingStatus = "PENDING"
	ViewingStatusAccepted  ViewingStatus = "ACCEPTED"
	ViewingStatusRejected  ViewingStatus = "REJECTED"
	ViewingStatusCancelled ViewingStatus = "CANCELLED"
)

// ParseViewingStatus accepts any casing
func ParseViewingStatus(s string) (ViewingStatus, bool) {
	switch st := ViewingStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ViewingStatusPending, ViewingStatusAccepted, ViewingStatusRejected, ViewingStatusCancelled:
		return st, true
	}
	return "", false
}

// Open reports whether the appointment still holds its slot
func (s ViewingStatus) Open() bool {
	return s == ViewingStatusPending || s == ViewingStatusAccepted
}

// ViewingRequest is a buyer's booking of one availability slot. Date and
// times are copied from the slot so the record survives slot removal.
type ViewingRequest struct {
	ID         string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID string        `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	SlotID     string        `gorm:"type:varchar(36);not null;index" json:"slotId"`
	BuyerID    string        `gorm:"type:varchar(36);not null;index" json:"buyerId"`
	AgentID    *string       `gorm:"type:varchar(36);index" json:"agentId,omitempty"`
	Date       time.Time     `gorm:"not null;index" json:"date"`
	StartTime  string        `gorm:"type:varchar(5);not null" json:"startTime"`
	EndTime    string        `gorm:"type:varchar(5);not null" json:"endTime"`
	Status     ViewingStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Message    string        `gorm:"type:text" json:"message,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Buyer    *User     `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
}

func (ViewingRequest) TableName() string {
	return "viewing_requests"
}

func (v *ViewingRequest) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = ViewingStatusPending
	}
	return nil
}

// Favorite is a saved listing; one row per (user, property)
type Favorite struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorite_pair" json:"userId"`
	PropertyID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorite_pair;index" json:"propertyId"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

func (Favorite) TableName() string {
	return "favorites"
}

func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
