package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Point reasons
const (
	PointsReasonRegistration    = "registration"
	PointsReasonPropertyAdded   = "property_added"
	PointsReasonAdminAdjustment = "admin_adjustment"
)

// UserPointsAccount holds a user's balance and personal referral code.
// Balance is maintained in the same database transaction as every ledger row.
type UserPointsAccount struct {
	UserID       string    `gorm:"type:varchar(36);primaryKey" json:"userId"`
	ReferralCode string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"referralCode"`
	Balance      int64     `gorm:"not null;default:0" json:"balance"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

func (UserPointsAccount) TableName() string {
	return "user_points_accounts"
}

// Referral is one referrer/referred relationship. A user can be referred once.
type Referral struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReferrerID      string    `gorm:"type:varchar(36);not null;index" json:"referrerId"`
	ReferredID      string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"referredId"`
	ReferralCode    string    `gorm:"type:varchar(32);not null;index" json:"referralCode"`
	TotalPoints     int64     `gorm:"not null;default:0" json:"totalPoints"`
	PropertiesAdded int64     `gorm:"not null;default:0" json:"propertiesAdded"`
	TotalArea       float64   `gorm:"not null;default:0" json:"totalArea"`
	IsActive        bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

func (Referral) TableName() string {
	return "referrals"
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReferralPoints is an append-only ledger row
type ReferralPoints struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReferralID *string   `gorm:"type:varchar(36);index" json:"referralId,omitempty"`
	UserID     string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	Points     int64     `gorm:"not null" json:"points"`
	Reason     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_points_property_reason,priority:2" json:"reason"`
	PropertyID *string   `gorm:"type:varchar(36);uniqueIndex:idx_points_property_reason,priority:1" json:"propertyId,omitempty"`
	Area       *float64  `json:"area,omitempty"`
	Location   string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	Note       string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime;index" json:"createdAt"`
}

func (ReferralPoints) TableName() string {
	return "referral_points"
}

func (p *ReferralPoints) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
