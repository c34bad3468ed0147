package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionStatus tracks a buyer/agent introduction
type ConnectionStatus string

const (
	ConnectionStatusPending   ConnectionStatus = "PENDING"
	ConnectionStatusConfirmed ConnectionStatus = "CONFIRMED"
	ConnectionStatusVerified  ConnectionStatus = "VERIFIED"
)

// BuyerAgentConnection links a buyer and an agent for one property.
// One row per (buyer, agent, property); cancellation flips InterestCancelled.
type BuyerAgentConnection struct {
	ID                string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	BuyerID           string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_connection_triple" json:"buyerId"`
	AgentID           string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_connection_triple;index" json:"agentId"`
	PropertyID        string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_connection_triple;index" json:"propertyId"`
	Status            ConnectionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	OTPCode           *string          `gorm:"column:otp_code;type:varchar(10)" json:"-"`
	OTPExpiresAt      *time.Time       `gorm:"column:otp_expires_at;index" json:"otpExpiresAt,omitempty"`
	InterestCancelled bool             `gorm:"not null;default:false" json:"interestCancelled"`
	CreatedAt         time.Time        `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time        `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Buyer    *User     `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Agent    *User     `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
}

func (BuyerAgentConnection) TableName() string {
	return "buyer_agent_connections"
}

func (c *BuyerAgentConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// OTPExpired reports whether the stored code is past its expiry at now
func (c *BuyerAgentConnection) OTPExpired(now time.Time) bool {
	return c.OTPExpiresAt == nil || now.After(*c.OTPExpiresAt)
}

// LeadStatus tracks a buyer's interest record
type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "PENDING"
	LeadStatusCancelled LeadStatus = "CANCELLED"
)

// PropertyLead records a buyer's interest in a property, optionally through an agent
type PropertyLead struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID        string     `gorm:"type:varchar(36);not null;index:idx_lead_property_buyer" json:"propertyId"`
	BuyerID           string     `gorm:"type:varchar(36);not null;index:idx_lead_property_buyer" json:"buyerId"`
	AgentID           *string    `gorm:"type:varchar(36);index" json:"agentId,omitempty"`
	Status            LeadStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	InterestCancelled bool       `gorm:"not null;default:false" json:"interestCancelled"`
	TransactionID     *string    `gorm:"type:varchar(36)" json:"transactionId,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}

func (PropertyLead) TableName() string {
	return "property_leads"
}

func (l *PropertyLead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
