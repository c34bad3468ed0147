package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TicketStatus values come from admin updates; no transition table is enforced
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

type TicketCategory string

const (
	TicketCategoryGeneral          TicketCategory = "GENERAL"
	TicketCategoryPropertyInquiry  TicketCategory = "PROPERTY_INQUIRY"
	TicketCategoryTransactionIssue TicketCategory = "TRANSACTION_ISSUE"
	TicketCategoryTechnicalSupport TicketCategory = "TECHNICAL_SUPPORT"
	TicketCategoryPaymentIssue     TicketCategory = "PAYMENT_ISSUE"
	TicketCategoryAccountIssue     TicketCategory = "ACCOUNT_ISSUE"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch st := TicketStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return st, true
	}
	return "", false
}

func ParseTicketCategory(s string) (TicketCategory, bool) {
	switch c := TicketCategory(strings.ToUpper(strings.TrimSpace(s))); c {
	case TicketCategoryGeneral, TicketCategoryPropertyInquiry, TicketCategoryTransactionIssue,
		TicketCategoryTechnicalSupport, TicketCategoryPaymentIssue, TicketCategoryAccountIssue:
		return c, true
	}
	return "", false
}

func ParseTicketPriority(s string) (TicketPriority, bool) {
	switch p := TicketPriority(strings.ToUpper(strings.TrimSpace(s))); p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return p, true
	}
	return "", false
}

type SupportTicket struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string         `gorm:"type:varchar(36);not null;index" json:"userId"`
	CreatedBy     string         `gorm:"type:varchar(36);not null" json:"createdBy"`
	Title         string         `gorm:"type:varchar(255);not null" json:"title"`
	Description   string         `gorm:"type:text;not null" json:"description"`
	Category      TicketCategory `gorm:"type:varchar(30);not null;index" json:"category"`
	Priority      TicketPriority `gorm:"type:varchar(20);not null" json:"priority"`
	Status        TicketStatus   `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	PropertyID    *string        `gorm:"type:varchar(36)" json:"propertyId,omitempty"`
	TransactionID *string        `gorm:"type:varchar(36)" json:"transactionId,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime;index" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	User         *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Messages     []SupportMessage `gorm:"foreignKey:TicketID" json:"messages,omitempty"`
	MessageCount int64            `gorm:"-" json:"messageCount"`
}

func (SupportTicket) TableName() string {
	return "support_tickets"
}

func (t *SupportTicket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TicketStatusOpen
	}
	return nil
}

// SupportMessage is append-only; there is no edit or delete
type SupportMessage struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	TicketID    string            `gorm:"type:varchar(36);not null;index:idx_message_ticket_created" json:"ticketId"`
	SenderID    string            `gorm:"type:varchar(36);not null" json:"senderId"`
	Content     string            `gorm:"type:text;not null" json:"content"`
	IsFromAdmin bool              `gorm:"not null;default:false" json:"isFromAdmin"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;autoCreateTime;index:idx_message_ticket_created" json:"createdAt"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (SupportMessage) TableName() string {
	return "support_messages"
}

func (m *SupportMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
