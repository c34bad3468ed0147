package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stage is the position of a deal in the fixed progress enumeration
type Stage string

const (
	StagePending          Stage = "PENDING"
	StageMeetingScheduled Stage = "MEETING_SCHEDULED"
	StageDepositPaid      Stage = "DEPOSIT_PAID"
	StageFinalSigning     Stage = "FINAL_SIGNING"
	StageCompleted        Stage = "COMPLETED"
	StageCancelled        Stage = "CANCELLED"
)

// Stages lists every stage in progress order
var Stages = []Stage{
	StagePending,
	StageMeetingScheduled,
	StageDepositPaid,
	StageFinalSigning,
	StageCompleted,
	StageCancelled,
}

// ParseStage validates a stage case-insensitively and returns it upper-cased
func ParseStage(s string) (Stage, bool) {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Stages {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Label returns the Greek label shown to users
func (s Stage) Label() string {
	switch s {
	case StagePending:
		return "Αναμονή για ραντεβού"
	case StageMeetingScheduled:
		return "Έγινε ραντεβού"
	case StageDepositPaid:
		return "Έγινε προκαταβολή"
	case StageFinalSigning:
		return "Τελική υπογραφή"
	case StageCompleted:
		return "Ολοκληρώθηκε"
	case StageCancelled:
		return "Ακυρώθηκε"
	}
	return string(s)
}

// TransactionStatus is derived from the stage, never set independently
type TransactionStatus string

const (
	TransactionStatusInProgress TransactionStatus = "IN_PROGRESS"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// StatusForStage maps a stage to the transaction status
func StatusForStage(s Stage) TransactionStatus {
	switch s {
	case StageCompleted:
		return TransactionStatusCompleted
	case StageCancelled:
		return TransactionStatusCancelled
	default:
		return TransactionStatusInProgress
	}
}

type Transaction struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID        string            `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	BuyerID           string            `gorm:"type:varchar(36);not null;index" json:"buyerId"`
	SellerID          string            `gorm:"type:varchar(36);not null;index" json:"sellerId"`
	AgentID           *string           `gorm:"type:varchar(36);index" json:"agentId,omitempty"`
	LeadID            *string           `gorm:"type:varchar(36);index" json:"leadId,omitempty"`
	Stage             Stage             `gorm:"type:varchar(30);not null;default:'PENDING';index" json:"stage"`
	Status            TransactionStatus `gorm:"type:varchar(20);not null;default:'IN_PROGRESS';index" json:"status"`
	InterestCancelled bool              `gorm:"not null;default:false" json:"interestCancelled"`
	CreatedAt         time.Time         `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time         `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Progress []TransactionProgress `gorm:"foreignKey:TransactionID" json:"progress,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Stage == "" {
		t.Stage = StagePending
	}
	t.Status = StatusForStage(t.Stage)
	return nil
}

// SetStage moves the transaction to s keeping status consistent
func (t *Transaction) SetStage(s Stage) {
	t.Stage = s
	t.Status = StatusForStage(s)
}

// HasParty reports whether userID is buyer, seller or agent of the deal
func (t *Transaction) HasParty(userID string) bool {
	if userID == t.BuyerID || userID == t.SellerID {
		return true
	}
	return t.AgentID != nil && *t.AgentID == userID
}

// TransactionProgress is an append-only log entry; rows are never updated or deleted
type TransactionProgress struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TransactionID string    `gorm:"type:varchar(36);not null;index" json:"transactionId"`
	Stage         Stage     `gorm:"type:varchar(30);not null" json:"stage"`
	Notes         string    `gorm:"type:text" json:"notes"`
	CreatedBy     *string   `gorm:"type:varchar(36)" json:"createdBy,omitempty"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime;index" json:"createdAt"`
}

func (TransactionProgress) TableName() string {
	return "transaction_progress"
}

func (p *TransactionProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
