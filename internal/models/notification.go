package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTypeStageUpdate           = "STAGE_UPDATE"
	NotificationTypeAgentStageUpdate      = "AGENT_STAGE_UPDATE"
	NotificationTypePropertyInterest      = "PROPERTY_INTEREST"
	NotificationTypeAgentClientConnection = "AGENT_CLIENT_CONNECTION"
	NotificationTypeAgentLeadAdded        = "AGENT_LEAD_ADDED"
	NotificationTypeInterested            = "INTERESTED"
	NotificationTypeCancelled             = "CANCELLED"
	NotificationTypeRestored              = "INTEREST_RESTORED"
	NotificationTypeSupportMessage        = "SUPPORT_MESSAGE"
	NotificationTypeViewingRequest        = "VIEWING_REQUEST"
	NotificationTypeAppointmentAccepted   = "APPOINTMENT_ACCEPTED"
	NotificationTypeAppointmentRejected   = "APPOINTMENT_REJECTED"
	NotificationTypeAppointmentCancelled  = "APPOINTMENT_CANCELLED"
	NotificationTypeInfoRequest           = "INFO_REQUEST"
	NotificationTypeStatusChange          = "STATUS_CHANGE"
	NotificationTypeAdmin                 = "ADMIN"
	NotificationTypeGeneral               = "GENERAL"
)

// Notification is created inline with the state change it reports
type Notification struct {
	ID        string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string            `gorm:"type:varchar(36);not null;index:idx_notification_user_created" json:"userId"`
	Type      string            `gorm:"type:varchar(50);not null;index" json:"type"`
	Title     string            `gorm:"type:varchar(255);not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	IsRead    bool              `gorm:"not null;default:false;index" json:"isRead"`
	CreatedAt time.Time         `gorm:"not null;autoCreateTime;index:idx_notification_user_created" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
