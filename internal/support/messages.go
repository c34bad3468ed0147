package support

import (
	"context"
	"fmt"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostMessageRequest appends to a ticket thread
type PostMessageRequest struct {
	TicketID         string   `json:"ticketId"`
	Content          string   `json:"content"`
	IsMultipleChoice bool     `json:"isMultipleChoice"`
	Options          []string `json:"options"`
}

// Messages lists a ticket's thread oldest first, for its owner or an admin
func (s *Service) Messages(ctx context.Context, p auth.Principal, ticketID string) ([]models.SupportMessage, error) {
	if ticketID == "" {
		return nil, apperror.Validation("Ticket ID is required")
	}
	db := s.db.WithContext(ctx)
	if _, err := accessibleTicket(db, p, ticketID); err != nil {
		return nil, err
	}

	messages := []models.SupportMessage{}
	if err := db.Preload("Sender").
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage appends a message. A reply from an admin notifies the ticket owner.
func (s *Service) PostMessage(ctx context.Context, p auth.Principal, req PostMessageRequest) (*models.SupportMessage, error) {
	if req.TicketID == "" || req.Content == "" {
		return nil, apperror.Validation("Ticket ID and content are required")
	}

	msg := &models.SupportMessage{
		TicketID:    req.TicketID,
		SenderID:    p.UserID,
		Content:     req.Content,
		IsFromAdmin: p.IsAdmin(),
		Metadata:    choiceMetadata(req.IsMultipleChoice, req.Options),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := accessibleTicket(tx, p, req.TicketID)
		if err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(ticket).Update("updated_at", time.Now()).Error; err != nil {
			return err
		}
		if !msg.IsFromAdmin {
			return nil
		}
		_, err = s.notify.Create(tx, s.replyNotification(tx, ticket, msg))
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("support message posted",
		zap.String("ticket_id", req.TicketID),
		zap.String("message_id", msg.ID),
		zap.Bool("from_admin", msg.IsFromAdmin))
	return msg, nil
}

func (s *Service) replyNotification(tx *gorm.DB, ticket *models.SupportTicket, msg *models.SupportMessage) notify.Input {
	var propertyTitle string
	if ticket.PropertyID != nil {
		var property models.Property
		if err := tx.Select("title").Where("id = ?", *ticket.PropertyID).First(&property).Error; err == nil {
			propertyTitle = property.Title
		}
	}

	text := "Λάβατε νέο μήνυμα από τον διαχειριστή"
	if propertyTitle != "" {
		text = fmt.Sprintf("Λάβατε νέο μήνυμα από τον διαχειριστή σχετικά με το ακίνητο '%s'", propertyTitle)
	}
	text += "\n\n" + preview(msg.Content)

	return notify.Input{
		UserID:  ticket.UserID,
		Type:    models.NotificationTypeSupportMessage,
		Title:   titleSupportMessage,
		Message: text,
		Metadata: map[string]interface{}{
			"ticketId":       ticket.ID,
			"ticketTitle":    ticket.Title,
			"ticketCategory": ticket.Category,
			"messageId":      msg.ID,
			"isFromAdmin":    true,
			"propertyTitle":  propertyTitle,
			"fullMessage":    msg.Content,
		},
	}
}

func accessibleTicket(tx *gorm.DB, p auth.Principal, id string) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	if err := tx.Where("id = ?", id).First(&ticket).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Ticket not found")
		}
		return nil, err
	}
	if !p.CanAccessUser(ticket.UserID) {
		return nil, apperror.Forbidden("Access denied")
	}
	return &ticket, nil
}
