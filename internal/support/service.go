// Package support implements user/admin support tickets and their message threads.
package support

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	previewLength       = 100
	titleSupportMessage = "Νέο Μήνυμα Υποστήριξης"
)

type Service struct {
	db     *gorm.DB
	notify *notify.Service
}

func NewService(db *gorm.DB, n *notify.Service) *Service {
	return &Service{db: db, notify: n}
}

// CreateTicketRequest opens a ticket. Admins may set UserID to open it on a
// user's behalf.
type CreateTicketRequest struct {
	UserID        string  `json:"userId"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Priority      string  `json:"priority"`
	PropertyID    *string `json:"propertyId"`
	TransactionID *string `json:"transactionId"`
}

func (s *Service) CreateTicket(ctx context.Context, p auth.Principal, req CreateTicketRequest) (*models.SupportTicket, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" {
		return nil, apperror.Validation("Title and description are required")
	}

	category := models.TicketCategoryGeneral
	if req.Category != "" {
		c, ok := models.ParseTicketCategory(req.Category)
		if !ok {
			return nil, apperror.Validation("Invalid ticket category")
		}
		category = c
	}
	priority := models.TicketPriorityMedium
	if req.Priority != "" {
		pr, ok := models.ParseTicketPriority(req.Priority)
		if !ok {
			return nil, apperror.Validation("Invalid ticket priority")
		}
		priority = pr
	}

	owner := p.UserID
	if req.UserID != "" && req.UserID != p.UserID {
		if !p.IsAdmin() {
			return nil, apperror.Forbidden("Access denied")
		}
		owner = req.UserID
	}

	ticket := &models.SupportTicket{
		UserID:        owner,
		CreatedBy:     p.UserID,
		Title:         title,
		Description:   description,
		Category:      category,
		Priority:      priority,
		Status:        models.TicketStatusOpen,
		PropertyID:    nonEmpty(req.PropertyID),
		TransactionID: nonEmpty(req.TransactionID),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", owner).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("User not found")
		}
		return tx.Create(ticket).Error
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("support ticket opened",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", owner),
		zap.String("created_by", p.UserID),
		zap.String("category", string(category)))
	return ticket, nil
}

// TicketFilter narrows ListTickets; "all" or empty disables a filter
type TicketFilter struct {
	Status   string
	Category string
}

// ListTickets returns every ticket for admins and the caller's own otherwise,
// most recently active first
func (s *Service) ListTickets(ctx context.Context, p auth.Principal, f TicketFilter) ([]models.SupportTicket, error) {
	query := s.db.WithContext(ctx).Model(&models.SupportTicket{}).Preload("User")
	if !p.IsAdmin() {
		query = query.Where("user_id = ?", p.UserID)
	}
	if f.Status != "" && !strings.EqualFold(f.Status, "all") {
		st, ok := models.ParseTicketStatus(f.Status)
		if !ok {
			return nil, apperror.Validation("Invalid ticket status")
		}
		query = query.Where("status = ?", st)
	}
	if f.Category != "" && !strings.EqualFold(f.Category, "all") {
		c, ok := models.ParseTicketCategory(f.Category)
		if !ok {
			return nil, apperror.Validation("Invalid ticket category")
		}
		query = query.Where("category = ?", c)
	}

	tickets := []models.SupportTicket{}
	if err := query.Order("updated_at DESC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return tickets, nil
	}

	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	var counts []struct {
		TicketID string
		N        int64
	}
	if err := s.db.WithContext(ctx).Model(&models.SupportMessage{}).
		Select("ticket_id, COUNT(*) AS n").
		Where("ticket_id IN ?", ids).
		Group("ticket_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byTicket := make(map[string]int64, len(counts))
	for _, c := range counts {
		byTicket[c.TicketID] = c.N
	}
	for i := range tickets {
		tickets[i].MessageCount = byTicket[tickets[i].ID]
	}
	return tickets, nil
}

// GetTicket returns a ticket with its messages
func (s *Service) GetTicket(ctx context.Context, p auth.Principal, id string) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Messages.Sender").
		Where("id = ?", id).
		First(&ticket).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Ticket not found")
		}
		return nil, err
	}
	if !p.CanAccessUser(ticket.UserID) {
		return nil, apperror.Forbidden("Access denied")
	}
	ticket.MessageCount = int64(len(ticket.Messages))
	return &ticket, nil
}

// UpdateTicketRequest is an admin status/priority change. Any status may
// replace any other.
type UpdateTicketRequest struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

func (s *Service) UpdateTicket(ctx context.Context, p auth.Principal, id string, req UpdateTicketRequest) (*models.SupportTicket, error) {
	if !p.IsAdmin() {
		return nil, apperror.Forbidden("Access denied")
	}
	if req.Status == "" && req.Priority == "" {
		return nil, apperror.Validation("Status is required")
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Status != "" {
		st, ok := models.ParseTicketStatus(req.Status)
		if !ok {
			return nil, apperror.Validation("Invalid ticket status")
		}
		updates["status"] = st
	}
	if req.Priority != "" {
		pr, ok := models.ParseTicketPriority(req.Priority)
		if !ok {
			return nil, apperror.Validation("Invalid ticket priority")
		}
		updates["priority"] = pr
	}

	var ticket models.SupportTicket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&ticket).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("Ticket not found")
			}
			return err
		}
		if err := tx.Model(&ticket).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&ticket).Error
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("support ticket updated",
		zap.String("ticket_id", id),
		zap.String("status", string(ticket.Status)),
		zap.String("priority", string(ticket.Priority)))
	return &ticket, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// preview cuts content to previewLength characters, marking the cut with "..."
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func choiceMetadata(isMultipleChoice bool, options []string) datatypes.JSONMap {
	if !isMultipleChoice {
		return nil
	}
	valid := make([]string, 0, len(options))
	for _, o := range options {
		if strings.TrimSpace(o) != "" {
			valid = append(valid, o)
		}
	}
	if len(valid) < 2 {
		return nil
	}
	return datatypes.JSONMap{"isMultipleChoice": true, "options": valid}
}
