package notify

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/database"
	"realestate-platform/internal/metrics"
	"realestate-platform/internal/models"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultTitle is used when a notification is created without a title
const DefaultTitle = "Νέα Ειδοποίηση"

// Service creates and manages notification rows
type Service struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, m *metrics.Metrics) *Service {
	return &Service{db: db, metrics: m}
}

// Input describes one notification to create
type Input struct {
	UserID   string                 `json:"userId"`
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (in Input) model() *models.Notification {
	n := &models.Notification{
		UserID:  in.UserID,
		Type:    strings.ToUpper(strings.TrimSpace(in.Type)),
		Title:   in.Title,
		Message: in.Message,
	}
	if n.Type == "" {
		n.Type = models.NotificationTypeGeneral
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if len(in.Metadata) > 0 {
		n.Metadata = datatypes.JSONMap(in.Metadata)
	}
	return n
}

// Create inserts one notification with tx, which is normally the workflow's
// own database transaction
func (s *Service) Create(tx *gorm.DB, in Input) (*models.Notification, error) {
	n := in.model()
	if err := tx.Create(n).Error; err != nil {
		return nil, err
	}
	s.metrics.NotificationCreated(n.Type)
	return n, nil
}

// CreateMany inserts one notification per input, skipping empty recipients
func (s *Service) CreateMany(tx *gorm.DB, inputs ...Input) error {
	for _, in := range inputs {
		if in.UserID == "" {
			continue
		}
		if _, err := s.Create(tx, in); err != nil {
			return err
		}
	}
	return nil
}

// NotifyAdmins copies in to every ADMIN user
func (s *Service) NotifyAdmins(tx *gorm.DB, in Input) ([]models.Notification, error) {
	var adminIDs []string
	if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Pluck("id", &adminIDs).Error; err != nil {
		return nil, err
	}

	created := make([]models.Notification, 0, len(adminIDs))
	for _, id := range adminIDs {
		in.UserID = id
		n, err := s.Create(tx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, *n)
	}
	return created, nil
}

// Send handles a client-posted notification. Type ADMIN fans out to all admins,
// anything else is addressed to the caller.
func (s *Service) Send(ctx context.Context, userID string, in Input) ([]models.Notification, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperror.Validation("message is required")
	}

	var created []models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if strings.EqualFold(strings.TrimSpace(in.Type), models.NotificationTypeAdmin) {
			var err error
			created, err = s.NotifyAdmins(tx, in)
			return err
		}
		in.UserID = userID
		n, err := s.Create(tx, in)
		if err != nil {
			return err
		}
		created = []models.Notification{*n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListOptions filters List
type ListOptions struct {
	UnreadOnly bool
	Limit      int
}

// List returns the user's notifications, newest first, and the unread count
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]models.Notification, int64, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if opts.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	var unread int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, unread, nil
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", notificationID, userID).First(&n).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("Notification not found")
			}
			return err
		}
		n.IsRead = true
		return tx.Model(&n).Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkAllRead marks every unread notification of the user as read
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// Delete removes one of the user's notifications
func (s *Service) Delete(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("Notification not found")
	}
	return nil
}

// DeleteAll removes every notification of the user
func (s *Service) DeleteAll(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
