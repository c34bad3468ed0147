package properties

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/models"
	"time"

	"gorm.io/gorm"
)

// SlotInput is a viewing slot: date as YYYY-MM-DD, times as HH:MM
type SlotInput struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Availability lists a listing's viewing slots in chronological order
func (s *Service) Availability(ctx context.Context, propertyID string) ([]models.PropertyAvailability, error) {
	db := s.db.WithContext(ctx)
	if _, err := load(db, propertyID); err != nil {
		return nil, err
	}
	slots := []models.PropertyAvailability{}
	if err := db.Where("property_id = ?", propertyID).
		Order("date ASC, start_time ASC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// AddSlot publishes a viewing slot; owner only
func (s *Service) AddSlot(ctx context.Context, p auth.Principal, propertyID string, in SlotInput) (*models.PropertyAvailability, error) {
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return nil, apperror.Validation("Invalid date, expected YYYY-MM-DD")
	}
	start, err := time.Parse("15:04", in.StartTime)
	if err != nil {
		return nil, apperror.Validation("Invalid start time, expected HH:MM")
	}
	end, err := time.Parse("15:04", in.EndTime)
	if err != nil {
		return nil, apperror.Validation("Invalid end time, expected HH:MM")
	}
	if !end.After(start) {
		return nil, apperror.Validation("End time must be after start time")
	}

	slot := &models.PropertyAvailability{
		PropertyID: propertyID,
		Date:       date,
		StartTime:  start.Format("15:04"),
		EndTime:    end.Format("15:04"),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := load(tx, propertyID)
		if err != nil {
			return err
		}
		if property.UserID != p.UserID {
			return apperror.Forbidden("Only the owner can manage availability")
		}
		return tx.Create(slot).Error
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// RemoveSlot deletes a viewing slot; owner only
func (s *Service) RemoveSlot(ctx context.Context, p auth.Principal, propertyID, slotID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := load(tx, propertyID)
		if err != nil {
			return err
		}
		if property.UserID != p.UserID {
			return apperror.Forbidden("Only the owner can manage availability")
		}
		var slot models.PropertyAvailability
		if err := tx.Where("id = ? AND property_id = ?", slotID, propertyID).First(&slot).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("Availability slot not found")
			}
			return err
		}
		if slot.IsBooked {
			return apperror.Conflict("Slot has a scheduled viewing")
		}
		return tx.Delete(&slot).Error
	})
}
