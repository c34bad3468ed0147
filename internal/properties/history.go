package properties

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/models"
	"strconv"

	"gorm.io/gorm"
)

// detectChanges compares a listing before and after an update
func detectChanges(before, after *models.Property, actorID string) []models.PropertyChange {
	changes := []models.PropertyChange{}
	add := func(changeType, oldVal, newVal string, magnitude *float64) {
		changes = append(changes, models.PropertyChange{
			PropertyID:      after.ID,
			ChangedBy:       actorID,
			ChangeType:      changeType,
			OldValue:        oldVal,
			NewValue:        newVal,
			ChangeMagnitude: magnitude,
		})
	}

	// Price change
	if !before.Price.Equal(after.Price) {
		magnitude := after.Price.Sub(before.Price).InexactFloat64()
		add(models.ChangeTypePrice, before.Price.StringFixed(2), after.Price.StringFixed(2), &magnitude)
	}

	// Status change
	if before.Status != after.Status {
		add(models.ChangeTypeStatus, string(before.Status), string(after.Status), nil)
	}

	// Area change
	if before.Area != after.Area {
		magnitude := after.Area - before.Area
		add(models.ChangeTypeArea, formatArea(before.Area), formatArea(after.Area), &magnitude)
	}

	if before.Title != after.Title {
		add(models.ChangeTypeTitle, before.Title, after.Title, nil)
	}
	if before.Location != after.Location {
		add(models.ChangeTypeLocation, before.Location, after.Location, nil)
	}
	if before.ImageURL != after.ImageURL {
		add(models.ChangeTypeImage, before.ImageURL, after.ImageURL, nil)
	}

	return changes
}

func formatArea(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// saveChanges stores detected changes with tx
func saveChanges(tx *gorm.DB, changes []models.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	return tx.Create(&changes).Error
}

// History returns a listing's change log, newest first; owner or admin only
func (s *Service) History(ctx context.Context, p auth.Principal, propertyID string, limit int) ([]models.PropertyChange, error) {
	db := s.db.WithContext(ctx)
	property, err := load(db, propertyID)
	if err != nil {
		return nil, err
	}
	if !canManage(&p, property) {
		return nil, apperror.Forbidden("Access denied")
	}

	changes := []models.PropertyChange{}
	query := db.Where("property_id = ?", propertyID).Order("detected_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// RecentChanges retrieves the latest changes across all listings
func (s *Service) RecentChanges(ctx context.Context, limit int) ([]models.PropertyChange, error) {
	changes := []models.PropertyChange{}
	query := s.db.WithContext(ctx).Order("detected_at DESC, id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&changes).Error; err != nil {
		return nil, err
	}

	return changes, nil
}
