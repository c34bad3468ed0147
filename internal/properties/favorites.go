package properties

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ToggleFavorite saves or unsaves a listing for the caller and moves the
// listing's interest counter with it. It reports the new state.
func (s *Service) ToggleFavorite(ctx context.Context, p auth.Principal, propertyID string) (bool, error) {
	var saved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := load(tx, propertyID)
		if err != nil {
			return err
		}
		if !property.IsAvailable() && !canManage(&p, property) {
			return apperror.NotFound("Property not found")
		}

		var existing models.Favorite
		err = tx.Where("user_id = ? AND property_id = ?", p.UserID, propertyID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			return BumpStats(tx, propertyID, 0, -1)
		case !database.IsNotFound(err):
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Favorite{UserID: p.UserID, PropertyID: propertyID})
		if res.Error != nil {
			return res.Error
		}
		saved = true
		if res.RowsAffected == 0 {
			return nil
		}
		return BumpStats(tx, propertyID, 0, 1)
	})
	return saved, err
}

// Favorites lists the caller's saved listings, most recently saved first.
// Listings hidden since they were saved are left out.
func (s *Service) Favorites(ctx context.Context, p auth.Principal) ([]models.Property, error) {
	db := s.db.WithContext(ctx)
	properties := []models.Property{}
	err := db.Preload("Stats").
		Joins("JOIN favorites ON favorites.property_id = properties.id AND favorites.user_id = ?", p.UserID).
		Where("properties.status NOT IN ? OR properties.user_id = ?", models.HiddenStatuses, p.UserID).
		Order("favorites.created_at DESC").
		Find(&properties).Error
	if err != nil {
		return nil, err
	}
	return properties, nil
}
