package properties

import (
	"realestate-platform/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BumpStats adds to a listing's view and interest counters, creating the
// stats row on first use
func BumpStats(tx *gorm.DB, propertyID string, views, interested int64) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "property_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"views":            gorm.Expr("property_stats.views + ?", views),
			"interested_count": gorm.Expr("property_stats.interested_count + ?", interested),
		}),
	}).Create(&models.PropertyStats{
		PropertyID:      propertyID,
		Views:           views,
		InterestedCount: interested,
	}).Error
}
