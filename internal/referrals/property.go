package referrals

import (
	"context"
	"errors"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAlreadyAwarded = errors.New("property already awarded")

// PropertyAward is the points outcome of listing a property
type PropertyAward struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	PropertyID     string    `json:"propertyId"`
	UserID         string    `json:"userId"`
	Area           float64   `json:"area"`
	Location       string    `json:"location"`
	Points         int64     `json:"points"`
	AlreadyAwarded bool      `json:"alreadyAwarded,omitempty"`
	ReferralID     *string   `json:"referralId,omitempty"`
	Breakdown      Breakdown `json:"breakdown"`
}

// ProcessProperty awards the listing bonus for a property in its own
// transaction. A property is awarded at most once.
func (s *Service) ProcessProperty(ctx context.Context, propertyID, userID string) (*PropertyAward, error) {
	if propertyID == "" || userID == "" {
		return nil, apperror.Validation("Missing property ID or user ID")
	}

	var award *PropertyAward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var property models.Property
		if err := tx.Where("id = ?", propertyID).First(&property).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("Property not found")
			}
			return err
		}
		if property.UserID != userID {
			return apperror.Forbidden("Property does not belong to this user")
		}

		var err error
		award, err = s.AwardProperty(tx, &property)
		return err
	})
	if errors.Is(err, errAlreadyAwarded) {
		return award, nil
	}
	if err != nil {
		return nil, err
	}

	s.LogAward(ctx, award)
	return award, nil
}

// AwardProperty credits the property's owner inside tx. When the owner was
// referred, the points are linked to that referral and its totals updated.
func (s *Service) AwardProperty(tx *gorm.DB, property *models.Property) (*PropertyAward, error) {
	points, breakdown := PropertyPoints(property.Area, property.Location, s.cfg.PremiumCities, s.cfg.MinimumPropertyPoints)
	award := &PropertyAward{
		Success:    true,
		Message:    "Property points awarded",
		PropertyID: property.ID,
		UserID:     property.UserID,
		Area:       property.Area,
		Location:   property.Location,
		Points:     points,
		Breakdown:  breakdown,
	}

	var existing int64
	if err := tx.Model(&models.ReferralPoints{}).
		Where("property_id = ? AND reason = ?", property.ID, models.PointsReasonPropertyAdded).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return alreadyAwarded(award), nil
	}

	var ref models.Referral
	err := tx.Where("referred_id = ? AND is_active = ?", property.UserID, true).First(&ref).Error
	switch {
	case err == nil:
		award.ReferralID = &ref.ID
	case !database.IsNotFound(err):
		return nil, err
	}

	area := property.Area
	row := models.ReferralPoints{
		ReferralID: award.ReferralID,
		UserID:     property.UserID,
		Points:     points,
		Reason:     models.PointsReasonPropertyAdded,
		PropertyID: &property.ID,
		Area:       &area,
		Location:   property.Location,
	}
	if err := s.credit(tx, &row); err != nil {
		if database.IsUniqueViolation(err) {
			return alreadyAwarded(award), errAlreadyAwarded
		}
		return nil, err
	}

	if award.ReferralID != nil {
		if err := tx.Model(&models.Referral{}).Where("id = ?", ref.ID).Updates(map[string]interface{}{
			"total_points":     gorm.Expr("total_points + ?", points),
			"properties_added": gorm.Expr("properties_added + 1"),
			"total_area":       gorm.Expr("total_area + ?", area),
		}).Error; err != nil {
			return nil, err
		}
	}
	return award, nil
}

func alreadyAwarded(award *PropertyAward) *PropertyAward {
	award.Points = 0
	award.AlreadyAwarded = true
	award.Message = "Points already awarded for this property"
	return award
}

// LogAward records an award made through AwardProperty once its transaction committed
func (s *Service) LogAward(ctx context.Context, award *PropertyAward) {
	if award == nil || award.AlreadyAwarded {
		return
	}
	s.metrics.PointsAwarded(models.PointsReasonPropertyAdded, award.Points)
	logger.FromContext(ctx).Info("property points awarded",
		zap.String("property_id", award.PropertyID),
		zap.String("user_id", award.UserID),
		zap.Int64("points", award.Points))
}
