// Package properties implements the listing catalog: CRUD, viewing slots and
// appointments, favorites, moderation, counters and search.
package properties

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"realestate-platform/internal/referrals"
	"realestate-platform/internal/search"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	referrals *referrals.Service
	notify    *notify.Service
	engine    search.Engine
}

// NewService wires the catalog. engine may be nil when search is disabled.
func NewService(db *gorm.DB, r *referrals.Service, n *notify.Service, engine search.Engine) *Service {
	return &Service{db: db, referrals: r, notify: n, engine: engine}
}

// Input carries the writable listing fields. Nil fields are left unchanged on update.
type Input struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Type        *string          `json:"type"`
	Price       *decimal.Decimal `json:"price"`
	Area        *float64         `json:"area"`
	Location    *string          `json:"location"`
	Address     *string          `json:"address"`
	Bedrooms    *int             `json:"bedrooms"`
	Bathrooms   *int             `json:"bathrooms"`
	ImageURL    *string          `json:"imageUrl"`
	Status      *string          `json:"status"`
}

func (in Input) apply(p *models.Property) error {
	if in.Title != nil {
		p.Title = plainText(*in.Title)
	}
	if in.Description != nil {
		p.Description = plainText(*in.Description)
	}
	if in.Type != nil {
		p.Type = strings.ToLower(strings.TrimSpace(*in.Type))
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Area != nil {
		p.Area = *in.Area
	}
	if in.Location != nil {
		p.Location = strings.TrimSpace(*in.Location)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.Bedrooms != nil {
		p.Bedrooms = in.Bedrooms
	}
	if in.Bathrooms != nil {
		p.Bathrooms = in.Bathrooms
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.Status != nil {
		st, ok := models.ParsePropertyStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !ok {
			return apperror.Validation("Invalid property status")
		}
		p.Status = st
	}

	switch {
	case p.Title == "":
		return apperror.Validation("Title is required")
	case p.Location == "":
		return apperror.Validation("Location is required")
	case p.Price.IsNegative():
		return apperror.Validation("Price must not be negative")
	case p.Area < 0:
		return apperror.Validation("Area must not be negative")
	}
	return nil
}

// Created is a new listing with the points it earned its owner
type Created struct {
	Property *models.Property         `json:"property"`
	Points   *referrals.PropertyAward `json:"points"`
}

// Create stores a listing, awards the listing points and queues it for indexing
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*Created, error) {
	switch p.Role {
	case models.RoleSeller, models.RoleAgent, models.RoleAdmin:
	default:
		return nil, apperror.Forbidden("Only sellers and agents can list properties")
	}

	property := &models.Property{UserID: p.UserID, Status: models.PropertyStatusActive}
	if err := in.apply(property); err != nil {
		return nil, err
	}

	out := &Created{Property: property}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(property).Error; err != nil {
			return err
		}
		if err := BumpStats(tx, property.ID, 0, 0); err != nil {
			return err
		}
		if err := search.Enqueue(tx, property.ID, models.IndexActionUpsert); err != nil {
			return err
		}
		if err := saveChanges(tx, []models.PropertyChange{{
			PropertyID: property.ID,
			ChangedBy:  p.UserID,
			ChangeType: models.ChangeTypeNew,
			NewValue:   property.Title,
		}}); err != nil {
			return err
		}
		award, err := s.referrals.AwardProperty(tx, property)
		if err != nil {
			return err
		}
		out.Points = award
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.referrals.LogAward(ctx, out.Points)
	logger.FromContext(ctx).Info("property created",
		zap.String("property_id", property.ID),
		zap.String("owner_id", property.UserID))
	return out, nil
}

// Get returns a listing and counts the view. Unavailable listings are only
// visible to their owner and admins.
func (s *Service) Get(ctx context.Context, viewer *auth.Principal, id string) (*models.Property, error) {
	db := s.db.WithContext(ctx)
	property, err := load(db, id)
	if err != nil {
		return nil, err
	}
	if !property.IsAvailable() && !canManage(viewer, property) {
		return nil, apperror.NotFound("Property not found")
	}

	if err := BumpStats(db, id, 1, 0); err != nil {
		logger.FromContext(ctx).Warn("failed to count view", zap.String("property_id", id), zap.Error(err))
	}
	if err := db.Preload("Stats").Where("id = ?", id).First(property).Error; err != nil {
		return nil, err
	}
	return property, nil
}

// Update changes the given fields; owner or admin only
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in Input) (*models.Property, error) {
	var property *models.Property
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if property, err = load(tx, id); err != nil {
			return err
		}
		if !canManage(&p, property) {
			return apperror.Forbidden("Access denied")
		}
		before := *property
		if err := in.apply(property); err != nil {
			return err
		}
		if before.Status == models.PropertyStatusRejected && property.Status != before.Status && !p.IsAdmin() {
			return apperror.Forbidden("Rejected listings can only be reopened by an administrator")
		}
		if err := tx.Save(property).Error; err != nil {
			return err
		}
		if err := saveChanges(tx, detectChanges(&before, property, p.UserID)); err != nil {
			return err
		}
		return search.Enqueue(tx, id, models.IndexActionUpsert)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("property updated", zap.String("property_id", id))
	return property, nil
}

// Delete removes a listing that never attracted a lead, connection or
// transaction. Listings with history must be marked unavailable instead.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := load(tx, id)
		if err != nil {
			return err
		}
		if !canManage(&p, property) {
			return apperror.Forbidden("Access denied")
		}

		for _, model := range []interface{}{&models.PropertyLead{}, &models.BuyerAgentConnection{}, &models.Transaction{}, &models.ViewingRequest{}} {
			var n int64
			if err := tx.Model(model).Where("property_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return apperror.Conflict("Property has leads, viewings or transactions; mark it unavailable instead")
			}
		}

		if err := tx.Where("property_id = ?", id).Delete(&models.PropertyAvailability{}).Error; err != nil {
			return err
		}
		if err := tx.Where("property_id = ?", id).Delete(&models.PropertyStats{}).Error; err != nil {
			return err
		}
		if err := tx.Where("property_id = ?", id).Delete(&models.PropertyChange{}).Error; err != nil {
			return err
		}
		if err := tx.Where("property_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(property).Error; err != nil {
			return err
		}
		return search.Enqueue(tx, id, models.IndexActionDelete)
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("property deleted", zap.String("property_id", id), zap.String("by", p.UserID))
	return nil
}

func load(tx *gorm.DB, id string) (*models.Property, error) {
	var property models.Property
	if err := tx.Where("id = ?", id).First(&property).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Property not found")
		}
		return nil, err
	}
	return &property, nil
}

func canManage(p *auth.Principal, property *models.Property) bool {
	return p != nil && (p.IsAdmin() || p.UserID == property.UserID)
}
