package properties

import (
	"context"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/search"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListResult is one page of listings
type ListResult struct {
	Properties []models.Property `json:"properties"`
	Total      int64             `json:"total"`
	Source     string            `json:"source,omitempty"` // search engine or database
}

// List returns listings matching the filters, newest first. Hidden
// listings appear only to their owner and admins.
func (s *Service) List(ctx context.Context, viewer *auth.Principal, f search.FilterParams, ownerID string) (*ListResult, error) {
	query := filtered(s.db.WithContext(ctx).Model(&models.Property{}), f)
	if ownerID != "" {
		query = query.Where("user_id = ?", ownerID)
	}
	query = visible(query, viewer)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	limit, offset := page(f)
	properties := []models.Property{}
	if err := query.Preload("Stats").
		Order(orderClause(f.SortBy)).
		Limit(limit).Offset(offset).
		Find(&properties).Error; err != nil {
		return nil, err
	}
	return &ListResult{Properties: properties, Total: total, Source: "database"}, nil
}

// Search runs a full-text query through the search engine and falls back to
// SQL LIKE matching when the engine is disabled or failing
func (s *Service) Search(ctx context.Context, viewer *auth.Principal, f search.FilterParams) (*ListResult, error) {
	if s.engine != nil {
		res, err := s.engine.Search(f.Request())
		if err == nil {
			properties, err := s.byIDs(ctx, viewer, res.IDs())
			if err != nil {
				return nil, err
			}
			return &ListResult{Properties: properties, Total: res.TotalHits, Source: "search"}, nil
		}
		logger.FromContext(ctx).Warn("search engine failed, using database", zap.Error(err))
	}

	query := filtered(s.db.WithContext(ctx).Model(&models.Property{}), f)
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ? OR LOWER(description) LIKE ? OR LOWER(address) LIKE ?",
			like, like, like, like)
	}
	query = visible(query, viewer)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	limit, offset := page(f)
	properties := []models.Property{}
	if err := query.Preload("Stats").
		Order(orderClause(f.SortBy)).
		Limit(limit).Offset(offset).
		Find(&properties).Error; err != nil {
		return nil, err
	}
	return &ListResult{Properties: properties, Total: total, Source: "database"}, nil
}

// byIDs loads listings keeping the engine's relevance order
func (s *Service) byIDs(ctx context.Context, viewer *auth.Principal, ids []string) ([]models.Property, error) {
	properties := []models.Property{}
	if len(ids) == 0 {
		return properties, nil
	}
	var found []models.Property
	query := visible(s.db.WithContext(ctx).Preload("Stats").Where("id IN ?", ids), viewer)
	if err := query.Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Property, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			properties = append(properties, p)
		}
	}
	return properties, nil
}

func filtered(query *gorm.DB, f search.FilterParams) *gorm.DB {
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinArea != nil {
		query = query.Where("area >= ?", *f.MinArea)
	}
	if f.MaxArea != nil {
		query = query.Where("area <= ?", *f.MaxArea)
	}
	if f.Bedrooms != nil {
		query = query.Where("bedrooms >= ?", *f.Bedrooms)
	}
	if len(f.Types) > 0 {
		query = query.Where("type IN ?", f.Types)
	}
	if f.Location != "" {
		query = query.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(f.Location)+"%")
	}
	if f.Status != "" {
		query = query.Where("status = ?", strings.ToLower(f.Status))
	}
	return query
}

func visible(query *gorm.DB, viewer *auth.Principal) *gorm.DB {
	switch {
	case viewer != nil && viewer.IsAdmin():
		return query
	case viewer != nil:
		return query.Where("status NOT IN ? OR user_id = ?", models.HiddenStatuses, viewer.UserID)
	default:
		return query.Where("status NOT IN ?", models.HiddenStatuses)
	}
}

func page(f search.FilterParams) (limit, offset int) {
	limit, offset = int(f.Limit), int(f.Offset)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func orderClause(sortBy string) string {
	switch sortBy {
	case "price", "area", "created_at":
		return sortBy + " ASC"
	case "-price", "-area", "-created_at":
		return sortBy[1:] + " DESC"
	}
	return "created_at DESC"
}
