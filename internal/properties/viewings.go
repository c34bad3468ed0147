package properties

import (
	"context"
	"fmt"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const errSlotTaken = "Selected time is not available"

// ViewingInput books a slot either by id or by date and start time
type ViewingInput struct {
	PropertyID string  `json:"propertyId"`
	SlotID     string  `json:"slotId"`
	Date       string  `json:"date"`
	StartTime  string  `json:"startTime"`
	AgentID    *string `json:"agentId"`
	Message    string  `json:"message"`
}

// ScheduleViewing books a free slot for the caller. The slot is held until the
// request is rejected or cancelled. The owner, the agent and every admin are
// notified in the same transaction.
func (s *Service) ScheduleViewing(ctx context.Context, p auth.Principal, in ViewingInput) (*models.ViewingRequest, error) {
	if strings.TrimSpace(in.PropertyID) == "" {
		return nil, apperror.Validation("propertyId is required")
	}
	if in.SlotID == "" && (in.Date == "" || in.StartTime == "") {
		return nil, apperror.Validation("slotId or date and startTime are required")
	}

	var viewing *models.ViewingRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := load(tx, in.PropertyID)
		if err != nil {
			return err
		}
		if !property.IsAvailable() {
			return apperror.NotFound("Property not found")
		}
		if property.UserID == p.UserID {
			return apperror.Validation("You cannot book a viewing of your own property")
		}

		var agentID *string
		if in.AgentID != nil && *in.AgentID != "" {
			var agent models.User
			if err := tx.Where("id = ? AND role = ?", *in.AgentID, models.RoleAgent).First(&agent).Error; err != nil {
				if database.IsNotFound(err) {
					return apperror.Validation("Invalid agent")
				}
				return err
			}
			agentID = &agent.ID
		}

		var open int64
		if err := tx.Model(&models.ViewingRequest{}).
			Where("property_id = ? AND buyer_id = ? AND status IN ?", property.ID, p.UserID,
				[]models.ViewingStatus{models.ViewingStatusPending, models.ViewingStatusAccepted}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperror.Conflict("You already have a viewing scheduled for this property")
		}

		slot, err := findSlot(tx, property.ID, in)
		if err != nil {
			return err
		}
		today := time.Now().UTC().Truncate(24 * time.Hour)
		if slot.IsBooked || slot.Date.Before(today) {
			return apperror.Validation(errSlotTaken)
		}
		// the guarded update keeps two concurrent bookings from sharing a slot
		res := tx.Model(&models.PropertyAvailability{}).
			Where("id = ? AND is_booked = ?", slot.ID, false).
			Update("is_booked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.Validation(errSlotTaken)
		}

		viewing = &models.ViewingRequest{
			PropertyID: property.ID,
			SlotID:     slot.ID,
			BuyerID:    p.UserID,
			AgentID:    agentID,
			Date:       slot.Date,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			Status:     models.ViewingStatusPending,
			Message:    plainText(in.Message),
		}
		if err := tx.Create(viewing).Error; err != nil {
			return err
		}

		n := notify.Input{
			Type:    models.NotificationTypeViewingRequest,
			Title:   "Νέο Αίτημα Επισκέψεως",
			Message: fmt.Sprintf("Έχετε λάβει νέο αίτημα επισκέψεως για το ακίνητο %s", property.Title),
			Metadata: map[string]interface{}{
				"viewingRequestId": viewing.ID,
				"propertyId":       property.ID,
				"date":             slot.Date.Format("2006-01-02"),
				"startTime":        slot.StartTime,
			},
		}
		owner := n
		owner.UserID = property.UserID
		inputs := []notify.Input{owner}
		if agentID != nil {
			agent := n
			agent.UserID = *agentID
			inputs = append(inputs, agent)
		}
		if err := s.notify.CreateMany(tx, inputs...); err != nil {
			return err
		}
		_, err = s.notify.NotifyAdmins(tx, n)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("viewing scheduled",
		zap.String("viewing_id", viewing.ID),
		zap.String("property_id", viewing.PropertyID),
		zap.String("buyer_id", viewing.BuyerID))
	return viewing, nil
}

func findSlot(tx *gorm.DB, propertyID string, in ViewingInput) (*models.PropertyAvailability, error) {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("property_id = ?", propertyID)
	if in.SlotID != "" {
		query = query.Where("id = ?", in.SlotID)
	} else {
		date, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			return nil, apperror.Validation("Invalid date, expected YYYY-MM-DD")
		}
		query = query.Where("date = ? AND start_time = ?", date, strings.TrimSpace(in.StartTime)).
			Order("is_booked ASC")
	}
	var slot models.PropertyAvailability
	if err := query.First(&slot).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.Validation(errSlotTaken)
		}
		return nil, err
	}
	return &slot, nil
}

// ViewingFilter narrows an appointment listing. Empty fields match everything.
type ViewingFilter struct {
	Status     string
	PropertyID string
	BuyerID    string
	SellerID   string
	Search     string // listing title or location
	Limit      int
	Offset     int
}

// MyViewings lists the requests the caller made or was named agent on
func (s *Service) MyViewings(ctx context.Context, p auth.Principal, f ViewingFilter) ([]models.ViewingRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ViewingRequest{}).
		Where("viewing_requests.buyer_id = ? OR viewing_requests.agent_id = ?", p.UserID, p.UserID)
	f.BuyerID, f.SellerID = "", ""
	return listViewings(query, f)
}

// SellerViewings lists the requests for the caller's own listings
func (s *Service) SellerViewings(ctx context.Context, p auth.Principal, f ViewingFilter) ([]models.ViewingRequest, int64, error) {
	f.SellerID = p.UserID
	return listViewings(s.db.WithContext(ctx).Model(&models.ViewingRequest{}), f)
}

// AllViewings lists every request; admin only
func (s *Service) AllViewings(ctx context.Context, p auth.Principal, f ViewingFilter) ([]models.ViewingRequest, int64, error) {
	if !p.IsAdmin() {
		return nil, 0, apperror.Forbidden("Admin access required")
	}
	return listViewings(s.db.WithContext(ctx).Model(&models.ViewingRequest{}), f)
}

func listViewings(query *gorm.DB, f ViewingFilter) ([]models.ViewingRequest, int64, error) {
	query = query.Joins("JOIN properties ON properties.id = viewing_requests.property_id")
	if f.Status != "" {
		st, ok := models.ParseViewingStatus(f.Status)
		if !ok {
			return nil, 0, apperror.Validation("Invalid viewing status")
		}
		query = query.Where("viewing_requests.status = ?", st)
	}
	if f.PropertyID != "" {
		query = query.Where("viewing_requests.property_id = ?", f.PropertyID)
	}
	if f.BuyerID != "" {
		query = query.Where("viewing_requests.buyer_id = ?", f.BuyerID)
	}
	if f.SellerID != "" {
		query = query.Where("properties.user_id = ?", f.SellerID)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(properties.title) LIKE ? OR LOWER(properties.location) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	viewings := []models.ViewingRequest{}
	if err := query.Select("viewing_requests.*").
		Preload("Property").Preload("Buyer").
		Order("viewing_requests.date DESC, viewing_requests.start_time DESC").
		Limit(limit).Offset(f.Offset).
		Find(&viewings).Error; err != nil {
		return nil, 0, err
	}
	return viewings, total, nil
}

// UpdateViewingStatus moves an open request on. The listing owner or an admin
// accepts or rejects; the buyer, the named agent or an admin cancels. Rejected
// and cancelled requests release their slot.
func (s *Service) UpdateViewingStatus(ctx context.Context, p auth.Principal, viewingID, status string) (*models.ViewingRequest, error) {
	target, ok := models.ParseViewingStatus(status)
	if !ok || target == models.ViewingStatusPending {
		return nil, apperror.Validation("Status must be ACCEPTED, REJECTED or CANCELLED")
	}

	var viewing models.ViewingRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", viewingID).First(&viewing).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("Viewing request not found")
			}
			return err
		}
		property, err := load(tx, viewing.PropertyID)
		if err != nil {
			return err
		}

		switch target {
		case models.ViewingStatusAccepted, models.ViewingStatusRejected:
			if !canManage(&p, property) {
				return apperror.Forbidden("Only the listing owner can answer a viewing request")
			}
		case models.ViewingStatusCancelled:
			isAgent := viewing.AgentID != nil && *viewing.AgentID == p.UserID
			if !p.IsAdmin() && viewing.BuyerID != p.UserID && !isAgent {
				return apperror.Forbidden("Access denied")
			}
		}
		if !viewing.Status.Open() {
			return apperror.Conflict("Viewing request is already %s", strings.ToLower(string(viewing.Status)))
		}
		if viewing.Status == target {
			return apperror.Conflict("Viewing request is already %s", strings.ToLower(string(target)))
		}

		viewing.Status = target
		if err := tx.Model(&viewing).Update("status", target).Error; err != nil {
			return err
		}
		if !target.Open() {
			if err := tx.Model(&models.PropertyAvailability{}).
				Where("id = ?", viewing.SlotID).
				Update("is_booked", false).Error; err != nil {
				return err
			}
		}
		return s.notifyViewingStatus(tx, &viewing, property)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("viewing status updated",
		zap.String("viewing_id", viewing.ID),
		zap.String("status", string(viewing.Status)),
		zap.String("by", p.UserID))
	return &viewing, nil
}

func (s *Service) notifyViewingStatus(tx *gorm.DB, v *models.ViewingRequest, property *models.Property) error {
	var owner models.User
	if err := tx.Select("id", "name").Where("id = ?", property.UserID).First(&owner).Error; err != nil {
		return err
	}
	date := v.Date.Format("02/01/2006")
	meta := map[string]interface{}{
		"viewingRequestId": v.ID,
		"propertyId":       property.ID,
		"status":           string(v.Status),
	}

	var inputs []notify.Input
	switch v.Status {
	case models.ViewingStatusAccepted:
		inputs = append(inputs, notify.Input{
			UserID:   v.BuyerID,
			Type:     models.NotificationTypeAppointmentAccepted,
			Title:    "Ραντεβού Επιβεβαιώθηκε",
			Message:  fmt.Sprintf("Το ραντεβού σας επιβεβαιώθηκε για τις %s από τον %s. Παρακαλώ εμφανιστείτε στην ώρα που συμφωνήσατε.", date, owner.Name),
			Metadata: meta,
		})
	case models.ViewingStatusRejected:
		inputs = append(inputs, notify.Input{
			UserID:   v.BuyerID,
			Type:     models.NotificationTypeAppointmentRejected,
			Title:    "Ραντεβού Απορρίφθηκε",
			Message:  fmt.Sprintf("Η ημερομηνία %s δεν εγκρίθηκε από τον %s. Παρακαλώ προγραμματίστε νέα ημερομηνία.", date, owner.Name),
			Metadata: meta,
		})
	case models.ViewingStatusCancelled:
		inputs = append(inputs, notify.Input{
			UserID:   property.UserID,
			Type:     models.NotificationTypeAppointmentCancelled,
			Title:    "Ραντεβού Ακυρώθηκε",
			Message:  fmt.Sprintf("Το ραντεβού της %s για το ακίνητο %s ακυρώθηκε.", date, property.Title),
			Metadata: meta,
		})
	}
	if v.AgentID != nil && len(inputs) > 0 {
		agent := inputs[0]
		agent.UserID = *v.AgentID
		inputs = append(inputs, agent)
	}
	return s.notify.CreateMany(tx, inputs...)
}
