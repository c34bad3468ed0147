package leads

import (
	"context"
	"fmt"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"realestate-platform/internal/transactions"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	msgNoActiveInterest    = "Δεν βρέθηκε ενεργό ενδιαφέρον για αυτό το ακίνητο"
	msgNoCancelledInterest = "Δεν βρέθηκε ακυρωμένο ενδιαφέρον για επαναφορά"
	noteCancelledByBuyer   = "Η συναλλαγή ακυρώθηκε από τον αγοραστή"
	noteRestoredByBuyer    = "Το ενδιαφέρον επαναφέρθηκε από τον αγοραστή"
	titleCancelled         = "Ακύρωση Ενδιαφέροντος"
	titleRestored          = "Επαναφορά Ενδιαφέροντος"
)

// InterestChange summarises what a cancel or restore touched
type InterestChange struct {
	PropertyID   string   `json:"propertyId"`
	Leads        int64    `json:"leads"`
	Connections  int64    `json:"connections"`
	Transactions []string `json:"transactionIds"`
}

// CancelInterest withdraws the buyer's interest in a property: its leads,
// connections and open transactions are flagged and the transactions move
// to CANCELLED.
func (s *Service) CancelInterest(ctx context.Context, buyerID, propertyID string) (*InterestChange, error) {
	change := &InterestChange{PropertyID: propertyID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var leads []models.PropertyLead
		if err := tx.Preload("Property").
			Where("property_id = ? AND buyer_id = ? AND interest_cancelled = ?", propertyID, buyerID, false).
			Find(&leads).Error; err != nil {
			return err
		}
		if len(leads) == 0 {
			return apperror.NotFound(msgNoActiveInterest)
		}

		result := tx.Model(&models.PropertyLead{}).
			Where("property_id = ? AND buyer_id = ? AND interest_cancelled = ?", propertyID, buyerID, false).
			Updates(map[string]interface{}{"interest_cancelled": true, "status": models.LeadStatusCancelled})
		if result.Error != nil {
			return result.Error
		}
		change.Leads = result.RowsAffected

		result = tx.Model(&models.BuyerAgentConnection{}).
			Where("property_id = ? AND buyer_id = ? AND interest_cancelled = ?", propertyID, buyerID, false).
			Update("interest_cancelled", true)
		if result.Error != nil {
			return result.Error
		}
		change.Connections = result.RowsAffected

		var open []models.Transaction
		if err := tx.Where("property_id = ? AND buyer_id = ? AND status <> ?", propertyID, buyerID, models.TransactionStatusCancelled).
			Find(&open).Error; err != nil {
			return err
		}

		buyer, err := loadUser(tx, buyerID)
		if err != nil {
			return err
		}
		title := propertyTitle(leads[0].Property)

		var inputs []notify.Input
		for i := range open {
			tr := &open[i]
			tr.SetStage(models.StageCancelled)
			tr.InterestCancelled = true
			if err := tx.Model(tr).Updates(map[string]interface{}{
				"stage":              tr.Stage,
				"status":             tr.Status,
				"interest_cancelled": true,
			}).Error; err != nil {
				return err
			}
			if err := transactions.AppendProgress(tx, tr.ID, models.StageCancelled, noteCancelledByBuyer, buyerID); err != nil {
				return err
			}
			change.Transactions = append(change.Transactions, tr.ID)

			if tr.AgentID != nil {
				inputs = append(inputs, notify.Input{
					UserID:  *tr.AgentID,
					Type:    models.NotificationTypeCancelled,
					Title:   titleCancelled,
					Message: fmt.Sprintf("Ο αγοραστής %s ακύρωσε το ενδιαφέρον του για το ακίνητο \"%s\"", buyer.Name, title),
					Metadata: map[string]interface{}{
						"leadId":          derefOr(tr.LeadID, leads[0].ID),
						"transactionId":   tr.ID,
						"shouldOpenModal": false,
					},
				})
			}
		}

		inputs = append(inputs, notify.Input{
			UserID:  buyerID,
			Type:    models.NotificationTypeCancelled,
			Title:   titleCancelled,
			Message: fmt.Sprintf("Το ενδιαφέρον σας για το ακίνητο \"%s\" ακυρώθηκε επιτυχώς.", title),
			Metadata: map[string]interface{}{
				"leadId":          leads[0].ID,
				"propertyId":      propertyID,
				"shouldOpenModal": false,
			},
		})
		return s.notify.CreateMany(tx, inputs...)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("interest cancelled",
		zap.String("buyer_id", buyerID),
		zap.String("property_id", propertyID),
		zap.Strings("transaction_ids", change.Transactions))
	return change, nil
}

// RestoreInterest reverses CancelInterest: flags are cleared, leads return to
// PENDING and the cancelled transactions restart at the PENDING stage
func (s *Service) RestoreInterest(ctx context.Context, buyerID, propertyID string) (*InterestChange, error) {
	change := &InterestChange{PropertyID: propertyID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PropertyLead{}).
			Where("property_id = ? AND buyer_id = ? AND interest_cancelled = ?", propertyID, buyerID, true).
			Updates(map[string]interface{}{"interest_cancelled": false, "status": models.LeadStatusPending})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperror.NotFound(msgNoCancelledInterest)
		}
		change.Leads = result.RowsAffected

		result = tx.Model(&models.BuyerAgentConnection{}).
			Where("property_id = ? AND buyer_id = ? AND interest_cancelled = ?", propertyID, buyerID, true).
			Update("interest_cancelled", false)
		if result.Error != nil {
			return result.Error
		}
		change.Connections = result.RowsAffected

		var cancelled []models.Transaction
		if err := tx.Where("property_id = ? AND buyer_id = ? AND interest_cancelled = ?", propertyID, buyerID, true).
			Find(&cancelled).Error; err != nil {
			return err
		}

		var property models.Property
		if err := tx.Select("title").Where("id = ?", propertyID).First(&property).Error; err != nil {
			return err
		}
		buyer, err := loadUser(tx, buyerID)
		if err != nil {
			return err
		}

		var inputs []notify.Input
		for i := range cancelled {
			tr := &cancelled[i]
			tr.SetStage(models.StagePending)
			tr.InterestCancelled = false
			if err := tx.Model(tr).Updates(map[string]interface{}{
				"stage":              tr.Stage,
				"status":             tr.Status,
				"interest_cancelled": false,
			}).Error; err != nil {
				return err
			}
			if err := transactions.AppendProgress(tx, tr.ID, models.StagePending, noteRestoredByBuyer, buyerID); err != nil {
				return err
			}
			change.Transactions = append(change.Transactions, tr.ID)

			if tr.AgentID != nil {
				inputs = append(inputs, notify.Input{
					UserID:  *tr.AgentID,
					Type:    models.NotificationTypeRestored,
					Title:   titleRestored,
					Message: fmt.Sprintf("Ο αγοραστής %s επανέφερε το ενδιαφέρον του για το ακίνητο \"%s\"", buyer.Name, property.Title),
					Metadata: map[string]interface{}{
						"transactionId":   tr.ID,
						"shouldOpenModal": false,
					},
				})
			}
		}
		return s.notify.CreateMany(tx, inputs...)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("interest restored",
		zap.String("buyer_id", buyerID),
		zap.String("property_id", propertyID))
	return change, nil
}

// InterestedProperties lists the buyer's leads with their properties
func (s *Service) InterestedProperties(ctx context.Context, buyerID string, includeCancelled bool) ([]models.PropertyLead, error) {
	query := s.db.WithContext(ctx).Preload("Property").Where("buyer_id = ?", buyerID)
	if !includeCancelled {
		query = query.Where("interest_cancelled = ?", false)
	}
	var leads []models.PropertyLead
	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func propertyTitle(p *models.Property) string {
	if p == nil || p.Title == "" {
		return "Άγνωστο ακίνητο"
	}
	return p.Title
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
