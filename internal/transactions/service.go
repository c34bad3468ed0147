package transactions

import (
	"context"
	"fmt"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/metrics"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service tracks the stage of deals and their progress log
type Service struct {
	db      *gorm.DB
	notify  *notify.Service
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, n *notify.Service, m *metrics.Metrics) *Service {
	return &Service{db: db, notify: n, metrics: m}
}

// StageMessage is the text buyers and sellers receive when a deal reaches s
func StageMessage(s models.Stage) string {
	switch s {
	case models.StageMeetingScheduled:
		return "Το ραντεβού επιβεβαιώθηκε για την προβολή του ακινήτου."
	case models.StageDepositPaid:
		return "Η προκαταβολή έχει καταχωρηθεί επιτυχώς."
	case models.StageFinalSigning:
		return "Όλα είναι έτοιμα για την τελική υπογραφή."
	case models.StageCompleted:
		return "Η συναλλαγή ολοκληρώθηκε με επιτυχία!"
	case models.StageCancelled:
		return "Η διαδικασία έχει ακυρωθεί."
	default:
		return "Η συναλλαγή βρίσκεται σε αναμονή για ραντεβού."
	}
}

const (
	partyStageTitle = "Ενημέρωση Συναλλαγής"
	agentStageTitle = "Ενημέρωση Στάδιου Συναλλαγής"
)

// UpdateStage moves a deal to a new stage. id is a transaction id; a lead id
// or a connection id is accepted too, creating the transaction when the lead
// has none yet. The stage change, its progress entry and the notifications
// are written in one database transaction.
func (s *Service) UpdateStage(ctx context.Context, id, rawStage, actorID string) (*models.Transaction, error) {
	stage, ok := models.ParseStage(rawStage)
	if !ok {
		return nil, apperror.Validation("Invalid transaction stage. Must be one of: %s", stageList())
	}

	var tr *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tr, err = resolve(tx, id, stage)
		if err != nil {
			return err
		}

		tr.SetStage(stage)
		if err := tx.Model(tr).Updates(map[string]interface{}{
			"stage":  tr.Stage,
			"status": tr.Status,
		}).Error; err != nil {
			return err
		}

		if err := AppendProgress(tx, tr.ID, stage, fmt.Sprintf("Stage updated to %s", stage), actorID); err != nil {
			return err
		}

		return s.notifyStage(tx, tr)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StageTransition(string(stage))
	logger.FromContext(ctx).Info("transaction stage updated",
		zap.String("transaction_id", tr.ID),
		zap.String("stage", string(stage)),
		zap.String("actor", actorID))
	return tr, nil
}

// resolve finds the transaction behind id, falling back to a lead and then a
// connection with that id
func resolve(tx *gorm.DB, id string, stage models.Stage) (*models.Transaction, error) {
	var tr models.Transaction
	err := tx.Where("id = ?", id).First(&tr).Error
	if err == nil {
		return &tr, nil
	}
	if !database.IsNotFound(err) {
		return nil, err
	}

	var lead models.PropertyLead
	err = tx.Where("id = ?", id).First(&lead).Error
	if err == nil {
		if lead.TransactionID != nil {
			if err := tx.Where("id = ?", *lead.TransactionID).First(&tr).Error; err == nil {
				return &tr, nil
			} else if !database.IsNotFound(err) {
				return nil, err
			}
		}
		created, err := createFor(tx, lead.PropertyID, lead.BuyerID, lead.AgentID, &lead.ID, stage)
		if err != nil {
			return nil, err
		}
		if err := tx.Model(&lead).Update("transaction_id", created.ID).Error; err != nil {
			return nil, err
		}
		return created, nil
	}
	if !database.IsNotFound(err) {
		return nil, err
	}

	var conn models.BuyerAgentConnection
	err = tx.Where("id = ?", id).First(&conn).Error
	if err == nil {
		existing, err := findDeal(tx, conn.PropertyID, conn.BuyerID, conn.AgentID)
		if err != nil || existing != nil {
			return existing, err
		}
		agentID := conn.AgentID
		return createFor(tx, conn.PropertyID, conn.BuyerID, &agentID, nil, stage)
	}
	if !database.IsNotFound(err) {
		return nil, err
	}
	return nil, apperror.NotFound("Transaction not found")
}

// findDeal returns the latest transaction for a buyer, agent and property, or nil
func findDeal(tx *gorm.DB, propertyID, buyerID, agentID string) (*models.Transaction, error) {
	var tr models.Transaction
	err := tx.Where("property_id = ? AND buyer_id = ? AND agent_id = ?", propertyID, buyerID, agentID).
		Order("created_at DESC").
		First(&tr).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func createFor(tx *gorm.DB, propertyID, buyerID string, agentID, leadID *string, stage models.Stage) (*models.Transaction, error) {
	var property models.Property
	if err := tx.Select("id", "user_id").Where("id = ?", propertyID).First(&property).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Property not found")
		}
		return nil, err
	}
	tr := &models.Transaction{
		PropertyID: propertyID,
		BuyerID:    buyerID,
		SellerID:   property.UserID,
		AgentID:    agentID,
		LeadID:     leadID,
		Stage:      stage,
	}
	if err := tx.Create(tr).Error; err != nil {
		return nil, err
	}
	return tr, nil
}

// AppendProgress writes one progress log entry
func AppendProgress(tx *gorm.DB, transactionID string, stage models.Stage, notes, actorID string) error {
	p := &models.TransactionProgress{
		TransactionID: transactionID,
		Stage:         stage,
		Notes:         notes,
	}
	if actorID != "" {
		p.CreatedBy = &actorID
	}
	return tx.Create(p).Error
}

func (s *Service) notifyStage(tx *gorm.DB, tr *models.Transaction) error {
	metadata := map[string]interface{}{
		"transactionId":   tr.ID,
		"stage":           string(tr.Stage),
		"shouldOpenModal": true,
	}
	if tr.LeadID != nil {
		metadata["leadId"] = *tr.LeadID
	}

	inputs := []notify.Input{
		{UserID: tr.BuyerID, Type: models.NotificationTypeStageUpdate, Title: partyStageTitle, Message: StageMessage(tr.Stage), Metadata: metadata},
		{UserID: tr.SellerID, Type: models.NotificationTypeStageUpdate, Title: partyStageTitle, Message: StageMessage(tr.Stage), Metadata: metadata},
	}

	if tr.AgentID != nil && *tr.AgentID != "" {
		buyerName := "Άγνωστος ενδιαφερόμενος"
		propertyTitle := "Άγνωστο ακίνητο"

		var buyer models.User
		if err := tx.Select("name").Where("id = ?", tr.BuyerID).First(&buyer).Error; err == nil && buyer.Name != "" {
			buyerName = buyer.Name
		}
		var property models.Property
		if err := tx.Select("title").Where("id = ?", tr.PropertyID).First(&property).Error; err == nil && property.Title != "" {
			propertyTitle = property.Title
		}

		inputs = append(inputs, notify.Input{
			UserID: *tr.AgentID,
			Type:   models.NotificationTypeAgentStageUpdate,
			Title:  agentStageTitle,
			Message: fmt.Sprintf("Η συναλλαγή με τον %s για το ακίνητο \"%s\" ενημερώθηκε σε: %s",
				buyerName, propertyTitle, tr.Stage.Label()),
			Metadata: map[string]interface{}{
				"transactionId": tr.ID,
				"stage":         string(tr.Stage),
				"stageInGreek":  tr.Stage.Label(),
				"buyerId":       tr.BuyerID,
				"buyerName":     buyerName,
				"propertyTitle": propertyTitle,
				"recipient":     "agent",
			},
		})
	}

	return s.notify.CreateMany(tx, inputs...)
}

// Get returns a transaction visible to p with its progress log
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*models.Transaction, error) {
	var tr models.Transaction
	err := s.db.WithContext(ctx).
		Preload("Progress", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).First(&tr).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Transaction not found")
		}
		return nil, err
	}
	if !p.IsAdmin() && !tr.HasParty(p.UserID) {
		return nil, apperror.Forbidden("Forbidden")
	}
	return &tr, nil
}

// Progress returns the stage history of a transaction in order
func (s *Service) Progress(ctx context.Context, p auth.Principal, id string) ([]models.TransactionProgress, error) {
	tr, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return tr.Progress, nil
}

// ListFilter narrows List
type ListFilter struct {
	Stage  string
	Status string
	UserID string
	Limit  int
	Offset int
}

// List returns transactions for the admin view, newest first
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{})
	if f.Stage != "" {
		stage, ok := models.ParseStage(f.Stage)
		if !ok {
			return nil, 0, apperror.Validation("invalid stage filter")
		}
		query = query.Where("stage = ?", stage)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.UserID != "" {
		query = query.Where("buyer_id = ? OR seller_id = ? OR agent_id = ?", f.UserID, f.UserID, f.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var list []models.Transaction
	if err := query.Order("updated_at DESC").Limit(limit).Offset(f.Offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func stageList() string {
	out := ""
	for i, s := range models.Stages {
		if i > 0 {
			out += ", "
		}
		out += string(s)
	}
	return out
}
