package leads

import (
	"context"
	"fmt"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/config"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/messaging"
	"realestate-platform/internal/metrics"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"realestate-platform/internal/properties"
	"realestate-platform/internal/ratelimit"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	msgOwnProperty      = "Δεν μπορείτε να εκδηλώσετε ενδιαφέρον για ακίνητο που έχετε καταχωρήσει εσείς"
	msgConnectionExists = "Connection already exists"
)

// Service runs the buyer/agent connection workflow
type Service struct {
	db      *gorm.DB
	notify  *notify.Service
	otp     messaging.OTPSender
	cfg     config.OTPConfig
	metrics *metrics.Metrics

	sendLimiter   *ratelimit.Limiter
	verifyLimiter *ratelimit.Limiter
	now           func() time.Time
}

func NewService(db *gorm.DB, n *notify.Service, otp messaging.OTPSender, cfg config.OTPConfig, m *metrics.Metrics) *Service {
	return &Service{
		db:            db,
		notify:        n,
		otp:           otp,
		cfg:           cfg,
		metrics:       m,
		sendLimiter:   ratelimit.NewLimiter(cfg.SendsPerHour, time.Hour, true),
		verifyLimiter: ratelimit.NewLimiter(cfg.VerifyPerWindow, cfg.GetVerifyWindow(), true),
		now:           time.Now,
	}
}

// Limiters returns the OTP limiters so a background job can prune them
func (s *Service) Limiters() []*ratelimit.Limiter {
	return []*ratelimit.Limiter{s.sendLimiter, s.verifyLimiter}
}

// LimiterStats reports the OTP send and verify limiters
func (s *Service) LimiterStats() map[string]ratelimit.Stats {
	return map[string]ratelimit.Stats{
		"otp_send":   s.sendLimiter.GetStats(),
		"otp_verify": s.verifyLimiter.GetStats(),
	}
}

// Deal is what a confirmed connection produces
type Deal struct {
	Connection  *models.BuyerAgentConnection `json:"connection"`
	Lead        *models.PropertyLead         `json:"lead"`
	Transaction *models.Transaction          `json:"transaction"`
}

// DirectConnect connects the signed-in buyer with an agent for a property.
// No OTP is involved; the connection is CONFIRMED immediately.
func (s *Service) DirectConnect(ctx context.Context, buyerID, agentID, propertyID string) (*Deal, error) {
	if agentID == "" || propertyID == "" {
		return nil, apperror.Validation("agentId and propertyId are required")
	}

	var deal *Deal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := loadProperty(tx, propertyID)
		if err != nil {
			return err
		}
		if property.UserID == buyerID {
			return apperror.Validation(msgOwnProperty)
		}
		if _, err := loadAgent(tx, agentID); err != nil {
			return err
		}
		if err := ensureNoConnection(tx, buyerID, agentID, propertyID); err != nil {
			return err
		}

		conn := &models.BuyerAgentConnection{
			BuyerID:    buyerID,
			AgentID:    agentID,
			PropertyID: propertyID,
			Status:     models.ConnectionStatusConfirmed,
		}
		if err := tx.Create(conn).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.Validation(msgConnectionExists)
			}
			return err
		}

		deal, err = openDeal(tx, conn, property)
		if err != nil {
			return err
		}

		buyer, err := loadUser(tx, buyerID)
		if err != nil {
			return err
		}
		meta := dealMetadata(deal, buyer)
		return s.notify.CreateMany(tx,
			notify.Input{
				UserID:   property.UserID,
				Type:     models.NotificationTypePropertyInterest,
				Title:    "Νέο Ενδιαφέρον",
				Message:  fmt.Sprintf("Ο %s (%s) συνδέθηκε με μεσίτη και ενδιαφέρεται για το ακίνητό σας \"%s\".", buyer.Name, buyer.Email, property.Title),
				Metadata: with(meta, "recipient", "seller"),
			},
			notify.Input{
				UserID:   agentID,
				Type:     models.NotificationTypeAgentClientConnection,
				Title:    "Νέα Σύνδεση με Αγοραστή",
				Message:  fmt.Sprintf("Ο χρήστης %s αποδέχθηκε να συνδεθεί μαζί σας για το ακίνητο \"%s\".", buyer.Name, property.Title),
				Metadata: with(with(meta, "recipient", "agent"), "propertyTitle", property.Title),
			},
		)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("buyer connected with agent",
		zap.String("connection_id", deal.Connection.ID),
		zap.String("transaction_id", deal.Transaction.ID))
	return deal, nil
}

// openDeal creates the PENDING lead and transaction for a confirmed connection
// and counts the buyer as interested
func openDeal(tx *gorm.DB, conn *models.BuyerAgentConnection, property *models.Property) (*Deal, error) {
	agentID := conn.AgentID
	lead := &models.PropertyLead{
		PropertyID: conn.PropertyID,
		BuyerID:    conn.BuyerID,
		AgentID:    &agentID,
		Status:     models.LeadStatusPending,
	}
	if err := tx.Create(lead).Error; err != nil {
		return nil, err
	}

	leadID := lead.ID
	tr := &models.Transaction{
		PropertyID: conn.PropertyID,
		BuyerID:    conn.BuyerID,
		SellerID:   property.UserID,
		AgentID:    &agentID,
		LeadID:     &leadID,
		Stage:      models.StagePending,
	}
	if err := tx.Create(tr).Error; err != nil {
		return nil, err
	}

	lead.TransactionID = &tr.ID
	if err := tx.Model(lead).Update("transaction_id", tr.ID).Error; err != nil {
		return nil, err
	}
	if err := properties.BumpStats(tx, conn.PropertyID, 0, 1); err != nil {
		return nil, err
	}
	return &Deal{Connection: conn, Lead: lead, Transaction: tr}, nil
}

// ConnectionsFor lists the caller's active connections. Buyers see their own,
// agents the ones they are part of, admins everything.
func (s *Service) ConnectionsFor(ctx context.Context, p auth.Principal) ([]models.BuyerAgentConnection, error) {
	query := s.db.WithContext(ctx).
		Preload("Property").
		Preload("Agent").
		Preload("Buyer").
		Where("interest_cancelled = ?", false)

	switch {
	case p.IsAdmin():
	case p.Role == models.RoleAgent:
		query = query.Where("agent_id = ?", p.UserID)
	default:
		query = query.Where("buyer_id = ?", p.UserID)
	}

	var list []models.BuyerAgentConnection
	if err := query.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Check reports whether the buyer already has a connection with the agent
// for the property
func (s *Service) Check(ctx context.Context, buyerID, agentID, propertyID string) (*models.BuyerAgentConnection, error) {
	if agentID == "" || propertyID == "" {
		return nil, apperror.Validation("Missing required parameters")
	}
	var conn models.BuyerAgentConnection
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND agent_id = ? AND property_id = ?", buyerID, agentID, propertyID).
		First(&conn).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func loadProperty(tx *gorm.DB, id string) (*models.Property, error) {
	var p models.Property
	if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Property not found")
		}
		return nil, err
	}
	return &p, nil
}

func loadUser(tx *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, err
	}
	return &u, nil
}

func loadAgent(tx *gorm.DB, id string) (*models.User, error) {
	u, err := loadUser(tx, id)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.NotFound("Agent not found")
		}
		return nil, err
	}
	if u.Role != models.RoleAgent && u.Role != models.RoleAdmin {
		return nil, apperror.Validation("user %s is not an agent", id)
	}
	return u, nil
}

func ensureNoConnection(tx *gorm.DB, buyerID, agentID, propertyID string) error {
	var n int64
	err := tx.Model(&models.BuyerAgentConnection{}).
		Where("buyer_id = ? AND agent_id = ? AND property_id = ?", buyerID, agentID, propertyID).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return apperror.Validation(msgConnectionExists)
	}
	return nil
}

func dealMetadata(d *Deal, buyer *models.User) map[string]interface{} {
	return map[string]interface{}{
		"leadId":          d.Lead.ID,
		"transactionId":   d.Transaction.ID,
		"buyerId":         d.Connection.BuyerID,
		"agentId":         d.Connection.AgentID,
		"buyerName":       buyer.Name,
		"buyerEmail":      buyer.Email,
		"shouldOpenModal": true,
	}
}

// with returns a copy of m with key set
func with(m map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}
