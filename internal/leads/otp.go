package leads

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/messaging"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntroduceRequest is an agent adding an interested buyer to a property
type IntroduceRequest struct {
	AgentID    string `json:"agentId"`
	PropertyID string `json:"propertyId"`
	BuyerName  string `json:"buyerName"`
	BuyerEmail string `json:"buyerEmail"`
	BuyerPhone string `json:"buyerPhone"`
	OTPMethod  string `json:"otpMethod"`
}

// Challenge is returned while a connection waits for its OTP
type Challenge struct {
	ConnectionID string `json:"connectionId"`
	BuyerID      string `json:"buyerId"`
	AgentID      string `json:"agentId"`
	PropertyID   string `json:"propertyId"`
	Channel      string `json:"otpMethod"`
	OTPSent      bool   `json:"otpSent"`
	// SendsRemaining is how many more codes the buyer may receive this hour
	SendsRemaining int `json:"sendsRemaining"`
}

// Introduce records a PENDING connection for a buyer named by an agent and
// sends the buyer a one-time code. The buyer account is created as a
// placeholder when the e-mail is unknown.
func (s *Service) Introduce(ctx context.Context, p auth.Principal, req IntroduceRequest) (*Challenge, error) {
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" && p.Role == models.RoleAgent {
		agentID = p.UserID
	}
	email := models.NormalizeEmail(req.BuyerEmail)
	name := strings.TrimSpace(req.BuyerName)
	phone := normalizePhone(req.BuyerPhone)
	if agentID == "" || req.PropertyID == "" || name == "" || email == "" {
		return nil, apperror.Validation("Missing required fields for new lead")
	}
	if !p.IsAdmin() && agentID != p.UserID {
		return nil, apperror.Forbidden("agents can only introduce buyers for themselves")
	}
	channel := messaging.ParseChannel(req.OTPMethod)
	if channel == messaging.ChannelSMS && phone == "" {
		return nil, apperror.Validation("buyerPhone is required for SMS delivery")
	}

	code, err := messaging.GenerateCode(s.cfg.Length)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	expires := s.now().Add(s.cfg.GetTTL())

	var conn *models.BuyerAgentConnection
	var buyer *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := loadProperty(tx, req.PropertyID)
		if err != nil {
			return err
		}
		if _, err := loadAgent(tx, agentID); err != nil {
			return err
		}

		buyer, err = findOrCreateBuyer(tx, name, email, phone)
		if err != nil {
			return err
		}
		if property.UserID == buyer.ID {
			return apperror.Validation(msgOwnProperty)
		}
		if err := ensureNoConnection(tx, buyer.ID, agentID, property.ID); err != nil {
			return err
		}
		// only introductions that passed validation count against the quota
		if !s.sendLimiter.Allow(email) {
			return apperror.TooManyRequests("Too many OTP requests, try again later")
		}

		conn = &models.BuyerAgentConnection{
			BuyerID:      buyer.ID,
			AgentID:      agentID,
			PropertyID:   property.ID,
			Status:       models.ConnectionStatusPending,
			OTPCode:      &code,
			OTPExpiresAt: &expires,
		}
		if err := tx.Create(conn).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.Validation(msgConnectionExists)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	challenge := &Challenge{
		ConnectionID: conn.ID,
		BuyerID:      buyer.ID,
		AgentID:      agentID,
		PropertyID:   conn.PropertyID,
		Channel:      string(channel),
	}
	challenge.SendsRemaining = s.sendLimiter.Remaining(email)
	challenge.OTPSent = s.deliver(ctx, channel, messaging.Recipient{Name: buyer.Name, Email: buyer.Email, Phone: phone}, code, conn.ID)
	return challenge, nil
}

// ResendOTP issues a fresh code for a PENDING connection
func (s *Service) ResendOTP(ctx context.Context, p auth.Principal, connectionID, method string) (*Challenge, error) {
	channel := messaging.ParseChannel(method)

	code, err := messaging.GenerateCode(s.cfg.Length)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	expires := s.now().Add(s.cfg.GetTTL())

	var conn models.BuyerAgentConnection
	var buyer *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", connectionID).First(&conn).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("Connection not found")
			}
			return err
		}
		if !p.IsAdmin() && conn.AgentID != p.UserID {
			return apperror.Forbidden("Forbidden")
		}
		if conn.Status != models.ConnectionStatusPending {
			return apperror.Validation("Connection is already confirmed")
		}

		buyer, err = loadUser(tx, conn.BuyerID)
		if err != nil {
			return err
		}
		if channel == messaging.ChannelSMS && buyer.Phone == "" {
			return apperror.Validation("buyer has no phone number for SMS delivery")
		}
		if !s.sendLimiter.Allow(buyer.Email) {
			return apperror.TooManyRequests("Too many OTP requests, try again later")
		}

		return tx.Model(&conn).Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_expires_at": expires,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.verifyLimiter.Reset(conn.ID)
	return &Challenge{
		ConnectionID: conn.ID,
		BuyerID:      conn.BuyerID,
		AgentID:      conn.AgentID,
		PropertyID:   conn.PropertyID,
		Channel:      string(channel),
		OTPSent:      s.deliver(ctx, channel, messaging.Recipient{Name: buyer.Name, Email: buyer.Email, Phone: buyer.Phone}, code, conn.ID),

		SendsRemaining: s.sendLimiter.Remaining(buyer.Email),
	}, nil
}

// deliver sends the code after the connection is committed. A failed send
// leaves the connection PENDING so the agent can ask for a resend.
func (s *Service) deliver(ctx context.Context, channel messaging.Channel, to messaging.Recipient, code, connectionID string) bool {
	if s.otp == nil {
		return false
	}
	if err := s.otp.SendOTP(ctx, channel, to, code, s.cfg.GetTTL()); err != nil {
		logger.FromContext(ctx).Warn("OTP not delivered",
			zap.String("connection_id", connectionID),
			zap.String("channel", string(channel)),
			zap.Error(err))
		return false
	}
	return true
}

func findOrCreateBuyer(tx *gorm.DB, name, email, phone string) (*models.User, error) {
	var u models.User
	err := tx.Where("email = ?", email).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !database.IsNotFound(err) {
		return nil, err
	}

	u = models.User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: "!",
		Role:         models.RoleBuyer,
		Placeholder:  true,
	}
	if err := tx.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// VerifyRequest identifies the connection whose code is being checked
type VerifyRequest struct {
	BuyerID    string `json:"buyerId"`
	AgentID    string `json:"agentId"`
	PropertyID string `json:"propertyId"`
	OTPCode    string `json:"otpCode"`
}

// VerifyOTP confirms a PENDING connection with its one-time code. The
// confirmation, lead, transaction, stats and notifications are written in
// one database transaction.
func (s *Service) VerifyOTP(ctx context.Context, p auth.Principal, req VerifyRequest) (*Deal, error) {
	if req.BuyerID == "" || req.AgentID == "" || req.PropertyID == "" || req.OTPCode == "" {
		return nil, apperror.Validation("buyerId, agentId, propertyId and otpCode are required")
	}
	if !p.IsAdmin() && p.UserID != req.BuyerID && p.UserID != req.AgentID {
		return nil, apperror.Forbidden("Forbidden")
	}

	var conn models.BuyerAgentConnection
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND agent_id = ? AND property_id = ?", req.BuyerID, req.AgentID, req.PropertyID).
		First(&conn).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Connection not found")
		}
		return nil, err
	}

	if !s.verifyLimiter.Allow(conn.ID) {
		s.metrics.OTPVerification("rate_limited")
		return nil, apperror.TooManyRequests("Too many verification attempts, try again later")
	}

	var deal *Deal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// re-read under lock so two verifications cannot both confirm
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", conn.ID).First(&conn).Error; err != nil {
			return err
		}
		if conn.Status != models.ConnectionStatusPending || conn.OTPExpired(s.now()) {
			return errOTPExpired
		}
		if conn.OTPCode == nil || subtle.ConstantTimeCompare([]byte(*conn.OTPCode), []byte(strings.TrimSpace(req.OTPCode))) != 1 {
			return errOTPInvalid
		}

		conn.Status = models.ConnectionStatusConfirmed
		conn.OTPCode = nil
		conn.OTPExpiresAt = nil
		if err := tx.Model(&conn).Updates(map[string]interface{}{
			"status":         conn.Status,
			"otp_code":       nil,
			"otp_expires_at": nil,
		}).Error; err != nil {
			return err
		}

		property, err := loadProperty(tx, conn.PropertyID)
		if err != nil {
			return err
		}
		deal, err = openDeal(tx, &conn, property)
		if err != nil {
			return err
		}
		buyer, err := loadUser(tx, conn.BuyerID)
		if err != nil {
			return err
		}

		meta := dealMetadata(deal, buyer)
		return s.notify.CreateMany(tx,
			notify.Input{
				UserID:   property.UserID,
				Type:     models.NotificationTypePropertyInterest,
				Title:    "Νέο Ενδιαφέρον",
				Message:  fmt.Sprintf("Ο μεσίτης πρόσθεσε τον %s (%s) ως ενδιαφερόμενο για το ακίνητό σας \"%s\".", buyer.Name, buyer.Email, property.Title),
				Metadata: with(meta, "recipient", "seller"),
			},
			notify.Input{
				UserID:   conn.AgentID,
				Type:     models.NotificationTypeAgentLeadAdded,
				Title:    "Επιτυχημένη Προσθήκη Ενδιαφερόμενου",
				Message:  fmt.Sprintf("Προσθέσατε επιτυχώς τον %s (%s) ως ενδιαφερόμενο για το ακίνητο \"%s\".", buyer.Name, buyer.Email, property.Title),
				Metadata: with(with(meta, "recipient", "agent"), "propertyTitle", property.Title),
			},
			notify.Input{
				UserID:  conn.BuyerID,
				Type:    models.NotificationTypeInterested,
				Title:   "Επιτυχής Σύνδεση με Μεσίτη",
				Message: "Η σύνδεσή σας με τον μεσίτη ολοκληρώθηκε με επιτυχία!",
				Metadata: map[string]interface{}{
					"leadId":          deal.Lead.ID,
					"transactionId":   deal.Transaction.ID,
					"shouldOpenModal": false,
				},
			},
		)
	})

	switch {
	case errors.Is(err, errOTPExpired):
		s.metrics.OTPVerification("expired")
		return nil, err
	case errors.Is(err, errOTPInvalid):
		s.metrics.OTPVerification("invalid")
		return nil, err
	case err != nil:
		return nil, err
	}

	s.metrics.OTPVerification("verified")
	s.verifyLimiter.Reset(conn.ID)
	logger.FromContext(ctx).Info("OTP verified",
		zap.String("connection_id", conn.ID),
		zap.String("transaction_id", deal.Transaction.ID))
	return deal, nil
}

var (
	errOTPExpired = apperror.Validation("OTP has expired")
	errOTPInvalid = apperror.Validation("Invalid OTP")
)

// ExpireStaleCodes clears OTP codes past their expiry and returns how many
// connections were touched
func (s *Service) ExpireStaleCodes(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.BuyerAgentConnection{}).
		Where("otp_code IS NOT NULL AND otp_expires_at < ?", s.now()).
		Update("otp_code", nil)
	return result.RowsAffected, result.Error
}
