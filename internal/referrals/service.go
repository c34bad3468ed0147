package referrals

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/config"
	"realestate-platform/internal/database"
	"realestate-platform/internal/metrics"
	"realestate-platform/internal/models"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the points ledger, the per-user accounts and referrals
type Service struct {
	db      *gorm.DB
	cfg     config.ReferralConfig
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, cfg config.ReferralConfig, m *metrics.Metrics) *Service {
	return &Service{db: db, cfg: cfg, metrics: m}
}

// Link is a shareable registration link
type Link struct {
	ReferralCode string `json:"referralCode"`
	ReferralLink string `json:"referralLink"`
}

// GenerateLink returns the user's registration link, creating the account
// and its code on first use
func (s *Service) GenerateLink(ctx context.Context, userID string) (*Link, error) {
	var acct *models.UserPointsAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acct, err = EnsureAccount(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Link{
		ReferralCode: acct.ReferralCode,
		ReferralLink: strings.TrimRight(s.cfg.BaseURL, "/") + "/register?ref=" + acct.ReferralCode,
	}, nil
}

// EnsureAccount returns the user's points account, creating it with a fresh
// referral code when missing
func EnsureAccount(tx *gorm.DB, userID string) (*models.UserPointsAccount, error) {
	var acct models.UserPointsAccount
	err := tx.Where("user_id = ?", userID).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !database.IsNotFound(err) {
		return nil, err
	}

	code, err := newCode()
	if err != nil {
		return nil, err
	}
	acct = models.UserPointsAccount{UserID: userID, ReferralCode: code}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func newCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// credit appends a ledger row and applies it to the account balance
func (s *Service) credit(tx *gorm.DB, row *models.ReferralPoints) error {
	if _, err := EnsureAccount(tx, row.UserID); err != nil {
		return err
	}
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	return tx.Model(&models.UserPointsAccount{}).
		Where("user_id = ?", row.UserID).
		Update("balance", gorm.Expr("balance + ?", row.Points)).Error
}

// UserReferral tells who referred the user, if anyone
type UserReferral struct {
	HasReferral  bool    `json:"hasReferral"`
	ReferrerName *string `json:"referrerName"`
	ReferralCode *string `json:"referralCode"`
}

func (s *Service) UserReferral(ctx context.Context, userID string) (*UserReferral, error) {
	if userID == "" {
		return nil, apperror.Validation("Missing user ID")
	}
	var row struct {
		ReferralCode string
		ReferrerName string
	}
	err := s.db.WithContext(ctx).Table("referrals AS r").
		Select("r.referral_code, u.name AS referrer_name").
		Joins("JOIN users u ON u.id = r.referrer_id").
		Where("r.referred_id = ? AND r.is_active = ?", userID, true).
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ReferralCode == "" {
		return &UserReferral{}, nil
	}
	return &UserReferral{HasReferral: true, ReferrerName: &row.ReferrerName, ReferralCode: &row.ReferralCode}, nil
}
