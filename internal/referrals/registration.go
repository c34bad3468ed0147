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

const (
	msgProcessed       = "Referral processed successfully"
	msgAlreadyReferred = "User already has a referral as referred"
	msgSelfReferral    = "Self-referral detected, no points added"
	msgAlreadyRewarded = "User already has registration points"
)

var errAlreadyReferred = errors.New("user already referred")

// RegistrationResult is the outcome of applying a referral code at sign-up.
// Zero points with a message means the code was accepted but nothing was awarded.
type RegistrationResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ReferralCode   string `json:"referralCode,omitempty"`
	UserID         string `json:"userId,omitempty"`
	ReferrerID     string `json:"referrerId,omitempty"`
	ReferralID     string `json:"referralId,omitempty"`
	ReferrerPoints int64  `json:"referrerPoints"`
	ReferredPoints int64  `json:"referredPoints"`
}

func zeroResult(msg string) *RegistrationResult {
	return &RegistrationResult{Success: true, Message: msg}
}

// ProcessRegistration credits the referrer and the newly registered user.
// A user can be referred once; self-referrals earn nothing.
func (s *Service) ProcessRegistration(ctx context.Context, code, userID string) (*RegistrationResult, error) {
	if code == "" || userID == "" {
		return nil, apperror.Validation("Missing referral code or user ID")
	}

	var result *RegistrationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referred int64
		if err := tx.Model(&models.Referral{}).Where("referred_id = ?", userID).Count(&referred).Error; err != nil {
			return err
		}
		if referred > 0 {
			result = zeroResult(msgAlreadyReferred)
			return nil
		}

		var referrer models.UserPointsAccount
		if err := tx.Where("referral_code = ?", code).First(&referrer).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.Validation("Invalid referral code")
			}
			return err
		}
		if referrer.UserID == userID {
			result = zeroResult(msgSelfReferral)
			return nil
		}

		var rewarded int64
		if err := tx.Table("referral_points AS rp").
			Joins("JOIN referrals r ON r.id = rp.referral_id").
			Where("rp.user_id = ? AND rp.reason = ?", userID, models.PointsReasonRegistration).
			Where("r.referred_id = ? OR r.referrer_id = ?", userID, userID).
			Count(&rewarded).Error; err != nil {
			return err
		}
		if rewarded > 0 {
			result = zeroResult(msgAlreadyRewarded)
			return nil
		}

		var user models.User
		if err := tx.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("User not found")
			}
			return err
		}

		ref := models.Referral{
			ReferrerID:   referrer.UserID,
			ReferredID:   userID,
			ReferralCode: code,
			TotalPoints:  s.cfg.ReferrerPoints + s.cfg.ReferredPoints,
			IsActive:     true,
		}
		if err := tx.Create(&ref).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return errAlreadyReferred
			}
			return err
		}

		for _, row := range []models.ReferralPoints{
			{ReferralID: &ref.ID, UserID: referrer.UserID, Points: s.cfg.ReferrerPoints, Reason: models.PointsReasonRegistration},
			{ReferralID: &ref.ID, UserID: userID, Points: s.cfg.ReferredPoints, Reason: models.PointsReasonRegistration},
		} {
			if err := s.credit(tx, &row); err != nil {
				return err
			}
		}

		result = &RegistrationResult{
			Success:        true,
			Message:        msgProcessed,
			ReferralCode:   code,
			UserID:         userID,
			ReferrerID:     referrer.UserID,
			ReferralID:     ref.ID,
			ReferrerPoints: s.cfg.ReferrerPoints,
			ReferredPoints: s.cfg.ReferredPoints,
		}
		return nil
	})
	if errors.Is(err, errAlreadyReferred) {
		return zeroResult(msgAlreadyReferred), nil
	}
	if err != nil {
		return nil, err
	}

	if result.ReferralID != "" {
		s.metrics.PointsAwarded(models.PointsReasonRegistration, result.ReferrerPoints+result.ReferredPoints)
		logger.FromContext(ctx).Info("referral registered",
			zap.String("referral_id", result.ReferralID),
			zap.String("referrer_id", result.ReferrerID),
			zap.String("referred_id", userID))
	}
	return result, nil
}
