package referrals

import (
	"context"
	"math"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Adjustment is the result of a manual points change
type Adjustment struct {
	UserID  string `json:"userId"`
	Points  int64  `json:"points"`
	Balance int64  `json:"balance"`
	EntryID string `json:"entryId"`
}

// AdjustPoints appends an admin ledger row. A negative adjustment may not
// take the user's total below zero.
func (s *Service) AdjustPoints(ctx context.Context, adminID, userID string, points int64, note string) (*Adjustment, error) {
	if userID == "" {
		return nil, apperror.Validation("Missing user ID")
	}
	if points == 0 {
		return nil, apperror.Validation("Points must be a non-zero number")
	}

	adj := &Adjustment{UserID: userID, Points: points}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
			if database.IsNotFound(err) {
				return apperror.NotFound("User not found")
			}
			return err
		}
		if _, err := EnsureAccount(tx, userID); err != nil {
			return err
		}

		var acct models.UserPointsAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&acct).Error; err != nil {
			return err
		}

		var total int64
		if err := tx.Model(&models.ReferralPoints{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(points), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		if points < 0 && total+points < 0 {
			return apperror.Validation("Ο χρήστης έχει μόνο %d πόντους. Δεν μπορείτε να αφαιρέσετε %d πόντους.", total, -points)
		}

		row := models.ReferralPoints{
			UserID: userID,
			Points: points,
			Reason: models.PointsReasonAdminAdjustment,
			Note:   note,
		}
		if err := s.credit(tx, &row); err != nil {
			return err
		}
		adj.EntryID = row.ID
		adj.Balance = total + points
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PointsAwarded(models.PointsReasonAdminAdjustment, int64(math.Abs(float64(points))))
	logger.FromContext(ctx).Info("points adjusted",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.Int64("points", points),
		zap.Int64("balance", adj.Balance))
	return adj, nil
}

// ReconcileReport counts the cached aggregates rewritten from the ledger
type ReconcileReport struct {
	Accounts  int `json:"accounts"`
	Referrals int `json:"referrals"`
}

// Reconcile recomputes account balances and referral totals from the ledger
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sums []struct {
			UserID string
			Total  int64
		}
		if err := tx.Model(&models.ReferralPoints{}).
			Select("user_id, SUM(points) AS total").
			Group("user_id").
			Scan(&sums).Error; err != nil {
			return err
		}
		ledger := make(map[string]int64, len(sums))
		for _, row := range sums {
			ledger[row.UserID] = row.Total
			if _, err := EnsureAccount(tx, row.UserID); err != nil {
				return err
			}
		}

		var accounts []models.UserPointsAccount
		if err := tx.Find(&accounts).Error; err != nil {
			return err
		}
		for _, acct := range accounts {
			want := ledger[acct.UserID]
			if acct.Balance == want {
				continue
			}
			if err := tx.Model(&models.UserPointsAccount{}).
				Where("user_id = ?", acct.UserID).
				Update("balance", want).Error; err != nil {
				return err
			}
			report.Accounts++
		}

		var totals []struct {
			ReferralID      string
			TotalPoints     int64
			PropertiesAdded int64
			TotalArea       float64
		}
		if err := tx.Model(&models.ReferralPoints{}).
			Select(`referral_id, SUM(points) AS total_points,
				COUNT(DISTINCT CASE WHEN reason = ? THEN property_id END) AS properties_added,
				COALESCE(SUM(CASE WHEN reason = ? THEN area END), 0) AS total_area`,
				models.PointsReasonPropertyAdded, models.PointsReasonPropertyAdded).
			Where("referral_id IS NOT NULL").
			Group("referral_id").
			Scan(&totals).Error; err != nil {
			return err
		}
		byReferral := make(map[string]int, len(totals))
		for i, t := range totals {
			byReferral[t.ReferralID] = i
		}

		var referrals []models.Referral
		if err := tx.Find(&referrals).Error; err != nil {
			return err
		}
		for _, ref := range referrals {
			var want models.Referral
			if i, ok := byReferral[ref.ID]; ok {
				want.TotalPoints = totals[i].TotalPoints
				want.PropertiesAdded = totals[i].PropertiesAdded
				want.TotalArea = totals[i].TotalArea
			}
			if ref.TotalPoints == want.TotalPoints &&
				ref.PropertiesAdded == want.PropertiesAdded &&
				math.Abs(ref.TotalArea-want.TotalArea) < 0.01 {
				continue
			}
			if err := tx.Model(&models.Referral{}).Where("id = ?", ref.ID).Updates(map[string]interface{}{
				"total_points":     want.TotalPoints,
				"properties_added": want.PropertiesAdded,
				"total_area":       want.TotalArea,
			}).Error; err != nil {
				return err
			}
			report.Referrals++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Accounts > 0 || report.Referrals > 0 {
		logger.FromContext(ctx).Warn("points aggregates drifted from ledger",
			zap.Int("accounts", report.Accounts),
			zap.Int("referrals", report.Referrals))
	}
	return report, nil
}
