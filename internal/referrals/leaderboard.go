package referrals

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database"
	"realestate-platform/internal/models"
)

// totalsQuery aggregates the ledger per user, keeping positive totals only
const totalsQuery = `
SELECT p.user_id, p.total_points, p.properties_added,
       (SELECT COUNT(*) FROM referrals r WHERE r.referrer_id = p.user_id OR r.referred_id = p.user_id) AS total_referrals
FROM (
    SELECT user_id,
           SUM(points) AS total_points,
           COUNT(DISTINCT CASE WHEN reason = 'property_added' THEN property_id END) AS properties_added
    FROM referral_points
    GROUP BY user_id
) p
WHERE p.total_points > 0`

const leaderboardQuery = `
SELECT u.id, u.name, u.email, u.role, t.total_points, t.total_referrals, t.properties_added
FROM (` + totalsQuery + `) t
JOIN users u ON u.id = t.user_id
ORDER BY t.total_points DESC, t.total_referrals DESC, t.user_id
LIMIT ?`

const rankQuery = `
SELECT ranked.user_rank FROM (
    SELECT t.user_id,
           ROW_NUMBER() OVER (ORDER BY t.total_points DESC, t.total_referrals DESC, t.user_id) AS user_rank
    FROM (` + totalsQuery + `) t
) ranked
WHERE ranked.user_id = ?`

const rankedUsersQuery = `SELECT COUNT(*) FROM (` + totalsQuery + `) t`

// Entry is one leaderboard row
type Entry struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	TotalPoints     int64  `json:"totalPoints"`
	TotalReferrals  int64  `json:"totalReferrals"`
	PropertiesAdded int64  `json:"propertiesAdded"`
	Rank            *int64 `json:"rank"`
}

// Leaderboard is the top of the ranking plus the caller's own position
type Leaderboard struct {
	Leaderboard []Entry `json:"leaderboard"`
	CurrentUser *Entry  `json:"currentUser"`
	TotalUsers  int64   `json:"totalUsers"`
}

// Leaderboard ranks users by ledger total, then by referral count.
// Users with no positive total are not ranked. limit never exceeds the
// configured board size.
func (s *Service) Leaderboard(ctx context.Context, currentUserID string, limit int) (*Leaderboard, error) {
	size := s.cfg.LeaderboardSize
	if size <= 0 {
		size = 10
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	db := s.db.WithContext(ctx)

	entries := []Entry{}
	if err := db.Raw(leaderboardQuery, limit).Scan(&entries).Error; err != nil {
		return nil, err
	}
	for i := range entries {
		rank := int64(i + 1)
		entries[i].Rank = &rank
	}

	board := &Leaderboard{Leaderboard: entries}
	if err := db.Raw(rankedUsersQuery).Scan(&board.TotalUsers).Error; err != nil {
		return nil, err
	}

	if currentUserID != "" {
		current, err := s.entryFor(ctx, currentUserID)
		if err != nil {
			return nil, err
		}
		board.CurrentUser = current
	}
	return board, nil
}

func (s *Service) entryFor(ctx context.Context, userID string) (*Entry, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id", "name", "email", "role").Where("id = ?", userID).First(&user).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	entry := &Entry{ID: user.ID, Name: user.Name, Email: user.Email, Role: string(user.Role)}

	if err := db.Model(&models.ReferralPoints{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&entry.TotalPoints).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Referral{}).
		Where("referrer_id = ? OR referred_id = ?", userID, userID).
		Count(&entry.TotalReferrals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ReferralPoints{}).
		Where("user_id = ? AND reason = ?", userID, models.PointsReasonPropertyAdded).
		Distinct("property_id").
		Count(&entry.PropertiesAdded).Error; err != nil {
		return nil, err
	}

	var ranks []int64
	if err := db.Raw(rankQuery, userID).Scan(&ranks).Error; err != nil {
		return nil, err
	}
	if len(ranks) > 0 {
		entry.Rank = &ranks[0]
	}
	return entry, nil
}

// Stats summarises a user's referrals and ledger
type Stats struct {
	Referrals      []models.Referral       `json:"referrals"`
	Points         []models.ReferralPoints `json:"points"`
	TotalPoints    int64                   `json:"totalPoints"`
	ReferrerPoints int64                   `json:"referrerPoints"`
	ReferredPoints int64                   `json:"referredPoints"`
	Balance        int64                   `json:"balance"`
	ReferralCode   string                  `json:"referralCode,omitempty"`
}

// Stats is visible to the user themself and to admins
func (s *Service) Stats(ctx context.Context, p auth.Principal, userID string) (*Stats, error) {
	if userID == "" {
		return nil, apperror.Validation("Missing user ID")
	}
	if !p.CanAccessUser(userID) {
		return nil, apperror.Forbidden("Forbidden")
	}
	db := s.db.WithContext(ctx)

	stats := &Stats{Referrals: []models.Referral{}, Points: []models.ReferralPoints{}}
	if err := db.Where("referrer_id = ? OR referred_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&stats.Referrals).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&stats.Points).Error; err != nil {
		return nil, err
	}

	referrerOf := make(map[string]bool, len(stats.Referrals))
	for _, r := range stats.Referrals {
		referrerOf[r.ID] = r.ReferrerID == userID
	}
	for _, pt := range stats.Points {
		stats.TotalPoints += pt.Points
		if pt.Reason != models.PointsReasonRegistration || pt.ReferralID == nil {
			continue
		}
		if referrerOf[*pt.ReferralID] {
			stats.ReferrerPoints += pt.Points
		} else {
			stats.ReferredPoints += pt.Points
		}
	}

	var acct models.UserPointsAccount
	err := db.Where("user_id = ?", userID).First(&acct).Error
	switch {
	case err == nil:
		stats.Balance = acct.Balance
		stats.ReferralCode = acct.ReferralCode
	case !database.IsNotFound(err):
		return nil, err
	}
	return stats, nil
}
