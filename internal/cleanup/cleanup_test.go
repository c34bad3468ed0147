package cleanup

import (
	"context"
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seed(t *testing.T, db *gorm.DB, now time.Time) {
	u := dbtest.CreateUser(t, db, "user", models.RoleBuyer)
	old := now.AddDate(0, 0, -60)

	notes := []models.Notification{
		{UserID: u.ID, Type: "GENERAL", Title: "t", Message: "old read", IsRead: true, CreatedAt: old},
		{UserID: u.ID, Type: "GENERAL", Title: "t", Message: "old unread", IsRead: false, CreatedAt: old},
		{UserID: u.ID, Type: "GENERAL", Title: "t", Message: "new read", IsRead: true, CreatedAt: now},
	}
	require.NoError(t, db.Create(&notes).Error)

	sessions := []models.Session{
		{UserID: u.ID, TokenHash: "a", ExpiresAt: now.Add(-time.Hour)},
		{UserID: u.ID, TokenHash: "b", ExpiresAt: now.Add(time.Hour)},
	}
	require.NoError(t, db.Create(&sessions).Error)

	tasks := []models.SearchIndexTask{
		{PropertyID: "p1", Action: models.IndexActionUpsert, Status: models.TaskStatusDone},
		{PropertyID: "p2", Action: models.IndexActionUpsert, Status: models.TaskStatusPending},
	}
	require.NoError(t, db.Create(&tasks).Error)
	require.NoError(t, db.Model(&models.SearchIndexTask{}).Where("1 = 1").UpdateColumn("updated_at", old).Error)
}

func result(t *testing.T, r *Result, target string) TargetResult {
	for _, tr := range r.Targets {
		if tr.Target == target {
			return tr
		}
	}
	t.Fatalf("no result for %s", target)
	return TargetResult{}
}

func TestRunPurgesExpiredRows(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	now := time.Now()
	svc.now = func() time.Time { return now }
	seed(t, db, now)

	res, err := svc.Run(context.Background(), Options{RetentionDays: 30, MaxDeletionCount: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result(t, res, models.PurgeTargetNotifications).DeletedCount)
	assert.Equal(t, int64(1), result(t, res, models.PurgeTargetSessions).DeletedCount)
	assert.Equal(t, int64(1), result(t, res, models.PurgeTargetIndexTasks).DeletedCount)

	var remaining []models.Notification
	require.NoError(t, db.Order("message").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, "new read", remaining[0].Message)
	assert.Equal(t, "old unread", remaining[1].Message)

	var logs []models.PurgeLog
	require.NoError(t, db.Find(&logs).Error)
	assert.Len(t, logs, 3)
	assert.Equal(t, models.PurgeReasonManual, logs[0].Reason)
}

func TestRunDryRunAndSafetyLimit(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	now := time.Now()
	svc.now = func() time.Time { return now }
	seed(t, db, now)

	dry, err := svc.Run(context.Background(), Options{RetentionDays: 30, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result(t, dry, models.PurgeTargetNotifications).TargetCount)
	assert.Zero(t, result(t, dry, models.PurgeTargetNotifications).DeletedCount)

	other := dbtest.CreateUser(t, db, "other", models.RoleSeller)
	require.NoError(t, db.Create(&models.Notification{
		UserID: other.ID, Type: "GENERAL", Title: "t", Message: "another", IsRead: true, CreatedAt: now.AddDate(0, 0, -90),
	}).Error)
	res, err := svc.Run(context.Background(), Options{RetentionDays: 30, MaxDeletionCount: 1})
	require.NoError(t, err)
	notes := result(t, res, models.PurgeTargetNotifications)
	assert.NotEmpty(t, notes.Error)
	assert.Zero(t, notes.DeletedCount)
	assert.Equal(t, int64(1), result(t, res, models.PurgeTargetSessions).DeletedCount)

	_, err = svc.Run(context.Background(), Options{})
	assert.Error(t, err)
}
