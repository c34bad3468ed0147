package transactions_test

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"realestate-platform/internal/transactions"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      *transactions.Service
	admin    *models.User
	buyer    *models.User
	seller   *models.User
	agent    *models.User
	property *models.Property
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	f := &fixture{
		db:     db,
		svc:    transactions.NewService(db, notify.NewService(db, nil), nil),
		admin:  dbtest.CreateUser(t, db, "admin", models.RoleAdmin),
		buyer:  dbtest.CreateUser(t, db, "buyer", models.RoleBuyer),
		seller: dbtest.CreateUser(t, db, "seller", models.RoleSeller),
		agent:  dbtest.CreateUser(t, db, "agent", models.RoleAgent),
	}
	f.property = dbtest.CreateProperty(t, db, f.seller.ID, "Μεζονέτα στο Κολωνάκι")
	return f
}

func (f *fixture) transaction(t *testing.T) *models.Transaction {
	agentID := f.agent.ID
	tr := &models.Transaction{
		PropertyID: f.property.ID,
		BuyerID:    f.buyer.ID,
		SellerID:   f.seller.ID,
		AgentID:    &agentID,
	}
	require.NoError(t, f.db.Create(tr).Error)
	return tr
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestUpdateStageEveryStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, stage := range models.Stages {
		tr := f.transaction(t)
		updated, err := f.svc.UpdateStage(ctx, tr.ID, string(stage), f.admin.ID)
		require.NoError(t, err, stage)

		assert.Equal(t, stage, updated.Stage)
		assert.Equal(t, models.StatusForStage(stage), updated.Status)

		var stored models.Transaction
		require.NoError(t, f.db.First(&stored, "id = ?", tr.ID).Error)
		assert.Equal(t, stage, stored.Stage)
		assert.Contains(t, []models.TransactionStatus{
			models.TransactionStatusCompleted,
			models.TransactionStatusCancelled,
			models.TransactionStatusInProgress,
		}, stored.Status)

		assert.Equal(t, int64(1), f.count(t, &models.TransactionProgress{}, "transaction_id = ?", tr.ID), stage)
	}
}

func TestUpdateStageNotifiesParties(t *testing.T) {
	f := newFixture(t)
	tr := f.transaction(t)

	_, err := f.svc.UpdateStage(context.Background(), tr.ID, "deposit_paid", f.admin.ID)
	require.NoError(t, err)

	var buyerNote models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.buyer.ID).First(&buyerNote).Error)
	assert.Equal(t, models.NotificationTypeStageUpdate, buyerNote.Type)
	assert.Equal(t, "Η προκαταβολή έχει καταχωρηθεί επιτυχώς.", buyerNote.Message)

	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ?", f.seller.ID))

	var agentNote models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.agent.ID).First(&agentNote).Error)
	assert.Equal(t, models.NotificationTypeAgentStageUpdate, agentNote.Type)
	assert.Equal(t, `Η συναλλαγή με τον buyer για το ακίνητο "Μεζονέτα στο Κολωνάκι" ενημερώθηκε σε: Έγινε προκαταβολή`, agentNote.Message)

	var progress models.TransactionProgress
	require.NoError(t, f.db.Where("transaction_id = ?", tr.ID).First(&progress).Error)
	assert.Equal(t, "Stage updated to DEPOSIT_PAID", progress.Notes)
	require.NotNil(t, progress.CreatedBy)
	assert.Equal(t, f.admin.ID, *progress.CreatedBy)
}

func TestUpdateStageErrors(t *testing.T) {
	f := newFixture(t)
	tr := f.transaction(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStage(ctx, tr.ID, "SIGNED", f.admin.ID)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.UpdateStage(ctx, "missing", "PENDING", f.admin.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	// nothing written for rejected updates
	assert.Equal(t, int64(0), f.count(t, &models.TransactionProgress{}, "1 = 1"))
	assert.Equal(t, int64(0), f.count(t, &models.Notification{}, "1 = 1"))
}

func TestUpdateStageByLeadCreatesTransaction(t *testing.T) {
	f := newFixture(t)
	lead := &models.PropertyLead{PropertyID: f.property.ID, BuyerID: f.buyer.ID}
	require.NoError(t, f.db.Create(lead).Error)

	tr, err := f.svc.UpdateStage(context.Background(), lead.ID, "MEETING_SCHEDULED", f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, f.seller.ID, tr.SellerID)
	assert.Nil(t, tr.AgentID)
	require.NotNil(t, tr.LeadID)
	assert.Equal(t, lead.ID, *tr.LeadID)

	require.NoError(t, f.db.First(lead, "id = ?", lead.ID).Error)
	require.NotNil(t, lead.TransactionID)
	assert.Equal(t, tr.ID, *lead.TransactionID)

	// the same lead id now resolves to the linked transaction
	again, err := f.svc.UpdateStage(context.Background(), lead.ID, "DEPOSIT_PAID", f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, again.ID)
	assert.Equal(t, int64(1), f.count(t, &models.Transaction{}, "1 = 1"))
}

func TestUpdateStageByConnectionReusesDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := &models.BuyerAgentConnection{
		BuyerID:    f.buyer.ID,
		AgentID:    f.agent.ID,
		PropertyID: f.property.ID,
		Status:     models.ConnectionStatusConfirmed,
	}
	require.NoError(t, f.db.Create(conn).Error)

	first, err := f.svc.UpdateStage(ctx, conn.ID, "MEETING_SCHEDULED", f.admin.ID)
	require.NoError(t, err)
	second, err := f.svc.UpdateStage(ctx, conn.ID, "DEPOSIT_PAID", f.admin.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StageDepositPaid, second.Stage)
	assert.Equal(t, int64(1), f.count(t, &models.Transaction{}, "1 = 1"))
	assert.Equal(t, int64(2), f.count(t, &models.TransactionProgress{}, "transaction_id = ?", first.ID))
}

func TestUpdateStageByConnectionFindsExistingTransaction(t *testing.T) {
	f := newFixture(t)
	tr := f.transaction(t)
	conn := &models.BuyerAgentConnection{
		BuyerID:    f.buyer.ID,
		AgentID:    f.agent.ID,
		PropertyID: f.property.ID,
		Status:     models.ConnectionStatusConfirmed,
	}
	require.NoError(t, f.db.Create(conn).Error)

	updated, err := f.svc.UpdateStage(context.Background(), conn.ID, "FINAL_SIGNING", f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, updated.ID)
	assert.Equal(t, int64(1), f.count(t, &models.Transaction{}, "1 = 1"))
}

func TestUpdateStageRollsBackWhenNotifyFails(t *testing.T) {
	f := newFixture(t)
	tr := f.transaction(t)
	require.NoError(t, f.db.Migrator().DropTable(&models.Notification{}))

	_, err := f.svc.UpdateStage(context.Background(), tr.ID, "COMPLETED", f.admin.ID)
	require.Error(t, err)

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, "id = ?", tr.ID).Error)
	assert.Equal(t, models.StagePending, stored.Stage)
	assert.NotEqual(t, models.TransactionStatusCompleted, stored.Status)
	assert.Equal(t, int64(0), f.count(t, &models.TransactionProgress{}, "1 = 1"))
}

func TestGetAndProgressVisibility(t *testing.T) {
	f := newFixture(t)
	tr := f.transaction(t)
	ctx := context.Background()
	stranger := dbtest.CreateUser(t, f.db, "stranger", models.RoleBuyer)

	_, err := f.svc.UpdateStage(ctx, tr.ID, "MEETING_SCHEDULED", f.admin.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateStage(ctx, tr.ID, "COMPLETED", f.admin.ID)
	require.NoError(t, err)

	history, err := f.svc.Progress(ctx, auth.Principal{UserID: f.buyer.ID, Role: models.RoleBuyer}, tr.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StageMeetingScheduled, history[0].Stage)
	assert.Equal(t, models.StageCompleted, history[1].Stage)

	_, err = f.svc.Get(ctx, auth.Principal{UserID: stranger.ID, Role: models.RoleBuyer}, tr.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	got, err := f.svc.Get(ctx, auth.Principal{UserID: f.admin.ID, Role: models.RoleAdmin}, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)

	list, total, err := f.svc.List(ctx, transactions.ListFilter{Stage: "completed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}
