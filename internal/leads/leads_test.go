package leads

import (
	"context"
	"errors"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/config"
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/messaging"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturedOTP struct {
	channel messaging.Channel
	to      messaging.Recipient
	code    string
	err     error
}

func (c *capturedOTP) SendOTP(_ context.Context, channel messaging.Channel, to messaging.Recipient, code string, _ time.Duration) error {
	c.channel, c.to, c.code = channel, to, code
	return c.err
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	otp      *capturedOTP
	now      time.Time
	buyer    *models.User
	seller   *models.User
	agent    *models.User
	property *models.Property
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	cfg := config.DefaultConfig().OTP
	f := &fixture{
		db:     db,
		otp:    &capturedOTP{},
		now:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		buyer:  dbtest.CreateUser(t, db, "buyer", models.RoleBuyer),
		seller: dbtest.CreateUser(t, db, "seller", models.RoleSeller),
		agent:  dbtest.CreateUser(t, db, "agent", models.RoleAgent),
	}
	f.svc = NewService(db, notify.NewService(db, nil), f.otp, cfg, nil)
	f.svc.now = func() time.Time { return f.now }
	f.property = dbtest.CreateProperty(t, db, f.seller.ID, "Διαμέρισμα στο Παγκράτι")
	return f
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func agentPrincipal(u *models.User) auth.Principal {
	return auth.Principal{UserID: u.ID, Role: models.RoleAgent}
}

func TestDirectConnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal, err := f.svc.DirectConnect(ctx, f.buyer.ID, f.agent.ID, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusConfirmed, deal.Connection.Status)
	assert.Equal(t, models.LeadStatusPending, deal.Lead.Status)
	assert.Equal(t, models.StagePending, deal.Transaction.Stage)
	assert.Equal(t, f.seller.ID, deal.Transaction.SellerID)

	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ? AND type = ?", f.seller.ID, models.NotificationTypePropertyInterest))
	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ? AND type = ?", f.agent.ID, models.NotificationTypeAgentClientConnection))

	var stats models.PropertyStats
	require.NoError(t, f.db.First(&stats, "property_id = ?", f.property.ID).Error)
	assert.Equal(t, int64(1), stats.InterestedCount)

	// a second connect for the same triple is rejected and writes nothing
	_, err = f.svc.DirectConnect(ctx, f.buyer.ID, f.agent.ID, f.property.ID)
	require.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, "Connection already exists", err.Error())
	assert.Equal(t, int64(1), f.count(t, &models.BuyerAgentConnection{}, "1 = 1"))
	assert.Equal(t, int64(1), f.count(t, &models.PropertyLead{}, "1 = 1"))
	assert.Equal(t, int64(1), f.count(t, &models.Transaction{}, "1 = 1"))
}

func TestDirectConnectOwnProperty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DirectConnect(context.Background(), f.seller.ID, f.agent.ID, f.property.ID)
	require.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, msgOwnProperty, err.Error())

	_, err = f.svc.DirectConnect(context.Background(), f.buyer.ID, f.agent.ID, "missing")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestConnectionTripleUniqueAtStorage(t *testing.T) {
	f := newFixture(t)
	conn := models.BuyerAgentConnection{BuyerID: f.buyer.ID, AgentID: f.agent.ID, PropertyID: f.property.ID}
	require.NoError(t, f.db.Create(&conn).Error)
	dup := models.BuyerAgentConnection{BuyerID: f.buyer.ID, AgentID: f.agent.ID, PropertyID: f.property.ID}
	assert.Error(t, f.db.Create(&dup).Error)
}

func TestIntroduceAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	challenge, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID,
		BuyerName:  "Κώστας",
		BuyerEmail: "Kostas@Example.com",
	})
	require.NoError(t, err)
	assert.True(t, challenge.OTPSent)
	assert.Equal(t, config.DefaultConfig().OTP.SendsPerHour-1, challenge.SendsRemaining)
	assert.Equal(t, f.agent.ID, challenge.AgentID)
	assert.Equal(t, messaging.ChannelEmail, f.otp.channel)
	assert.Equal(t, "kostas@example.com", f.otp.to.Email)
	assert.Len(t, f.otp.code, 6)

	var placeholder models.User
	require.NoError(t, f.db.First(&placeholder, "id = ?", challenge.BuyerID).Error)
	assert.True(t, placeholder.Placeholder)
	assert.Equal(t, models.RoleBuyer, placeholder.Role)

	// no lead or transaction until the code is verified
	assert.Equal(t, int64(0), f.count(t, &models.PropertyLead{}, "1 = 1"))

	req := VerifyRequest{BuyerID: challenge.BuyerID, AgentID: f.agent.ID, PropertyID: f.property.ID}

	req.OTPCode = "000000"
	if f.otp.code == "000000" {
		req.OTPCode = "111111"
	}
	_, err = f.svc.VerifyOTP(ctx, agentPrincipal(f.agent), req)
	require.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, "Invalid OTP", err.Error())

	req.OTPCode = f.otp.code
	deal, err := f.svc.VerifyOTP(ctx, agentPrincipal(f.agent), req)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusConfirmed, deal.Connection.Status)
	assert.Nil(t, deal.Connection.OTPCode)
	assert.Equal(t, models.StagePending, deal.Transaction.Stage)

	var stored models.BuyerAgentConnection
	require.NoError(t, f.db.First(&stored, "id = ?", challenge.ConnectionID).Error)
	assert.Nil(t, stored.OTPCode)
	assert.Nil(t, stored.OTPExpiresAt)

	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ? AND type = ?", f.seller.ID, models.NotificationTypePropertyInterest))
	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ? AND type = ?", f.agent.ID, models.NotificationTypeAgentLeadAdded))
	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ? AND type = ?", challenge.BuyerID, models.NotificationTypeInterested))

	// a code cannot be used twice
	_, err = f.svc.VerifyOTP(ctx, agentPrincipal(f.agent), req)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, int64(1), f.count(t, &models.Transaction{}, "1 = 1"))
}

func TestVerifyExpiredOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	challenge, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "Άννα", BuyerEmail: "anna@example.com",
	})
	require.NoError(t, err)

	f.now = f.now.Add(16 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, agentPrincipal(f.agent), VerifyRequest{
		BuyerID: challenge.BuyerID, AgentID: f.agent.ID, PropertyID: f.property.ID, OTPCode: f.otp.code,
	})
	require.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, "OTP has expired", err.Error())

	cleared, err := f.svc.ExpireStaleCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
}

func TestVerifyUnknownConnectionAndRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := auth.Principal{UserID: "admin", Role: models.RoleAdmin}

	_, err := f.svc.VerifyOTP(ctx, admin, VerifyRequest{BuyerID: f.buyer.ID, AgentID: f.agent.ID, PropertyID: f.property.ID, OTPCode: "123456"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	challenge, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "Γιώργος", BuyerEmail: "giorgos@example.com",
	})
	require.NoError(t, err)

	wrong := "000000"
	if f.otp.code == wrong {
		wrong = "111111"
	}
	req := VerifyRequest{BuyerID: challenge.BuyerID, AgentID: f.agent.ID, PropertyID: f.property.ID, OTPCode: wrong}
	for i := 0; i < config.DefaultConfig().OTP.VerifyPerWindow; i++ {
		_, err = f.svc.VerifyOTP(ctx, admin, req)
		require.True(t, apperror.Is(err, apperror.KindValidation))
	}
	req.OTPCode = f.otp.code
	_, err = f.svc.VerifyOTP(ctx, admin, req)
	assert.True(t, apperror.Is(err, apperror.KindTooManyRequests))

	// strangers cannot verify on someone's behalf
	_, err = f.svc.VerifyOTP(ctx, auth.Principal{UserID: f.seller.ID, Role: models.RoleSeller}, req)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestIntroduceRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the owner cannot be introduced as a buyer of their own listing
	_, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "seller", BuyerEmail: f.seller.Email,
	})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	// agents act only for themselves
	other := dbtest.CreateUser(t, f.db, "other-agent", models.RoleAgent)
	_, err = f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		AgentID: other.ID, PropertyID: f.property.ID, BuyerName: "x", BuyerEmail: "x@example.com",
	})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "x", BuyerEmail: "x@example.com", OTPMethod: "sms",
	})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	// delivery failure keeps the connection for a resend
	f.otp.err = errors.New("smtp down")
	challenge, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "Μαρία", BuyerEmail: "maria@example.com", BuyerPhone: "+30 690 000 0000",
	})
	require.NoError(t, err)
	assert.False(t, challenge.OTPSent)

	f.otp.err = nil
	resent, err := f.svc.ResendOTP(ctx, agentPrincipal(f.agent), challenge.ConnectionID, "sms")
	require.NoError(t, err)
	assert.True(t, resent.OTPSent)
	assert.Equal(t, messaging.ChannelSMS, f.otp.channel)
	assert.Equal(t, "+306900000000", f.otp.to.Phone)

	_, err = f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "Μαρία", BuyerEmail: "maria@example.com",
	})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestCancelRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal, err := f.svc.DirectConnect(ctx, f.buyer.ID, f.agent.ID, f.property.ID)
	require.NoError(t, err)

	_, err = f.svc.RestoreInterest(ctx, f.buyer.ID, f.property.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.Equal(t, msgNoCancelledInterest, err.Error())

	change, err := f.svc.CancelInterest(ctx, f.buyer.ID, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), change.Leads)
	assert.Equal(t, []string{deal.Transaction.ID}, change.Transactions)

	var lead models.PropertyLead
	var conn models.BuyerAgentConnection
	var tr models.Transaction
	reload := func() {
		require.NoError(t, f.db.First(&lead, "id = ?", deal.Lead.ID).Error)
		require.NoError(t, f.db.First(&conn, "id = ?", deal.Connection.ID).Error)
		require.NoError(t, f.db.First(&tr, "id = ?", deal.Transaction.ID).Error)
	}

	reload()
	assert.True(t, lead.InterestCancelled)
	assert.Equal(t, models.LeadStatusCancelled, lead.Status)
	assert.True(t, conn.InterestCancelled)
	assert.True(t, tr.InterestCancelled)
	assert.Equal(t, models.StageCancelled, tr.Stage)
	assert.Equal(t, models.TransactionStatusCancelled, tr.Status)
	assert.Equal(t, int64(1), f.count(t, &models.Notification{}, "user_id = ? AND type = ?", f.agent.ID, models.NotificationTypeCancelled))

	_, err = f.svc.CancelInterest(ctx, f.buyer.ID, f.property.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.Equal(t, msgNoActiveInterest, err.Error())

	_, err = f.svc.RestoreInterest(ctx, f.buyer.ID, f.property.ID)
	require.NoError(t, err)

	reload()
	assert.False(t, lead.InterestCancelled)
	assert.Equal(t, models.LeadStatusPending, lead.Status)
	assert.False(t, conn.InterestCancelled)
	assert.False(t, tr.InterestCancelled)
	assert.Equal(t, models.StagePending, tr.Stage)
	assert.Equal(t, models.TransactionStatusInProgress, tr.Status)

	var notes []string
	require.NoError(t, f.db.Model(&models.TransactionProgress{}).Where("transaction_id = ?", tr.ID).
		Order("created_at ASC").Pluck("notes", &notes).Error)
	assert.Equal(t, []string{noteCancelledByBuyer, noteRestoredByBuyer}, notes)

	// a second restore finds nothing cancelled
	_, err = f.svc.RestoreInterest(ctx, f.buyer.ID, f.property.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestConnectionsForAndCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.DirectConnect(ctx, f.buyer.ID, f.agent.ID, f.property.ID)
	require.NoError(t, err)

	mine, err := f.svc.ConnectionsFor(ctx, auth.Principal{UserID: f.buyer.ID, Role: models.RoleBuyer})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Property)
	assert.Equal(t, f.property.Title, mine[0].Property.Title)
	require.NotNil(t, mine[0].Agent)
	assert.Equal(t, f.agent.ID, mine[0].Agent.ID)

	agentView, err := f.svc.ConnectionsFor(ctx, agentPrincipal(f.agent))
	require.NoError(t, err)
	assert.Len(t, agentView, 1)

	conn, err := f.svc.Check(ctx, f.buyer.ID, f.agent.ID, f.property.ID)
	require.NoError(t, err)
	assert.NotNil(t, conn)

	conn, err = f.svc.Check(ctx, f.seller.ID, f.agent.ID, f.property.ID)
	require.NoError(t, err)
	assert.Nil(t, conn)

	leads, err := f.svc.InterestedProperties(ctx, f.buyer.ID, false)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.NotNil(t, leads[0].Property)
}

func TestRejectedIntroductionsKeepSendQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < config.DefaultConfig().OTP.SendsPerHour+1; i++ {
		_, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
			PropertyID: f.property.ID, BuyerName: "seller", BuyerEmail: f.seller.Email,
		})
		require.True(t, apperror.Is(err, apperror.KindValidation))
	}

	landlord := dbtest.CreateUser(t, f.db, "landlord", models.RoleSeller)
	other := dbtest.CreateProperty(t, f.db, landlord.ID, "Μονοκατοικία στην Κηφισιά")
	challenge, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: other.ID, BuyerName: "seller", BuyerEmail: f.seller.Email,
	})
	require.NoError(t, err)
	assert.True(t, challenge.OTPSent)
	assert.Equal(t, config.DefaultConfig().OTP.SendsPerHour-1, challenge.SendsRemaining)

	stats := f.svc.LimiterStats()
	assert.Equal(t, 1, stats["otp_send"].TrackedKeys)
	assert.Equal(t, config.DefaultConfig().OTP.SendsPerHour, stats["otp_send"].LimitPerKey)
}

func TestVerifyRollsBackWhenNotifyFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	challenge, err := f.svc.Introduce(ctx, agentPrincipal(f.agent), IntroduceRequest{
		PropertyID: f.property.ID, BuyerName: "Πέτρος", BuyerEmail: "petros@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Migrator().DropTable(&models.Notification{}))

	_, err = f.svc.VerifyOTP(ctx, agentPrincipal(f.agent), VerifyRequest{
		BuyerID: challenge.BuyerID, AgentID: f.agent.ID, PropertyID: f.property.ID, OTPCode: f.otp.code,
	})
	require.Error(t, err)

	var stored models.BuyerAgentConnection
	require.NoError(t, f.db.First(&stored, "id = ?", challenge.ConnectionID).Error)
	assert.Equal(t, models.ConnectionStatusPending, stored.Status)
	require.NotNil(t, stored.OTPCode)
	assert.Equal(t, f.otp.code, *stored.OTPCode)

	assert.Equal(t, int64(0), f.count(t, &models.PropertyLead{}, "1 = 1"))
	assert.Equal(t, int64(0), f.count(t, &models.Transaction{}, "1 = 1"))
	assert.Equal(t, int64(0), f.count(t, &models.TransactionProgress{}, "1 = 1"))
	assert.Equal(t, int64(0), f.count(t, &models.PropertyStats{}, "interested_count > 0"))
}
