package properties

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextWeek() string {
	return time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
}

func (f *fixture) notifications(t *testing.T, userID, kind string) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", userID, kind).Find(&list).Error)
	return list
}

func (f *fixture) slotBooked(t *testing.T, slotID string) bool {
	t.Helper()
	var slot models.PropertyAvailability
	require.NoError(t, f.db.Where("id = ?", slotID).First(&slot).Error)
	return slot.IsBooked
}

func TestScheduleViewingHoldsSlotAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	agent := dbtest.CreateUser(t, f.db, "agent", models.RoleAgent)
	created, err := f.svc.Create(ctx, f.seller, input("Μεζονέτα", "Καλαμάτα", 140))
	require.NoError(t, err)
	id := created.Property.ID

	slot, err := f.svc.AddSlot(ctx, f.seller, id, SlotInput{Date: nextWeek(), StartTime: "10:00", EndTime: "11:00"})
	require.NoError(t, err)
	other, err := f.svc.AddSlot(ctx, f.seller, id, SlotInput{Date: nextWeek(), StartTime: "12:00", EndTime: "13:00"})
	require.NoError(t, err)
	past, err := f.svc.AddSlot(ctx, f.seller, id, SlotInput{Date: "2020-01-01", StartTime: "12:00", EndTime: "13:00"})
	require.NoError(t, err)

	_, err = f.svc.ScheduleViewing(ctx, f.seller, ViewingInput{PropertyID: id, SlotID: slot.ID})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.ScheduleViewing(ctx, f.buyer, ViewingInput{PropertyID: id, SlotID: slot.ID, AgentID: &f.other.UserID})
	assert.True(t, apperror.Is(err, apperror.KindValidation), "sellers cannot be named agent")
	_, err = f.svc.ScheduleViewing(ctx, f.buyer, ViewingInput{PropertyID: id, SlotID: past.ID})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.ScheduleViewing(ctx, f.buyer, ViewingInput{PropertyID: id})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	viewing, err := f.svc.ScheduleViewing(ctx, f.buyer, ViewingInput{
		PropertyID: id,
		SlotID:     slot.ID,
		AgentID:    &agent.ID,
		Message:    "<b>Θα έρθω</b> με τη σύζυγό μου",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ViewingStatusPending, viewing.Status)
	assert.Equal(t, "10:00", viewing.StartTime)
	assert.Equal(t, "Θα έρθω με τη σύζυγό μου", viewing.Message)
	assert.True(t, f.slotBooked(t, slot.ID))

	require.Len(t, f.notifications(t, f.seller.UserID, models.NotificationTypeViewingRequest), 1)
	assert.Contains(t, f.notifications(t, f.seller.UserID, models.NotificationTypeViewingRequest)[0].Message, "Μεζονέτα")
	assert.Len(t, f.notifications(t, agent.ID, models.NotificationTypeViewingRequest), 1)
	assert.Len(t, f.notifications(t, f.admin.UserID, models.NotificationTypeViewingRequest), 1)

	// the slot is taken and the buyer already has an open request
	_, err = f.svc.ScheduleViewing(ctx, f.other, ViewingInput{PropertyID: id, SlotID: slot.ID})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.ScheduleViewing(ctx, f.buyer, ViewingInput{PropertyID: id, SlotID: other.ID})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.False(t, f.slotBooked(t, other.ID))

	assert.True(t, apperror.Is(f.svc.RemoveSlot(ctx, f.seller, id, slot.ID), apperror.KindConflict))
	assert.True(t, apperror.Is(f.svc.Delete(ctx, f.seller, id), apperror.KindConflict))
}

func TestViewingStatusTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.seller, input("Γκαρσονιέρα", "Ιωάννινα", 30))
	require.NoError(t, err)
	id := created.Property.ID
	slot, err := f.svc.AddSlot(ctx, f.seller, id, SlotInput{Date: nextWeek(), StartTime: "17:00", EndTime: "17:30"})
	require.NoError(t, err)

	viewing, err := f.svc.ScheduleViewing(ctx, f.buyer, ViewingInput{PropertyID: id, SlotID: slot.ID})
	require.NoError(t, err)

	_, err = f.svc.UpdateViewingStatus(ctx, f.other, viewing.ID, "ACCEPTED")
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	_, err = f.svc.UpdateViewingStatus(ctx, f.buyer, viewing.ID, "ACCEPTED")
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	_, err = f.svc.UpdateViewingStatus(ctx, f.seller, viewing.ID, "PENDING")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.UpdateViewingStatus(ctx, f.seller, "missing", "ACCEPTED")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	accepted, err := f.svc.UpdateViewingStatus(ctx, f.seller, viewing.ID, "accepted")
	require.NoError(t, err)
	assert.Equal(t, models.ViewingStatusAccepted, accepted.Status)
	assert.True(t, f.slotBooked(t, slot.ID))
	notes := f.notifications(t, f.buyer.UserID, models.NotificationTypeAppointmentAccepted)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "seller")

	_, err = f.svc.UpdateViewingStatus(ctx, f.seller, viewing.ID, "ACCEPTED")
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	_, err = f.svc.UpdateViewingStatus(ctx, f.other, viewing.ID, "CANCELLED")
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	cancelled, err := f.svc.UpdateViewingStatus(ctx, f.buyer, viewing.ID, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, models.ViewingStatusCancelled, cancelled.Status)
	assert.False(t, f.slotBooked(t, slot.ID))
	assert.Len(t, f.notifications(t, f.seller.UserID, models.NotificationTypeAppointmentCancelled), 1)

	_, err = f.svc.UpdateViewingStatus(ctx, f.seller, viewing.ID, "REJECTED")
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	// the released slot can be booked again, and a rejection releases it once more
	again, err := f.svc.ScheduleViewing(ctx, f.other, ViewingInput{PropertyID: id, SlotID: slot.ID})
	require.NoError(t, err)
	_, err = f.svc.UpdateViewingStatus(ctx, f.admin, again.ID, "REJECTED")
	require.NoError(t, err)
	assert.False(t, f.slotBooked(t, slot.ID))
	assert.Len(t, f.notifications(t, f.other.UserID, models.NotificationTypeAppointmentRejected), 1)
}

func TestViewingLists(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, f.seller, input("Βίλα", "Μύκονος", 300))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.other, input("Αποθήκη", "Πειραιάς", 90))
	require.NoError(t, err)

	book := func(owner, buyer auth.Principal, propertyID string) *models.ViewingRequest {
		slot, err := f.svc.AddSlot(ctx, owner, propertyID, SlotInput{Date: nextWeek(), StartTime: "09:00", EndTime: "09:30"})
		require.NoError(t, err)
		v, err := f.svc.ScheduleViewing(ctx, buyer, ViewingInput{PropertyID: propertyID, SlotID: slot.ID})
		require.NoError(t, err)
		return v
	}
	v1 := book(f.seller, f.buyer, first.Property.ID)
	book(f.other, f.buyer, second.Property.ID)
	_, err = f.svc.UpdateViewingStatus(ctx, f.seller, v1.ID, "ACCEPTED")
	require.NoError(t, err)

	mine, total, err := f.svc.MyViewings(ctx, f.buyer, ViewingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)

	sellerList, total, err := f.svc.SellerViewings(ctx, f.seller, ViewingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, sellerList, 1)
	require.NotNil(t, sellerList[0].Property)
	assert.Equal(t, "Βίλα", sellerList[0].Property.Title)
	require.NotNil(t, sellerList[0].Buyer)
	assert.Equal(t, f.buyer.UserID, sellerList[0].Buyer.ID)

	_, _, err = f.svc.AllViewings(ctx, f.seller, ViewingFilter{})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	all, total, err := f.svc.AllViewings(ctx, f.admin, ViewingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	_, total, err = f.svc.AllViewings(ctx, f.admin, ViewingFilter{Status: "accepted"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	_, total, err = f.svc.AllViewings(ctx, f.admin, ViewingFilter{SellerID: f.other.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	filtered, total, err := f.svc.AllViewings(ctx, f.admin, ViewingFilter{Search: "mykonos"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, filtered)
	_, total, err = f.svc.AllViewings(ctx, f.admin, ViewingFilter{Search: "ύκονος"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, _, err = f.svc.AllViewings(ctx, f.admin, ViewingFilter{Status: "LOST"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.seller, input("Ρετιρέ", "Θεσσαλονίκη", 110))
	require.NoError(t, err)
	id := created.Property.ID

	interested := func() int64 {
		var stats models.PropertyStats
		require.NoError(t, f.db.Where("property_id = ?", id).First(&stats).Error)
		return stats.InterestedCount
	}

	saved, err := f.svc.ToggleFavorite(ctx, f.buyer, id)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, int64(1), interested())

	list, err := f.svc.Favorites(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	saved, err = f.svc.ToggleFavorite(ctx, f.buyer, id)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Zero(t, interested())
	list, err = f.svc.Favorites(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.ToggleFavorite(ctx, f.buyer, "missing")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	// listings hidden by moderation drop out of the list
	_, err = f.svc.ToggleFavorite(ctx, f.buyer, id)
	require.NoError(t, err)
	_, err = f.svc.Moderate(ctx, f.admin, id, ActionReject, "")
	require.NoError(t, err)
	list, err = f.svc.Favorites(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = f.svc.ToggleFavorite(ctx, f.buyer, id)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestModerate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.seller, input("Λοφτ", "Ηράκλειο", 95))
	require.NoError(t, err)
	id := created.Property.ID

	_, err = f.svc.Moderate(ctx, f.seller, id, ActionApprove, "")
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	_, err = f.svc.Moderate(ctx, f.admin, id, ModerationAction("archive"), "")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.Moderate(ctx, f.admin, "missing", ActionApprove, "")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	res, err := f.svc.Moderate(ctx, f.admin, id, ActionRequestInfo, "Ανεβάστε το τοπογραφικό")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusInfoRequested, res.Property.Status)
	notes := f.notifications(t, f.seller.UserID, models.NotificationTypeInfoRequest)
	require.Len(t, notes, 1)
	assert.Equal(t, "Ανεβάστε το τοπογραφικό", notes[0].Message)
	_, err = f.svc.Get(ctx, &f.buyer, id)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	res, err = f.svc.Moderate(ctx, f.admin, id, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, "Το ακίνητο εγκρίθηκε επιτυχώς", res.Message)
	assert.Equal(t, models.PropertyStatusActive, res.Property.Status)
	assert.True(t, res.Property.IsVerified)
	_, err = f.svc.Get(ctx, &f.buyer, id)
	assert.NoError(t, err)

	res, err = f.svc.Moderate(ctx, f.admin, id, ActionReject, "")
	require.NoError(t, err)
	assert.False(t, res.Property.IsVerified)
	assert.Len(t, f.notifications(t, f.seller.UserID, models.NotificationTypeStatusChange), 2)

	// only an admin reopens a rejected listing
	_, err = f.svc.Update(ctx, f.seller, id, Input{Status: str("active")})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	_, err = f.svc.Update(ctx, f.seller, id, Input{Title: str("Λοφτ με αυλή")})
	assert.NoError(t, err)
	_, err = f.svc.Update(ctx, f.admin, id, Input{Status: str("active")})
	assert.NoError(t, err)

	history, err := f.svc.History(ctx, f.admin, id, 0)
	require.NoError(t, err)
	var statuses int
	for _, c := range history {
		if c.ChangeType == models.ChangeTypeStatus {
			statuses++
		}
	}
	assert.Equal(t, 4, statuses)

	var queued int64
	require.NoError(t, f.db.Model(&models.SearchIndexTask{}).Where("property_id = ?", id).Count(&queued).Error)
	assert.GreaterOrEqual(t, queued, int64(5))

	action, ok := ParseModerationAction(" Request-Info ")
	assert.True(t, ok)
	assert.Equal(t, ActionRequestInfo, action)
}
