package support

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   *Service
	user  auth.Principal
	other auth.Principal
	admin auth.Principal
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	u := dbtest.CreateUser(t, db, "nikos", models.RoleBuyer)
	o := dbtest.CreateUser(t, db, "katerina", models.RoleSeller)
	a := dbtest.CreateUser(t, db, "admin", models.RoleAdmin)
	return &fixture{
		db:    db,
		svc:   NewService(db, notify.NewService(db, nil)),
		user:  auth.Principal{UserID: u.ID, Role: models.RoleBuyer},
		other: auth.Principal{UserID: o.ID, Role: models.RoleSeller},
		admin: auth.Principal{UserID: a.ID, Role: models.RoleAdmin},
	}
}

func (f *fixture) ticket(t *testing.T) *models.SupportTicket {
	ticket, err := f.svc.CreateTicket(context.Background(), f.user, CreateTicketRequest{
		Title:       "Πρόβλημα με τη συναλλαγή",
		Description: "Δεν βλέπω την πρόοδο",
		Category:    "transaction_issue",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.ticket(t)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.Equal(t, models.TicketCategoryTransactionIssue, ticket.Category)
	assert.Equal(t, models.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, f.user.UserID, ticket.CreatedBy)

	_, err := f.svc.CreateTicket(ctx, f.user, CreateTicketRequest{Title: "x"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.CreateTicket(ctx, f.user, CreateTicketRequest{Title: "x", Description: "y", Priority: "whenever"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	// only admins open tickets for someone else
	_, err = f.svc.CreateTicket(ctx, f.user, CreateTicketRequest{UserID: f.other.UserID, Title: "x", Description: "y"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	onBehalf, err := f.svc.CreateTicket(ctx, f.admin, CreateTicketRequest{UserID: f.other.UserID, Title: "x", Description: "y"})
	require.NoError(t, err)
	assert.Equal(t, f.other.UserID, onBehalf.UserID)
	assert.Equal(t, f.admin.UserID, onBehalf.CreatedBy)
}

func TestListAndUpdateTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t)
	_, err := f.svc.CreateTicket(ctx, f.other, CreateTicketRequest{Title: "a", Description: "b"})
	require.NoError(t, err)

	own, err := f.svc.ListTickets(ctx, f.user, TicketFilter{Status: "all"})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, ticket.ID, own[0].ID)

	all, err := f.svc.ListTickets(ctx, f.admin, TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.UpdateTicket(ctx, f.user, ticket.ID, UpdateTicketRequest{Status: "CLOSED"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	// no transition table: CLOSED can go straight back to OPEN
	updated, err := f.svc.UpdateTicket(ctx, f.admin, ticket.ID, UpdateTicketRequest{Status: "closed", Priority: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusClosed, updated.Status)
	assert.Equal(t, models.TicketPriorityUrgent, updated.Priority)
	updated, err = f.svc.UpdateTicket(ctx, f.admin, ticket.ID, UpdateTicketRequest{Status: "OPEN"})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, updated.Status)

	_, err = f.svc.UpdateTicket(ctx, f.admin, ticket.ID, UpdateTicketRequest{Status: "ARCHIVED"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.UpdateTicket(ctx, f.admin, "missing", UpdateTicketRequest{Status: "OPEN"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	closed, err := f.svc.ListTickets(ctx, f.admin, TicketFilter{Status: "CLOSED"})
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func TestMessageRoleGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t)

	_, err := f.svc.PostMessage(ctx, f.other, PostMessageRequest{TicketID: ticket.ID, Content: "hi"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	_, err = f.svc.Messages(ctx, f.other, ticket.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = f.svc.PostMessage(ctx, f.user, PostMessageRequest{TicketID: "missing", Content: "hi"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	_, err = f.svc.PostMessage(ctx, f.user, PostMessageRequest{TicketID: ticket.ID})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	msg, err := f.svc.PostMessage(ctx, f.user, PostMessageRequest{TicketID: ticket.ID, Content: "Ευχαριστώ"})
	require.NoError(t, err)
	assert.False(t, msg.IsFromAdmin)

	var n int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&n).Error)
	assert.Zero(t, n, "user messages do not notify")

	_, err = f.svc.PostMessage(ctx, f.admin, PostMessageRequest{TicketID: ticket.ID, Content: "Το εξετάζουμε"})
	require.NoError(t, err)

	thread, err := f.svc.Messages(ctx, f.user, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "Ευχαριστώ", thread[0].Content)
	assert.True(t, thread[1].IsFromAdmin)
	require.NotNil(t, thread[1].Sender)
	assert.Equal(t, "admin", thread[1].Sender.Name)

	got, err := f.svc.GetTicket(ctx, f.admin, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MessageCount)
}

func TestAdminReplyNotifiesOwnerWithPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t)

	long := strings.Repeat("α", 150)
	msg, err := f.svc.PostMessage(ctx, f.admin, PostMessageRequest{TicketID: ticket.ID, Content: long})
	require.NoError(t, err)
	assert.True(t, msg.IsFromAdmin)

	var notes []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.user.UserID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationTypeSupportMessage, notes[0].Type)
	assert.Equal(t, "Νέο Μήνυμα Υποστήριξης", notes[0].Title)
	assert.True(t, strings.HasSuffix(notes[0].Message, "\n\n"+strings.Repeat("α", 100)+"..."))
	assert.Equal(t, long, notes[0].Metadata["fullMessage"])
}

func TestMultipleChoiceMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t)

	kept, err := f.svc.PostMessage(ctx, f.admin, PostMessageRequest{
		TicketID: ticket.ID, Content: "Επιλέξτε", IsMultipleChoice: true, Options: []string{"Ναι", " ", "Όχι"},
	})
	require.NoError(t, err)
	require.NotNil(t, kept.Metadata)
	assert.Equal(t, []string{"Ναι", "Όχι"}, kept.Metadata["options"])

	dropped, err := f.svc.PostMessage(ctx, f.admin, PostMessageRequest{
		TicketID: ticket.ID, Content: "Επιλέξτε", IsMultipleChoice: true, Options: []string{"Ναι", ""},
	})
	require.NoError(t, err)
	assert.Nil(t, dropped.Metadata)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	exact := strings.Repeat("β", 100)
	assert.Equal(t, exact, preview(exact))
	assert.Equal(t, exact+"...", preview(exact+"γ"))
}
