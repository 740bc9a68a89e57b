package service

import (
	"context"
	"errors"
	"testing"

	"bookswap/internal/mail"
	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Notify(t *testing.T) {
	ctx := context.Background()
	email := &EmailSpec{To: "bram@example.com", Kind: mail.KindRequestRejected, Data: mail.Data{BorrowerName: "Bram", BookTitle: "Dune"}}

	t.Run("stores publishes and emails", func(t *testing.T) {
		h := newHarness(t)
		user := testutil.CreateUser(t, h.db, "Bram")

		n, err := h.dispatcher.Notify(ctx, Event{
			UserID: user.ID, Type: models.NotificationRequestRejected, Title: "Book Request Rejected",
			Message: "Your request for 'Dune' has been rejected.", Target: models.LoanRequestTarget(3), Email: email,
		})
		require.NoError(t, err)
		assert.NotZero(t, n.ID)
		assert.True(t, n.EmailSent)
		assert.Equal(t, 1, h.publisher.count())

		stored := h.notificationsFor(t, user.ID)
		require.Len(t, stored, 1)
		assert.True(t, stored[0].EmailSent)
		assert.Equal(t, models.TargetLoanRequest, stored[0].Target.Kind)
	})

	t.Run("email failure keeps the notification", func(t *testing.T) {
		h := newHarness(t)
		user := testutil.CreateUser(t, h.db, "Bram")
		h.mailer.Fail = func(mail.Message) error { return errors.New("mailbox unavailable") }

		n, err := h.dispatcher.Notify(ctx, Event{UserID: user.ID, Type: models.NotificationRequestRejected, Title: "t", Message: "m", Email: email})
		require.NoError(t, err)
		assert.False(t, n.EmailSent)
		stored := h.notificationsFor(t, user.ID)
		require.Len(t, stored, 1)
		assert.False(t, stored[0].EmailSent)
	})

	t.Run("publish failure is not returned", func(t *testing.T) {
		h := newHarness(t)
		user := testutil.CreateUser(t, h.db, "Bram")
		h.publisher.err = errors.New("redis down")

		_, err := h.dispatcher.Notify(ctx, Event{UserID: user.ID, Type: models.NotificationMessageReceived, Title: "t", Message: "m"})
		require.NoError(t, err)
		assert.Len(t, h.notificationsFor(t, user.ID), 1)
	})

	t.Run("no mailer skips email", func(t *testing.T) {
		h := newHarness(t)
		user := testutil.CreateUser(t, h.db, "Bram")
		d := NewDispatcher(h.notifications, nil, nil)

		n, err := d.Notify(ctx, Event{UserID: user.ID, Type: models.NotificationRequestRejected, Title: "t", Message: "m", Email: email})
		require.NoError(t, err)
		assert.False(t, n.EmailSent)
	})

	t.Run("insert failure is returned", func(t *testing.T) {
		pub := &publisherStub{}
		rec := &mail.Recorder{}
		d := NewDispatcher(failingNotifications{}, pub, rec)

		_, err := d.Notify(ctx, Event{UserID: 1, Type: models.NotificationRequestRejected, Title: "t", Message: "m", Email: email})
		require.Error(t, err)
		assert.Zero(t, pub.count())
		assert.Empty(t, rec.Sent())
	})
}

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *models.Notification) error {
	return models.NewInternalError(errors.New("insert failed"))
}
