package repository

import (
	"context"
	"testing"
	"time"

	"bookswap/internal/models"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_Lifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "me")
	other := testutil.CreateUser(t, db, "other")

	var created []*models.Notification
	for i, title := range []string{"first", "second", "third"} {
		n := &models.Notification{UserID: me.ID, Type: models.NotificationRequestReceived, Title: title, Message: "m", Target: models.LoanRequestTarget(uint(i + 1))}
		require.NoError(t, repo.Create(ctx, n))
		require.NoError(t, db.Model(n).Update("created_at", time.Now().Add(time.Duration(i)*time.Minute)).Error)
		created = append(created, n)
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: other.ID, Type: models.NotificationBookReturned, Title: "x", Message: "m"}))

	list, total, err := repo.ListForUser(ctx, me.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, models.TargetLoanRequest, list[0].Target.Kind)

	unread, err := repo.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkRead(ctx, created[0].ID, me.ID, now))
	err = repo.MarkRead(ctx, created[1].ID, other.ID, now)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "another user's notification")

	unread, err = repo.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	changed, err := repo.MarkAllRead(ctx, me.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	require.NoError(t, repo.MarkEmailSent(ctx, created[2].ID))
	var stored models.Notification
	require.NoError(t, db.First(&stored, created[2].ID).Error)
	assert.True(t, stored.EmailSent)
	assert.True(t, stored.Read)
	assert.NotNil(t, stored.ReadAt)

	assert.True(t, models.IsCode(repo.Delete(ctx, created[2].ID, other.ID), models.CodeNotFound))
	require.NoError(t, repo.Delete(ctx, created[2].ID, me.ID))
	_, total, err = repo.ListForUser(ctx, me.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
