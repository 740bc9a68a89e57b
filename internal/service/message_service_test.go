package service

import (
	"context"
	"strings"
	"testing"

	"bookswap/internal/models"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageService_Thread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	stranger := testutil.CreateUser(t, h.db, "Stan")
	req := testutil.CreateRequest(t, h.db, testutil.CreateBook(t, h.db, owner.ID, "Dune"), borrower.ID)
	svc := NewMessageService(h.loans, h.messages, h.users, h.dispatcher)

	m, err := svc.Send(ctx, borrower.ID, req.ID, "  Is Saturday ok for pickup?  ")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, m.ReceiverID)
	assert.Equal(t, "Is Saturday ok for pickup?", m.Body)

	_, err = svc.Send(ctx, owner.ID, req.ID, "Saturday works.")
	require.NoError(t, err)

	notes := h.notificationsFor(t, owner.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationMessageReceived, notes[0].Type)
	assert.Equal(t, "Bram sent you a message about 'Dune'", notes[0].Message)
	assert.Empty(t, h.mailer.Sent())

	thread, err := svc.List(ctx, owner.ID, req.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, borrower.ID, thread[0].SenderID)
	assert.Equal(t, owner.ID, thread[1].SenderID)

	_, err = svc.List(ctx, stranger.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = svc.Send(ctx, stranger.ID, req.ID, "hello")
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = svc.Send(ctx, borrower.ID, req.ID, "   ")
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = svc.Send(ctx, borrower.ID, req.ID, strings.Repeat("m", models.MaxMessageBodyLength+1))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
