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

func TestDisputeService_Lifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	admin := testutil.CreateAdmin(t, h.db, "Ada")
	loan := testutil.CreateReturnedLoan(t, h.db, testutil.CreateBook(t, h.db, owner.ID, "Dune"), borrower.ID)
	svc := NewDisputeService(h.db, h.loans, h.disputes, h.dispatcher)
	svc.now = clock

	d, err := svc.Open(ctx, owner.ID, OpenDisputeInput{RequestID: loan.ID, Title: "Water damage", Description: "Pages 10-40 are warped."})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, d.Status)
	assert.Equal(t, borrower.ID, d.ReportedUserID)

	reported := h.notificationsFor(t, borrower.ID)
	require.Len(t, reported, 1)
	assert.Equal(t, models.NotificationDisputeOpened, reported[0].Type)
	assert.Equal(t, models.DisputeTarget(d.ID), reported[0].Target)
	assert.Equal(t, models.LoanStatusReturned, h.reload(t, loan.ID).Status)

	d, err = svc.UpdateStatus(ctx, admin.ID, d.ID, UpdateDisputeInput{Status: models.DisputeStatusInReview})
	require.NoError(t, err)
	assert.Nil(t, d.ResolvedAt)

	d, err = svc.UpdateStatus(ctx, admin.ID, d.ID, UpdateDisputeInput{Status: models.DisputeStatusResolved, AdminNotes: "Borrower paid for a new copy."})
	require.NoError(t, err)
	require.NotNil(t, d.ResolvedAt)
	require.NotNil(t, d.ResolvedBy)
	assert.Equal(t, admin.ID, *d.ResolvedBy)
	assert.Equal(t, "Borrower paid for a new copy.", d.AdminNotes)

	reporter := h.notificationsFor(t, owner.ID)
	require.Len(t, reporter, 2)
	assert.Equal(t, "Your dispute 'Water damage' is now in review.", reporter[0].Message)
	assert.Equal(t, "Your dispute 'Water damage' is now resolved.", reporter[1].Message)

	_, err = svc.UpdateStatus(ctx, admin.ID, d.ID, UpdateDisputeInput{Status: models.DisputeStatusClosed})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	mine, err := svc.ListMine(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	open, total, err := svc.List(ctx, models.DisputeStatusOpen, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Zero(t, total)
}

func TestDisputeService_OpenValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	stranger := testutil.CreateUser(t, h.db, "Stan")
	loan := testutil.CreateRequest(t, h.db, testutil.CreateBook(t, h.db, owner.ID, "Dune"), borrower.ID)
	svc := NewDisputeService(h.db, h.loans, h.disputes, &sinkStub{})

	tests := []struct {
		name  string
		actor uint
		in    OpenDisputeInput
		code  string
	}{
		{"anonymous", 0, OpenDisputeInput{RequestID: loan.ID, Title: "t", Description: "d"}, models.CodeUnauthorized},
		{"missing title", borrower.ID, OpenDisputeInput{RequestID: loan.ID, Description: "d"}, models.CodeValidation},
		{"missing description", borrower.ID, OpenDisputeInput{RequestID: loan.ID, Title: "t"}, models.CodeValidation},
		{"description too long", borrower.ID, OpenDisputeInput{RequestID: loan.ID, Title: "t", Description: strings.Repeat("d", models.MaxDisputeDescriptionLength+1)}, models.CodeValidation},
		{"not a party", stranger.ID, OpenDisputeInput{RequestID: loan.ID, Title: "t", Description: "d"}, models.CodeForbidden},
		{"missing request", borrower.ID, OpenDisputeInput{RequestID: 777, Title: "t", Description: "d"}, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Open(ctx, tt.actor, tt.in)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, tt.code), "got %v", err)
		})
	}

	// Pending requests may be disputed too.
	_, err := svc.Open(ctx, borrower.ID, OpenDisputeInput{RequestID: loan.ID, Title: "No reply", Description: "Owner never answered."})
	assert.NoError(t, err)

	_, _, err = svc.List(ctx, "escalated", 0, 0)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = svc.UpdateStatus(ctx, 1, 1, UpdateDisputeInput{Status: "escalated"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
