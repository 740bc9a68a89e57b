package service

import (
	"context"
	"errors"
	"testing"

	"bookswap/internal/featureflags"
	"bookswap/internal/mail"
	"bookswap/internal/models"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanService_CreateNotifiesOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")

	req, err := h.loanService(nil).Create(ctx, borrower.ID, CreateLoanInput{
		BookID:      book.ID,
		RequestType: models.RequestTypeBorrow,
		Message:     "  Could I borrow this next week?  ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusPending, req.Status)
	assert.Equal(t, owner.ID, req.OwnerID)
	assert.Equal(t, "Could I borrow this next week?", req.Message)
	assert.Nil(t, req.DueDate)

	notes := h.notificationsFor(t, owner.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationRequestReceived, notes[0].Type)
	assert.Equal(t, "New Book Request", notes[0].Title)
	assert.Equal(t, "Bram has requested to borrow 'Dune'", notes[0].Message)
	assert.Equal(t, models.LoanRequestTarget(req.ID), notes[0].Target)
	assert.True(t, notes[0].EmailSent)

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, owner.Email, sent[0].To)
	assert.Equal(t, mail.KindRequestReceived, sent[0].Kind)
	assert.Contains(t, sent[0].Body, "Could I borrow this next week?")
	assert.Equal(t, 1, h.publisher.count())
}

func TestLoanService_CreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	lent := testutil.CreateBook(t, h.db, owner.ID, "Emma")
	testutil.CreateApprovedLoan(t, h.db, lent, testutil.CreateUser(t, h.db, "Cleo").ID, fixedNow.AddDate(0, 0, 5))
	otherBorrowerBook := testutil.CreateBook(t, h.db, borrower.ID, "Ulysses")
	svc := h.loanService(nil)

	_, err := svc.Create(ctx, borrower.ID, CreateLoanInput{BookID: book.ID, RequestType: models.RequestTypeBorrow})
	require.NoError(t, err)

	long := make([]rune, models.MaxRequestMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name  string
		actor uint
		in    CreateLoanInput
		code  string
	}{
		{"anonymous", 0, CreateLoanInput{BookID: book.ID, RequestType: models.RequestTypeBorrow}, models.CodeUnauthorized},
		{"unknown type", borrower.ID, CreateLoanInput{BookID: book.ID, RequestType: "rent"}, models.CodeValidation},
		{"message too long", borrower.ID, CreateLoanInput{BookID: book.ID, RequestType: models.RequestTypeBorrow, Message: string(long)}, models.CodeValidation},
		{"own book", owner.ID, CreateLoanInput{BookID: book.ID, RequestType: models.RequestTypeBorrow}, models.CodeValidation},
		{"book lent out", borrower.ID, CreateLoanInput{BookID: lent.ID, RequestType: models.RequestTypeBorrow}, models.CodeValidation},
		{"duplicate active request", borrower.ID, CreateLoanInput{BookID: book.ID, RequestType: models.RequestTypeBorrow}, models.CodeValidation},
		{"missing book", borrower.ID, CreateLoanInput{BookID: 9999, RequestType: models.RequestTypeBorrow}, models.CodeNotFound},
		{"swap without book", owner.ID, CreateLoanInput{BookID: otherBorrowerBook.ID, RequestType: models.RequestTypeSwap}, models.CodeValidation},
		{"swap with someone else's book", owner.ID, CreateLoanInput{BookID: otherBorrowerBook.ID, RequestType: models.RequestTypeSwap, SwapBookID: &otherBorrowerBook.ID}, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, tt.in)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoanService_Swap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	offered := testutil.CreateBook(t, h.db, borrower.ID, "Ulysses")
	in := CreateLoanInput{BookID: book.ID, RequestType: models.RequestTypeSwap, SwapBookID: &offered.ID}

	t.Run("disabled by flag", func(t *testing.T) {
		_, err := h.loanService(featureflags.NewManager("swap_requests=off")).Create(ctx, borrower.ID, in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Swap requests are currently disabled")
	})

	t.Run("enabled by default", func(t *testing.T) {
		req, err := h.loanService(nil).Create(ctx, borrower.ID, in)
		require.NoError(t, err)
		require.NotNil(t, req.SwapBookID)
		assert.Equal(t, offered.ID, *req.SwapBookID)

		notes := h.notificationsFor(t, owner.ID)
		require.NotEmpty(t, notes)
		assert.Equal(t, "Bram has requested to swap 'Dune'", notes[len(notes)-1].Message)
	})
}

func TestLoanService_ApproveThenReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	pending := testutil.CreateRequest(t, h.db, book, borrower.ID)
	svc := h.loanService(nil)

	approved, err := svc.Approve(ctx, owner.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, approved.Status)
	require.NotNil(t, approved.DueDate)
	assert.Equal(t, fixedNow.Add(models.DefaultLoanPeriod), approved.DueDate.UTC())

	stored, err := h.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusLentOut, stored.Status)

	notes := h.notificationsFor(t, borrower.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationRequestApproved, notes[0].Type)
	assert.Equal(t, "Your request for 'Dune' has been approved. Due date: Mar 24, 2026", notes[0].Message)
	require.Len(t, h.mailer.Sent(), 1)
	assert.Equal(t, borrower.Email, h.mailer.Sent()[0].To)
	assert.Contains(t, h.mailer.Sent()[0].Body, "March 24, 2026")

	returned, err := svc.Return(ctx, owner.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	stored, err = h.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusAvailable, stored.Status)

	notes = h.notificationsFor(t, borrower.ID)
	require.Len(t, notes, 2)
	assert.Equal(t, "The book 'Dune' has been marked as returned.", notes[1].Message)
}

func TestLoanService_SecondApproveRefused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	first := testutil.CreateRequest(t, h.db, book, testutil.CreateUser(t, h.db, "Bram").ID)
	second := testutil.CreateRequest(t, h.db, book, testutil.CreateUser(t, h.db, "Cleo").ID)
	svc := h.loanService(nil)

	_, err := svc.Approve(ctx, owner.ID, first.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, owner.ID, second.ID)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, models.LoanStatusPending, h.reload(t, second.ID).Status)
}

func TestLoanService_TransitionGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	pending := testutil.CreateRequest(t, h.db, book, borrower.ID)
	svc := h.loanService(nil)

	t.Run("borrower cannot approve", func(t *testing.T) {
		_, err := svc.Approve(ctx, borrower.ID, pending.ID)
		assert.True(t, models.IsCode(err, models.CodeForbidden))
		assert.Equal(t, models.LoanStatusPending, h.reload(t, pending.ID).Status)
		stored, err := h.books.GetByID(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookStatusAvailable, stored.Status)
	})
	t.Run("pending cannot be returned", func(t *testing.T) {
		_, err := svc.Return(ctx, owner.ID, pending.ID)
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})
	t.Run("rejected cannot be approved", func(t *testing.T) {
		rejected, err := svc.Reject(ctx, owner.ID, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanStatusRejected, rejected.Status)

		_, err = svc.Approve(ctx, owner.ID, pending.ID)
		assert.True(t, models.IsCode(err, models.CodeValidation))

		stored, err := h.books.GetByID(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookStatusAvailable, stored.Status)
	})
	t.Run("missing request", func(t *testing.T) {
		_, err := svc.Reject(ctx, owner.ID, 4242)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestLoanService_GetRequiresParty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	stranger := testutil.CreateUser(t, h.db, "Stan")
	req := testutil.CreateRequest(t, h.db, testutil.CreateBook(t, h.db, owner.ID, "Dune"), borrower.ID)
	svc := h.loanService(nil)

	got, err := svc.Get(ctx, borrower.ID, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Book)
	assert.Equal(t, "Dune", got.Book.Title)

	_, err = svc.Get(ctx, stranger.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	incoming, err := svc.ListIncoming(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, incoming, 1)
	outgoing, err := svc.ListOutgoing(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
}

func TestLoanService_SaveFailureEmitsNothing(t *testing.T) {
	sink := &sinkStub{}
	loans := &loanRepoStub{
		getByIDFn: func(context.Context, uint) (*models.LoanRequest, error) {
			return &models.LoanRequest{ID: 7, BookID: 3, OwnerID: 1, BorrowerID: 2, Status: models.LoanStatusPending}, nil
		},
		saveFn: func(context.Context, *models.LoanRequest) error {
			return models.NewInternalError(errors.New("disk full"))
		},
	}
	books := &bookRepoStub{}
	svc := NewLoanService(nil, books, loans, nil, sink, nil, 0)
	svc.now = clock

	_, err := svc.Approve(context.Background(), 1, 7)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.Empty(t, sink.events)
}

func TestLoanService_NotifyFailureDoesNotFailTransition(t *testing.T) {
	sink := &sinkStub{err: errors.New("notifications table locked")}
	loans := &loanRepoStub{
		getByIDFn: func(context.Context, uint) (*models.LoanRequest, error) {
			return &models.LoanRequest{ID: 7, BookID: 3, OwnerID: 1, BorrowerID: 2, Status: models.LoanStatusPending}, nil
		},
	}
	books := &bookRepoStub{}
	svc := NewLoanService(nil, books, loans, nil, sink, nil, 0)
	svc.now = clock

	req, err := svc.Approve(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, req.Status)
	assert.Equal(t, models.BookStatusLentOut, books.statuses[3])
	assert.Equal(t, []uint{3}, books.locked, "approve locks the book row")
}
