package service

import (
	"context"
	"strings"
	"testing"

	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookInput_Validate(t *testing.T) {
	valid := BookInput{Title: "Dune", Author: "Frank Herbert", Condition: models.BookConditionGood}
	tests := []struct {
		name    string
		mutate  func(*BookInput)
		wantErr bool
	}{
		{"valid", func(*BookInput) {}, false},
		{"missing title", func(in *BookInput) { in.Title = "  " }, true},
		{"missing author", func(in *BookInput) { in.Author = "" }, true},
		{"title too long", func(in *BookInput) { in.Title = strings.Repeat("t", 256) }, true},
		{"author at limit", func(in *BookInput) { in.Author = strings.Repeat("a", 255) }, false},
		{"genre too long", func(in *BookInput) { in.Genre = strings.Repeat("g", 101) }, true},
		{"unknown condition", func(in *BookInput) { in.Condition = "Mint" }, true},
		{"empty condition defaults", func(in *BookInput) { in.Condition = "" }, false},
		{"description too long", func(in *BookInput) { in.Description = strings.Repeat("d", 1001) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			in.normalize()
			err := in.validate()
			if tt.wantErr {
				assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBookService_OwnerOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	other := testutil.CreateUser(t, h.db, "Bram")
	svc := NewBookService(h.db, h.books, h.loans)

	book, err := svc.Create(ctx, owner.ID, BookInput{Title: " Dune ", Author: "Frank Herbert", Location: "Leeds"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, models.BookStatusAvailable, book.Status)
	assert.Equal(t, models.BookConditionGood, book.Condition)

	_, err = svc.Update(ctx, other.ID, book.ID, BookInput{Title: "Mine now", Author: "x"})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	updated, err := svc.Update(ctx, owner.ID, book.ID, BookInput{Title: "Dune Messiah", Author: "Frank Herbert", Condition: models.BookConditionFair})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, models.BookStatusAvailable, updated.Status)

	mine, total, err := svc.ListMine(ctx, owner.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)

	found, _, err := svc.Search(ctx, repository.BookFilter{Query: "messiah"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	_, _, err = svc.Search(ctx, repository.BookFilter{Status: "Missing"})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	toggled, err := svc.ToggleStatus(ctx, owner.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusLentOut, toggled.Status)
	toggled, err = svc.ToggleStatus(ctx, owner.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusAvailable, toggled.Status)

	assert.True(t, models.IsCode(svc.Delete(ctx, other.ID, book.ID), models.CodeForbidden))
	require.NoError(t, svc.Delete(ctx, owner.ID, book.ID))
	_, err = svc.Get(ctx, book.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestBookService_ApprovedLoanHoldsBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	testutil.CreateApprovedLoan(t, h.db, book, borrower.ID, fixedNow.AddDate(0, 0, 7))
	svc := NewBookService(h.db, h.books, h.loans)

	_, err := svc.ToggleStatus(ctx, owner.ID, book.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.True(t, models.IsCode(svc.Delete(ctx, owner.ID, book.ID), models.CodeValidation))

	stored, err := svc.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusLentOut, stored.Status)
}

func TestBookService_CreateRequiresActor(t *testing.T) {
	h := newHarness(t)
	_, err := NewBookService(h.db, h.books, h.loans).Create(context.Background(), 0, BookInput{Title: "Dune", Author: "Frank Herbert"})
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}

// readHookBooks runs afterRead once, right after the first GetByID returns.
type readHookBooks struct {
	repository.BookRepository
	afterRead func()
}

func (r *readHookBooks) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	book, err := r.BookRepository.GetByID(ctx, id)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return book, err
}

func TestBookService_UpdateKeepsConcurrentApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	req := testutil.CreateRequest(t, h.db, book, borrower.ID)

	books := &readHookBooks{BookRepository: h.books}
	books.afterRead = func() {
		_, err := h.loanService(nil).Approve(ctx, owner.ID, req.ID)
		require.NoError(t, err)
	}
	svc := NewBookService(h.db, books, h.loans)

	updated, err := svc.Update(ctx, owner.ID, book.ID, BookInput{Title: "Dune (1965)", Author: "Frank Herbert"})
	require.NoError(t, err)
	assert.Equal(t, "Dune (1965)", updated.Title)
	assert.Equal(t, models.BookStatusLentOut, updated.Status)

	assert.Equal(t, models.LoanStatusApproved, h.reload(t, req.ID).Status)
	stored, err := h.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusLentOut, stored.Status)
}

func TestBookService_ToggleRefusedOncePendingIsApproved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "Olive")
	borrower := testutil.CreateUser(t, h.db, "Bram")
	book := testutil.CreateBook(t, h.db, owner.ID, "Dune")
	req := testutil.CreateRequest(t, h.db, book, borrower.ID)
	svc := NewBookService(h.db, h.books, h.loans)

	_, err := h.loanService(nil).Approve(ctx, owner.ID, req.ID)
	require.NoError(t, err)

	_, err = svc.ToggleStatus(ctx, owner.ID, book.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = svc.ToggleStatus(ctx, borrower.ID, book.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	stored, err := h.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusLentOut, stored.Status)
}
