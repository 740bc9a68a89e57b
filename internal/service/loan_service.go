package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bookswap/internal/featureflags"
	"bookswap/internal/mail"
	"bookswap/internal/models"
	"bookswap/internal/observability"
	"bookswap/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// approvedDateLayout formats the due date inside the approval notification.
const approvedDateLayout = "Jan 02, 2006"

// CreateLoanInput is a borrower's request for a book.
type CreateLoanInput struct {
	BookID      uint
	RequestType models.RequestType
	Message     string
	SwapBookID  *uint
}

// LoanService runs the book request lifecycle. Every mutation is made on
// behalf of an explicit actor.
type LoanService struct {
	db         *gorm.DB
	books      repository.BookRepository
	loans      repository.LoanRepository
	users      repository.UserRepository
	events     EventSink
	flags      *featureflags.Manager
	loanPeriod time.Duration
	now        func() time.Time
}

// NewLoanService wires the lifecycle. A zero loanPeriod means models.DefaultLoanPeriod.
func NewLoanService(
	db *gorm.DB,
	books repository.BookRepository,
	loans repository.LoanRepository,
	users repository.UserRepository,
	events EventSink,
	flags *featureflags.Manager,
	loanPeriod time.Duration,
) *LoanService {
	if loanPeriod <= 0 {
		loanPeriod = models.DefaultLoanPeriod
	}
	return &LoanService{
		db:         db,
		books:      books,
		loans:      loans,
		users:      users,
		events:     events,
		flags:      flags,
		loanPeriod: loanPeriod,
		now:        utcNow,
	}
}

func (s *LoanService) validateCreate(actorID uint, in CreateLoanInput) error {
	if actorID == 0 {
		return models.NewUnauthorizedError("You must be logged in to request a book")
	}
	if !in.RequestType.Valid() {
		return models.NewValidationError("Request type must be borrow or swap")
	}
	if utf8.RuneCountInString(in.Message) > models.MaxRequestMessageLength {
		return models.NewValidationError(fmt.Sprintf("Message must be at most %d characters", models.MaxRequestMessageLength))
	}
	if in.RequestType == models.RequestTypeSwap {
		if !s.flags.Enabled(featureflags.SwapRequests, actorID) {
			return models.NewValidationError("Swap requests are currently disabled")
		}
		if in.SwapBookID == nil || *in.SwapBookID == 0 {
			return models.NewValidationError("Please select a book to swap")
		}
	}
	return nil
}

// Create opens a pending request from actorID and notifies the owner.
func (s *LoanService) Create(ctx context.Context, actorID uint, in CreateLoanInput) (*models.LoanRequest, error) {
	if err := s.validateCreate(actorID, in); err != nil {
		return nil, err
	}
	span, ctx := observability.NewSpan(ctx, "loan.create",
		attribute.Int64("book_id", int64(in.BookID)), attribute.String("request_type", string(in.RequestType)))
	defer span.End()

	var req *models.LoanRequest
	err := inTx(ctx, s.db, func(ctx context.Context) error {
		book, err := s.books.GetForUpdate(ctx, in.BookID)
		if err != nil {
			return err
		}
		if book.UserID == actorID {
			return models.NewValidationError("You cannot request your own book")
		}
		if book.Status != models.BookStatusAvailable {
			return models.NewValidationError("This book is not available")
		}
		active, err := s.loans.HasActive(ctx, book.ID, actorID)
		if err != nil {
			return err
		}
		if active {
			return models.NewValidationError("You already have a pending or approved request for this book")
		}

		var swapBookID *uint
		if in.RequestType == models.RequestTypeSwap {
			swap, err := s.books.GetByID(ctx, *in.SwapBookID)
			if err != nil {
				if models.IsCode(err, models.CodeNotFound) {
					return models.NewValidationError("The selected swap book does not exist")
				}
				return err
			}
			switch {
			case swap.ID == book.ID:
				return models.NewValidationError("You cannot swap a book for itself")
			case swap.UserID != actorID:
				return models.NewValidationError("You can only offer your own books for a swap")
			case swap.Status != models.BookStatusAvailable:
				return models.NewValidationError("The selected book must be available")
			}
			swapBookID = &swap.ID
		}

		req = &models.LoanRequest{
			BookID:      book.ID,
			Book:        book,
			BorrowerID:  actorID,
			OwnerID:     book.UserID,
			RequestType: in.RequestType,
			SwapBookID:  swapBookID,
			Status:      models.LoanStatusPending,
			Message:     strings.TrimSpace(in.Message),
		}
		return s.loans.Create(ctx, req)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordTransition("create")

	s.notifyCreated(ctx, req)
	return req, nil
}

func (s *LoanService) notifyCreated(ctx context.Context, req *models.LoanRequest) {
	borrower, owner := s.parties(ctx, req)
	verb := "borrow"
	if req.RequestType == models.RequestTypeSwap {
		verb = "swap"
	}
	ev := Event{
		UserID:  req.OwnerID,
		Type:    models.NotificationRequestReceived,
		Title:   "New Book Request",
		Message: fmt.Sprintf("%s has requested to %s '%s'", borrower.Name, verb, req.Book.Title),
		Target:  models.LoanRequestTarget(req.ID),
	}
	if owner.Email != "" {
		ev.Email = &EmailSpec{To: owner.Email, Kind: mail.KindRequestReceived, Data: emailData(req, borrower, owner)}
	}
	notifyAfterCommit(ctx, s.events, ev)
}

// transition loads the request under lock, checks the owner, applies mutate
// and saves the request. mutate may also touch the book.
func (s *LoanService) transition(
	ctx context.Context,
	actorID, requestID uint,
	name string,
	mutate func(ctx context.Context, req *models.LoanRequest, now time.Time) error,
) (*models.LoanRequest, error) {
	if actorID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in")
	}
	span, ctx := observability.NewSpan(ctx, "loan."+name, attribute.Int64("request_id", int64(requestID)))
	defer span.End()

	var req *models.LoanRequest
	err := inTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		req, err = s.loans.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != actorID {
			return models.NewForbiddenError("Only the book owner can " + name + " this request")
		}
		if err := mutate(ctx, req, s.now()); err != nil {
			return err
		}
		return s.loans.Save(ctx, req)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordTransition(name)
	return req, nil
}

// Approve starts the loan clock and marks the book lent out.
func (s *LoanService) Approve(ctx context.Context, actorID, requestID uint) (*models.LoanRequest, error) {
	req, err := s.transition(ctx, actorID, requestID, "approve", func(ctx context.Context, req *models.LoanRequest, now time.Time) error {
		if req.Status != models.LoanStatusPending {
			return models.NewValidationError(fmt.Sprintf("Only pending requests can be approved (request is %s)", req.Status))
		}
		// Approvals of the same book queue on the book row.
		if _, err := s.books.GetForUpdate(ctx, req.BookID); err != nil {
			return err
		}
		held, err := s.loans.ApprovedForBook(ctx, req.BookID, req.ID)
		if err != nil {
			return err
		}
		if held {
			return models.NewValidationError("This book is already lent out on another request")
		}
		if err := req.Approve(now, s.loanPeriod); err != nil {
			return err
		}
		if err := s.books.SetStatus(ctx, req.BookID, models.BookStatusLentOut); err != nil {
			return err
		}
		if req.Book != nil {
			req.Book.Status = models.BookStatusLentOut
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	borrower, owner := s.parties(ctx, req)
	ev := Event{
		UserID:  req.BorrowerID,
		Type:    models.NotificationRequestApproved,
		Title:   "Book Request Approved",
		Message: fmt.Sprintf("Your request for '%s' has been approved. Due date: %s", bookTitle(req), req.DueDate.UTC().Format(approvedDateLayout)),
		Target:  models.LoanRequestTarget(req.ID),
	}
	s.withBorrowerEmail(&ev, mail.KindRequestApproved, req, borrower, owner)
	notifyAfterCommit(ctx, s.events, ev)
	return req, nil
}

// Reject closes a pending request; the book is untouched.
func (s *LoanService) Reject(ctx context.Context, actorID, requestID uint) (*models.LoanRequest, error) {
	req, err := s.transition(ctx, actorID, requestID, "reject", func(_ context.Context, req *models.LoanRequest, _ time.Time) error {
		if req.Status != models.LoanStatusPending {
			return models.NewValidationError(fmt.Sprintf("Only pending requests can be rejected (request is %s)", req.Status))
		}
		return req.Reject()
	})
	if err != nil {
		return nil, err
	}

	borrower, owner := s.parties(ctx, req)
	ev := Event{
		UserID:  req.BorrowerID,
		Type:    models.NotificationRequestRejected,
		Title:   "Book Request Rejected",
		Message: fmt.Sprintf("Your request for '%s' has been rejected.", bookTitle(req)),
		Target:  models.LoanRequestTarget(req.ID),
	}
	s.withBorrowerEmail(&ev, mail.KindRequestRejected, req, borrower, owner)
	notifyAfterCommit(ctx, s.events, ev)
	return req, nil
}

// Return closes an approved loan and makes the book available again.
func (s *LoanService) Return(ctx context.Context, actorID, requestID uint) (*models.LoanRequest, error) {
	req, err := s.transition(ctx, actorID, requestID, "return", func(ctx context.Context, req *models.LoanRequest, now time.Time) error {
		if req.Status != models.LoanStatusApproved {
			return models.NewValidationError(fmt.Sprintf("Only approved requests can be returned (request is %s)", req.Status))
		}
		if err := req.MarkReturned(now); err != nil {
			return err
		}
		if err := s.books.SetStatus(ctx, req.BookID, models.BookStatusAvailable); err != nil {
			return err
		}
		if req.Book != nil {
			req.Book.Status = models.BookStatusAvailable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	borrower, owner := s.parties(ctx, req)
	ev := Event{
		UserID:  req.BorrowerID,
		Type:    models.NotificationBookReturned,
		Title:   "Book Returned",
		Message: fmt.Sprintf("The book '%s' has been marked as returned.", bookTitle(req)),
		Target:  models.LoanRequestTarget(req.ID),
	}
	s.withBorrowerEmail(&ev, mail.KindBookReturned, req, borrower, owner)
	notifyAfterCommit(ctx, s.events, ev)
	return req, nil
}

// Get returns a request visible to actorID, who must be one of its parties.
func (s *LoanService) Get(ctx context.Context, actorID, requestID uint) (*models.LoanRequest, error) {
	req, err := s.loans.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, models.NewForbiddenError("You are not a party to this request")
	}
	return req, nil
}

// ListIncoming returns requests for books owned by actorID, newest first.
func (s *LoanService) ListIncoming(ctx context.Context, actorID uint) ([]models.LoanRequest, error) {
	return s.loans.ListIncoming(ctx, actorID)
}

// ListOutgoing returns requests made by actorID, newest first.
func (s *LoanService) ListOutgoing(ctx context.Context, actorID uint) ([]models.LoanRequest, error) {
	return s.loans.ListOutgoing(ctx, actorID)
}

// parties resolves both users for notification text. Lookup failures yield
// empty users so a missing profile never blocks delivery of the in-app record.
func (s *LoanService) parties(ctx context.Context, req *models.LoanRequest) (borrower, owner *models.User) {
	borrower, owner = &models.User{ID: req.BorrowerID}, &models.User{ID: req.OwnerID}
	if s.users == nil {
		return borrower, owner
	}
	if u, err := s.users.GetByID(ctx, req.BorrowerID); err == nil {
		borrower = u
	}
	if u, err := s.users.GetByID(ctx, req.OwnerID); err == nil {
		owner = u
	}
	return borrower, owner
}

func (s *LoanService) withBorrowerEmail(ev *Event, kind mail.Kind, req *models.LoanRequest, borrower, owner *models.User) {
	if borrower.Email == "" {
		return
	}
	ev.Email = &EmailSpec{To: borrower.Email, Kind: kind, Data: emailData(req, borrower, owner)}
}

func emailData(req *models.LoanRequest, borrower, owner *models.User) mail.Data {
	d := mail.Data{
		OwnerName:      owner.Name,
		BorrowerName:   borrower.Name,
		BookTitle:      bookTitle(req),
		RequestMessage: req.Message,
	}
	if req.Book != nil {
		d.BookAuthor = req.Book.Author
	}
	if req.DueDate != nil {
		d.DueDate = req.DueDate.UTC().Format("January 02, 2006")
	}
	return d
}

func bookTitle(req *models.LoanRequest) string {
	if req.Book == nil {
		return fmt.Sprintf("book #%d", req.BookID)
	}
	return req.Book.Title
}
