// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"bookswap/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "BookSwap!demo2024"

var conditions = []models.BookCondition{
	models.BookConditionExcellent,
	models.BookConditionGood,
	models.BookConditionGood,
	models.BookConditionFair,
	models.BookConditionPoor,
}

var emailSafe = strings.NewReplacer(" ", "", "'", "")

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker
	hash string
	now  time.Time
	seq  int
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
// A zero opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	hash := DemoPassword
	if !opts.SkipBcrypt {
		h, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		hash = string(h)
	}

	return &Factory{
		db:     db,
		opts:   opts,
		fake:   gofakeit.New(seed),
		hash:   hash,
		now:    time.Now().UTC(),
		nextID: 1000,
	}, nil
}

func (f *Factory) create(what string, v any, assignID func(uint)) error {
	if f.opts.DryRun {
		f.nextID++
		assignID(f.nextID)
		log.Printf("[dry-run] %s: %+v", what, v)
		return nil
	}
	return f.db.Create(v).Error
}

// pastTime returns a moment within the last opts.MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.fake.Number(0, maxDays*24*60)) * time.Minute
	return f.now.Add(-back)
}

// CreateUser constructs and persists a member with a unique email.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	f.seq++
	first, last := f.fake.FirstName(), f.fake.LastName()
	user := &models.User{
		Name:      first + " " + last,
		Email:     strings.ToLower(emailSafe.Replace(fmt.Sprintf("%s.%s.%d@example.com", first, last, f.seq))),
		Password:  f.hash,
		Role:      models.UserRoleMember,
		Location:  f.fake.City(),
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.create("CreateUser", user, func(id uint) { user.ID = id }); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildBook returns an available listing for owner without persisting it.
func (f *Factory) BuildBook(owner *models.User, overrides ...func(*models.Book)) *models.Book {
	book := &models.Book{
		Title:       f.fake.BookTitle(),
		Author:      f.fake.BookAuthor(),
		Genre:       f.fake.BookGenre(),
		Condition:   conditions[f.fake.Number(0, len(conditions)-1)],
		Status:      models.BookStatusAvailable,
		Description: f.fake.Sentence(f.fake.Number(8, 20)),
		Location:    owner.Location,
		Image:       fmt.Sprintf("https://picsum.photos/seed/%s/400/600", f.fake.UUID()),
		UserID:      owner.ID,
		CreatedAt:   f.pastTime(),
	}
	for _, override := range overrides {
		override(book)
	}
	return book
}

// CreateBook persists a listing built by BuildBook.
func (f *Factory) CreateBook(owner *models.User, overrides ...func(*models.Book)) (*models.Book, error) {
	book := f.BuildBook(owner, overrides...)
	if err := f.create("CreateBook", book, func(id uint) { book.ID = id }); err != nil {
		return nil, err
	}
	return book, nil
}

// CreateRequest persists a request from borrower for book in the given status,
// with the timestamps that status implies. An approved request due in
// dueIn also marks the book lent out.
func (f *Factory) CreateRequest(book *models.Book, borrower *models.User, status models.LoanStatus, dueIn time.Duration) (*models.LoanRequest, error) {
	req := &models.LoanRequest{
		BookID:      book.ID,
		BorrowerID:  borrower.ID,
		OwnerID:     book.UserID,
		RequestType: models.RequestTypeBorrow,
		Status:      models.LoanStatusPending,
		Message:     f.fake.Sentence(f.fake.Number(5, 12)),
	}

	switch status {
	case models.LoanStatusPending:
	case models.LoanStatusRejected:
		if err := req.Reject(); err != nil {
			return nil, err
		}
	case models.LoanStatusApproved, models.LoanStatusReturned:
		due := f.now.Add(dueIn)
		if err := req.Approve(due.Add(-models.DefaultLoanPeriod), models.DefaultLoanPeriod); err != nil {
			return nil, err
		}
		if status == models.LoanStatusReturned {
			returned := *req.DueDate
			if returned.After(f.now) {
				returned = f.now
			}
			if err := req.MarkReturned(returned); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown loan status %q", status)
	}

	if err := f.create("CreateRequest", req, func(id uint) { req.ID = id }); err != nil {
		return nil, err
	}
	if status == models.LoanStatusApproved && !f.opts.DryRun {
		if err := f.db.Model(book).Update("status", models.BookStatusLentOut).Error; err != nil {
			return nil, err
		}
		book.Status = models.BookStatusLentOut
	}
	return req, nil
}

// CreateMessage persists a message from sender to the other party of req.
func (f *Factory) CreateMessage(req *models.LoanRequest, sender uint) (*models.Message, error) {
	msg := &models.Message{
		BookRequestID: req.ID,
		SenderID:      sender,
		ReceiverID:    req.CounterpartyOf(sender),
		Body:          f.fake.Sentence(f.fake.Number(4, 14)),
	}
	if err := f.create("CreateMessage", msg, func(id uint) { msg.ID = id }); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateRating persists rater's rating of the other party of a returned request.
func (f *Factory) CreateRating(req *models.LoanRequest, rater uint) (*models.Rating, error) {
	rating := &models.Rating{
		BookRequestID: req.ID,
		RaterID:       rater,
		RatedUserID:   req.CounterpartyOf(rater),
		Rating:        f.fake.Number(models.MinRatingScore+1, models.MaxRatingScore),
		Review:        f.fake.Sentence(f.fake.Number(5, 15)),
		Type:          models.RatingTypeBorrower,
	}
	if rater == req.BorrowerID {
		rating.Type = models.RatingTypeLender
	}
	if err := f.create("CreateRating", rating, func(id uint) { rating.ID = id }); err != nil {
		return nil, err
	}
	return rating, nil
}

// CreateDispute persists an open dispute reported by reporter.
func (f *Factory) CreateDispute(req *models.LoanRequest, reporter uint) (*models.Dispute, error) {
	d := &models.Dispute{
		BookRequestID:  req.ID,
		ReporterID:     reporter,
		ReportedUserID: req.CounterpartyOf(reporter),
		Title:          "Book " + f.fake.RandomString([]string{"arrived damaged", "not returned", "missing pages"}),
		Description:    f.fake.Paragraph(1, 3, 10, " "),
		Status:         models.DisputeStatusOpen,
	}
	if err := f.create("CreateDispute", d, func(id uint) { d.ID = id }); err != nil {
		return nil, err
	}
	return d, nil
}
